package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/triage/internal/logging"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/ports"
	"github.com/go-chi/chi/v5"
)

// MaxUploadBytes bounds multipart uploads accepted by the backend.
const MaxUploadBytes = 10 << 20

// Service is what the backend serves: the remote API plus image analysis.
type Service interface {
	ports.RemoteService
	ports.ImageAnalyzer
}

// Backend exposes a Service over the same routes the Client calls.
// It is the development stand-in for the production triage API.
type Backend struct {
	svc    Service
	logger *slog.Logger
}

// NewBackend returns the routed handler for svc.
func NewBackend(svc Service, logger *slog.Logger) http.Handler {
	if logger == nil {
		logger = logging.NewNop()
	}
	b := &Backend{svc: svc, logger: logger}

	r := chi.NewRouter()
	r.Post(PathLogin, b.login)
	r.Post(PathRegister, b.register)
	r.Post(PathSubmit, b.submit)
	r.Post(PathAudio, b.uploadAudio)
	r.Post(PathSkin, b.analyzeImage)
	r.Get(PathReport+"{jobID}", b.fetchReport)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return r
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	b.auth(w, r, b.svc.Login)
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	b.auth(w, r, b.svc.Register)
}

func (b *Backend) auth(w http.ResponseWriter, r *http.Request, call func(context.Context, domain.Credentials) (domain.AuthResult, error)) {
	var creds domain.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	res, err := call(r.Context(), creds)
	if err != nil {
		b.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (b *Backend) submit(w http.ResponseWriter, r *http.Request) {
	var payload domain.Payload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		b.logger.Warn("submit: invalid request body", "err", err)
		return
	}
	res, err := b.svc.Submit(r.Context(), bearer(r), payload)
	if err != nil {
		b.fail(w, err)
		return
	}
	b.logger.Info("submission accepted", "job_id", res.JobID, "symptoms", len(payload.Symptoms))
	writeJSON(w, http.StatusOK, res)
}

func (b *Backend) fetchReport(w http.ResponseWriter, r *http.Request) {
	report, err := b.svc.FetchReport(r.Context(), bearer(r), chi.URLParam(r, "jobID"))
	if err != nil {
		b.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (b *Backend) uploadAudio(w http.ResponseWriter, r *http.Request) {
	f, name, ok := b.formFile(w, r)
	if !ok {
		return
	}
	defer f.Close()
	res, err := b.svc.UploadAudio(r.Context(), bearer(r), f, name)
	if err != nil {
		b.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (b *Backend) analyzeImage(w http.ResponseWriter, r *http.Request) {
	f, _, ok := b.formFile(w, r)
	if !ok {
		return
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		http.Error(w, "read upload", http.StatusBadRequest)
		return
	}
	res, err := b.svc.AnalyzeImage(r.Context(), bearer(r), data, http.DetectContentType(data))
	if err != nil {
		b.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (b *Backend) formFile(w http.ResponseWriter, r *http.Request) (io.ReadCloser, string, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)
	if err := r.ParseMultipartForm(MaxUploadBytes); err != nil {
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		b.logger.Warn("upload rejected", "err", err)
		return nil, "", false
	}
	f, hdr, err := r.FormFile(FileField)
	if err != nil {
		http.Error(w, "missing file field", http.StatusBadRequest)
		return nil, "", false
	}
	return f, hdr.Filename, true
}

// fail maps a service error onto a status code. Transport errors keep
// their status; anything else is a 502.
func (b *Backend) fail(w http.ResponseWriter, err error) {
	status := http.StatusBadGateway
	msg := err.Error()
	var te *domain.TransportError
	if errors.As(err, &te) {
		if te.StatusCode != 0 {
			status = te.StatusCode
		}
		if te.Err != nil {
			msg = te.Err.Error()
		}
	}
	if status >= 500 {
		b.logger.Error("backend call failed", "err", err)
	}
	http.Error(w, msg, status)
}

func bearer(r *http.Request) string {
	v := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(v, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
