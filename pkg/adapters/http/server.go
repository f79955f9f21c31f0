package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/aretw0/triage"
	"github.com/aretw0/triage/internal/logging"
	"github.com/aretw0/triage/internal/presentation/graph"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/flow"
	"github.com/aretw0/triage/pkg/media"
)

// maxJSONBody bounds request bodies that are not uploads.
const maxJSONBody = 1 << 20

// Server exposes a Wizard over HTTP.
type Server struct {
	wizard  *triage.Wizard
	streams *StreamManager
	metrics http.Handler
	logger  *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithMetrics mounts a metrics handler at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the HTTP handler for w.
func NewHandler(w *triage.Wizard, opts ...Option) http.Handler {
	s := &Server{wizard: w, logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	s.streams = NewStreamManager(s.logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/health", s.getHealth)
	r.Get("/info", s.getInfo)
	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		w.Write(rawSpec)
	})
	r.Get("/swagger", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerHTML))
	})
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}
	r.Get("/graph", s.getGraph)

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.listSessions)
		r.Post("/", s.startSession)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)
			r.Post("/answer", s.answerStep)
			r.Post("/back", s.goBack)
			r.Post("/reset", s.resetSession)
			r.Put("/answers/{key}", s.recordAnswer)
			r.Post("/symptoms", s.addSymptoms)
			r.Delete("/symptoms/{symptom}", s.removeSymptom)
			r.Post("/upload", s.uploadImage)
			r.Post("/audio", s.attachAudio)
			r.Post("/submit", s.submitSession)
			r.Get("/events", s.subscribeEvents)
		})
	})

	r.Get("/history", s.listHistory)
	r.Delete("/history", s.clearHistory)
	r.Get("/profile", s.getProfile)
	r.Patch("/profile", s.updateProfile)

	r.Post("/auth/login", s.login)
	r.Post("/auth/register", s.register)
	r.Post("/auth/logout", s.logout)

	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

const swaggerHTML = `
<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="utf-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1" />
    <title>Triage API Documentation</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui.css" />
</head>
<body>
<div id="swagger-ui"></div>
<script src="https://unpkg.com/swagger-ui-dist@5.11.0/swagger-ui-bundle.js" crossorigin></script>
<script>
    window.onload = () => {
    window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui',
    });
    };
</script>
</body>
</html>
`

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getInfo(w http.ResponseWriter, r *http.Request) {
	apiVersion := "unknown"
	if swagger, err := GetSwagger(); err == nil && swagger.Info != nil {
		apiVersion = swagger.Info.Version
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "triage-http",
		"version":     strings.TrimSpace(triage.Version),
		"api_version": apiVersion,
	})
}

func (s *Server) getGraph(w http.ResponseWriter, r *http.Request) {
	v, err := flow.ParseVariant(r.URL.Query().Get("variant"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	g, err := s.wizard.Graph(v)
	if err != nil {
		s.fail(w, err)
		return
	}
	if r.URL.Query().Get("format") == "mermaid" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, graph.GenerateMermaid(g, nil))
		return
	}
	steps := make([]triage.StepView, 0, g.Len())
	for _, st := range g.Steps() {
		steps = append(steps, triage.DescribeStep(st))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"variant": g.Variant(),
		"entry":   g.InitialStepID(),
		"steps":   steps,
	})
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.wizard.Sessions(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ids)
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Variant string `json:"variant"`
	}
	if r.ContentLength != 0 {
		if err := decode(w, r, &body); err != nil {
			return
		}
	}
	v, err := flow.ParseVariant(body.Variant)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := s.wizard.Start(r.Context(), v)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.respondView(w, r, http.StatusCreated, sess.ID)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	s.respondView(w, r, http.StatusOK, sessionID(r))
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.wizard.Delete(r.Context(), sessionID(r)); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) answerStep(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Answer any `json:"answer"`
	}
	if err := decode(w, r, &body); err != nil {
		return
	}
	s.mutate(w, r, func(ctx context.Context, id string) (*domain.Session, error) {
		return s.wizard.Advance(ctx, id, body.Answer)
	})
}

func (s *Server) goBack(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(ctx context.Context, id string) (*domain.Session, error) {
		return s.wizard.Back(ctx, id)
	})
}

func (s *Server) resetSession(w http.ResponseWriter, r *http.Request) {
	s.mutate(w, r, func(ctx context.Context, id string) (*domain.Session, error) {
		return s.wizard.Reset(ctx, id)
	})
}

func (s *Server) recordAnswer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Value any `json:"value"`
	}
	if err := decode(w, r, &body); err != nil {
		return
	}
	key := chi.URLParam(r, "key")
	s.mutate(w, r, func(ctx context.Context, id string) (*domain.Session, error) {
		return s.wizard.RecordAnswer(ctx, id, key, body.Value)
	})
}

func (s *Server) addSymptoms(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Symptoms []string `json:"symptoms"`
	}
	if err := decode(w, r, &body); err != nil {
		return
	}
	s.mutate(w, r, func(ctx context.Context, id string) (*domain.Session, error) {
		return s.wizard.AddSymptoms(ctx, id, body.Symptoms...)
	})
}

func (s *Server) removeSymptom(w http.ResponseWriter, r *http.Request) {
	symptom := chi.URLParam(r, "symptom")
	s.mutate(w, r, func(ctx context.Context, id string) (*domain.Session, error) {
		return s.wizard.RemoveSymptom(ctx, id, symptom)
	})
}

func (s *Server) uploadImage(w http.ResponseWriter, r *http.Request) {
	data, name, err := readUpload(w, r, media.MaxImageBytes)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.mutate(w, r, func(ctx context.Context, id string) (*domain.Session, error) {
		return s.wizard.Upload(ctx, id, data, name)
	})
}

func (s *Server) attachAudio(w http.ResponseWriter, r *http.Request) {
	data, _, err := readUpload(w, r, media.MaxAudioBytes)
	if err != nil {
		s.fail(w, err)
		return
	}
	s.mutate(w, r, func(ctx context.Context, id string) (*domain.Session, error) {
		return s.wizard.AttachAudio(ctx, id, data)
	})
}

func (s *Server) submitSession(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	ctx := withBearer(r)
	before, err := s.wizard.Session(ctx, id)
	if err != nil {
		s.fail(w, err)
		return
	}
	rec, subErr := s.wizard.Submit(ctx, id)
	if after, err := s.wizard.Session(ctx, id); err == nil {
		s.streams.Publish(before, after)
	}
	if subErr != nil {
		s.fail(w, subErr)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) listHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.wizard.History(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	if records == nil {
		records = []domain.SubmissionRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) clearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.wizard.ClearHistory(r.Context()); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	p, err := s.wizard.Profile(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	var patch map[string]any
	if err := decode(w, r, &patch); err != nil {
		return
	}
	p, err := s.wizard.UpdateProfile(r.Context(), patch)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := decode(w, r, &creds); err != nil {
		return
	}
	res, err := s.wizard.Accounts().Login(r.Context(), creds.Email, creds.Password)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var creds domain.Credentials
	if err := decode(w, r, &creds); err != nil {
		return
	}
	res, err := s.wizard.Accounts().Register(r.Context(), creds)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if err := s.wizard.Accounts().Logout(r.Context()); err != nil {
		s.fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// mutate runs op against the session named in the URL, broadcasts the
// diff and responds with the resulting view. A rejected answer still
// changes the session (its Error field), so the diff is published before
// the error is reported.
func (s *Server) mutate(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, id string) (*domain.Session, error)) {
	id := sessionID(r)
	ctx := withBearer(r)
	before, err := s.wizard.Session(ctx, id)
	if err != nil {
		s.fail(w, err)
		return
	}

	after, opErr := op(ctx, id)
	s.streams.Publish(before, after)
	if opErr != nil {
		s.failWithView(w, r, id, opErr)
		return
	}
	s.respondView(w, r, http.StatusOK, id)
}

func (s *Server) respondView(w http.ResponseWriter, r *http.Request, status int, id string) {
	v, err := s.wizard.View(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, status, v)
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error string       `json:"error"`
	Bound string       `json:"bound,omitempty"`
	Limit *float64     `json:"limit,omitempty"`
	View  *triage.View `json:"view,omitempty"`
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		body.Bound, body.Limit = ve.Bound, ve.Limit
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed", "status", status, "err", err)
	} else {
		s.logger.Debug("request rejected", "status", status, "err", err)
	}
	writeJSON(w, status, body)
}

func (s *Server) failWithView(w http.ResponseWriter, r *http.Request, id string, err error) {
	status := statusFor(err)
	body := errorBody{Error: err.Error()}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		body.Bound, body.Limit = ve.Bound, ve.Limit
	}
	if v, verr := s.wizard.View(r.Context(), id); verr == nil {
		body.View = v
	}
	writeJSON(w, status, body)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var (
		ve       *domain.ValidationError
		ice      *domain.InvalidChoiceError
		use      *domain.UnknownStepError
		term     *domain.SessionTerminatedError
		te       *domain.TransportError
		tooLarge *media.TooLargeError
		maxBytes *http.MaxBytesError
	)
	switch {
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrNotFound), errors.As(err, &use):
		return http.StatusNotFound
	case errors.As(err, &tooLarge), errors.As(err, &maxBytes):
		return http.StatusRequestEntityTooLarge
	case errors.As(err, &ve), errors.As(err, &ice):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrSubmissionInProgress), errors.As(err, &term), errors.Is(err, domain.ErrNoPreviousStep):
		return http.StatusConflict
	case errors.As(err, &te):
		switch te.StatusCode {
		case http.StatusUnauthorized, http.StatusConflict:
			return te.StatusCode
		}
		return http.StatusBadGateway
	case errors.Is(err, errBadUpload):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

var errBadUpload = errors.New("multipart field \"file\" is required")

// readUpload reads the "file" part of a multipart request, capped at limit.
func readUpload(w http.ResponseWriter, r *http.Request, limit int) ([]byte, string, error) {
	r.Body = http.MaxBytesReader(w, r.Body, int64(limit)+maxJSONBody)
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return nil, "", err
		}
		return nil, "", errBadUpload
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}
	return data, header.Filename, nil
}

// withBearer attaches the request's bearer token, if any, for remote calls.
func withBearer(r *http.Request) context.Context {
	h := r.Header.Get("Authorization")
	if tok, ok := strings.CutPrefix(h, "Bearer "); ok && tok != "" {
		return triage.WithToken(r.Context(), strings.TrimSpace(tok))
	}
	return r.Context()
}

func sessionID(r *http.Request) string {
	return chi.URLParam(r, "id")
}

func decode(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorBody{Error: msg})
}
