package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/triage/internal/logging"
	"github.com/aretw0/triage/pkg/domain"
)

// Endpoint paths of the triage backend.
const (
	PathLogin    = "/auth/login"
	PathRegister = "/auth/register"
	PathSubmit   = "/triage/submit"
	PathAudio    = "/triage/audio"
	PathReport   = "/triage/report/"
	PathSkin     = "/triage/skin"
)

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 4 << 10

// Client implements ports.RemoteService and ports.ImageAnalyzer over JSON/HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

type ClientOption func(*Client)

// WithHTTPClient replaces the default client (30s timeout).
func WithHTTPClient(c *http.Client) ClientOption {
	return func(cl *Client) {
		cl.http = c
	}
}

// WithClientLogger sets the logger.
func WithClientLogger(l *slog.Logger) ClientOption {
	return func(cl *Client) {
		cl.logger = l
	}
}

// NewClient creates a client for the backend at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Login(ctx context.Context, creds domain.Credentials) (domain.AuthResult, error) {
	var out domain.AuthResult
	err := c.doJSON(ctx, "login", http.MethodPost, PathLogin, "", creds, &out)
	return out, err
}

func (c *Client) Register(ctx context.Context, creds domain.Credentials) (domain.AuthResult, error) {
	var out domain.AuthResult
	err := c.doJSON(ctx, "register", http.MethodPost, PathRegister, "", creds, &out)
	return out, err
}

func (c *Client) Submit(ctx context.Context, token string, payload domain.Payload) (domain.SubmitResult, error) {
	var out domain.SubmitResult
	err := c.doJSON(ctx, "submit", http.MethodPost, PathSubmit, token, payload, &out)
	return out, err
}

func (c *Client) FetchReport(ctx context.Context, token string, jobID string) (domain.Report, error) {
	var out domain.Report
	err := c.doJSON(ctx, "fetch report", http.MethodGet, PathReport+url.PathEscape(jobID), token, nil, &out)
	return out, err
}

// UploadAudio posts the recording as multipart field "file".
func (c *Client) UploadAudio(ctx context.Context, token string, audio io.Reader, filename string) (domain.SubmitResult, error) {
	var out domain.SubmitResult
	err := c.doMultipart(ctx, "upload audio", PathAudio, token, audio, filename, "audio/wav", &out)
	return out, err
}

// AnalyzeImage posts the image as multipart field "file".
func (c *Client) AnalyzeImage(ctx context.Context, token string, image []byte, contentType string) (map[string]any, error) {
	var out map[string]any
	err := c.doMultipart(ctx, "analyze image", PathSkin, token, bytes.NewReader(image), "skin.jpg", contentType, &out)
	return out, err
}

func (c *Client) doJSON(ctx context.Context, op, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(op, req, token, out)
}

func (c *Client) doMultipart(ctx context.Context, op, path, token string, r io.Reader, filename, contentType string, out any) error {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreatePart(fileHeader(filename, contentType))
	if err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}
	if _, err := io.Copy(part, r); err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}
	if err := mw.Close(); err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.do(op, req, token, out)
}

func (c *Client) do(op string, req *http.Request, token string, out any) error {
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("remote call", "op", op, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		txt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		msg := strings.TrimSpace(string(txt))
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Err: errors.New(msg)}
	}

	// Some endpoints answer 204 or an empty body.
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.TransportError{Op: op, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 || out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &domain.TransportError{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
