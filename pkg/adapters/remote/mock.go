package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/google/uuid"
)

// Operation names used for call counting and failure injection.
const (
	OpLogin    = "login"
	OpRegister = "register"
	OpSubmit   = "submit"
	OpReport   = "fetch report"
	OpAudio    = "upload audio"
	OpImage    = "analyze image"
)

// Mock is an in-memory triage backend. It produces the same shapes as the
// production service so the wizard can run end to end without one.
type Mock struct {
	mu          sync.Mutex
	calls       map[string]int
	failures    map[string]error
	jobs        map[string]domain.Payload
	users       map[string]mockUser
	tokens      map[string]domain.User
	requireAuth bool
	now         func() time.Time
}

type mockUser struct {
	password string
	user     domain.User
}

type MockOption func(*Mock)

// WithAuthRequired makes submissions without a known token fail with 401.
func WithAuthRequired() MockOption {
	return func(m *Mock) {
		m.requireAuth = true
	}
}

// WithMockClock fixes the createdAt stamp of reports.
func WithMockClock(now func() time.Time) MockOption {
	return func(m *Mock) {
		m.now = now
	}
}

func NewMock(opts ...MockOption) *Mock {
	m := &Mock{
		calls:    make(map[string]int),
		failures: make(map[string]error),
		jobs:     make(map[string]domain.Payload),
		users:    make(map[string]mockUser),
		tokens:   make(map[string]domain.User),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Fail makes every following call to op return err. A nil err clears it.
func (m *Mock) Fail(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, op)
		return
	}
	m.failures[op] = err
}

// Calls returns how many times op was invoked, failures included.
func (m *Mock) Calls(op string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[op]
}

// Payload returns what was submitted under jobID.
func (m *Mock) Payload(jobID string) (domain.Payload, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.jobs[jobID]
	return p, ok
}

// enter counts the call and returns the injected failure, if any.
// Callers must hold m.mu.
func (m *Mock) enter(op string) error {
	m.calls[op]++
	err, ok := m.failures[op]
	if !ok {
		return nil
	}
	var te *domain.TransportError
	if errors.As(err, &te) {
		return err
	}
	return &domain.TransportError{Op: op, Err: err}
}

func (m *Mock) authorize(op, token string) error {
	if !m.requireAuth {
		return nil
	}
	if _, ok := m.tokens[token]; ok {
		return nil
	}
	return &domain.TransportError{Op: op, StatusCode: 401, Err: errors.New("unauthorized")}
}

func (m *Mock) Login(_ context.Context, creds domain.Credentials) (domain.AuthResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpLogin); err != nil {
		return domain.AuthResult{}, err
	}
	if creds.Email == "" {
		return domain.AuthResult{}, &domain.TransportError{Op: OpLogin, StatusCode: 400, Err: errors.New("email required")}
	}

	u, ok := m.users[strings.ToLower(creds.Email)]
	if ok && u.password != creds.Password {
		return domain.AuthResult{}, &domain.TransportError{Op: OpLogin, StatusCode: 401, Err: errors.New("invalid credentials")}
	}
	if !ok {
		// Unknown accounts are let in as demo users.
		name, _, _ := strings.Cut(creds.Email, "@")
		u = mockUser{user: domain.User{ID: "u_" + uuid.NewString()[:8], Email: creds.Email, Name: name}}
	}
	return m.issue(u.user), nil
}

func (m *Mock) Register(_ context.Context, creds domain.Credentials) (domain.AuthResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpRegister); err != nil {
		return domain.AuthResult{}, err
	}
	if creds.Email == "" || creds.Password == "" {
		return domain.AuthResult{}, &domain.TransportError{Op: OpRegister, StatusCode: 400, Err: errors.New("email and password required")}
	}
	key := strings.ToLower(creds.Email)
	if _, exists := m.users[key]; exists {
		return domain.AuthResult{}, &domain.TransportError{Op: OpRegister, StatusCode: 409, Err: errors.New("account exists")}
	}

	name := creds.Name
	if name == "" {
		name, _, _ = strings.Cut(creds.Email, "@")
	}
	u := mockUser{
		password: creds.Password,
		user:     domain.User{ID: "u_" + uuid.NewString()[:8], Email: creds.Email, Name: name},
	}
	m.users[key] = u
	return m.issue(u.user), nil
}

func (m *Mock) issue(u domain.User) domain.AuthResult {
	token := "tok_" + uuid.NewString()
	m.tokens[token] = u
	return domain.AuthResult{Token: token, User: u}
}

func (m *Mock) Submit(_ context.Context, token string, payload domain.Payload) (domain.SubmitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpSubmit); err != nil {
		return domain.SubmitResult{}, err
	}
	if err := m.authorize(OpSubmit, token); err != nil {
		return domain.SubmitResult{}, err
	}
	id := "job_" + uuid.NewString()
	m.jobs[id] = payload
	return domain.SubmitResult{JobID: id}, nil
}

func (m *Mock) UploadAudio(_ context.Context, token string, audio io.Reader, _ string) (domain.SubmitResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpAudio); err != nil {
		return domain.SubmitResult{}, err
	}
	if err := m.authorize(OpAudio, token); err != nil {
		return domain.SubmitResult{}, err
	}
	if _, err := io.Copy(io.Discard, audio); err != nil {
		return domain.SubmitResult{}, &domain.TransportError{Op: OpAudio, Err: err}
	}
	return domain.SubmitResult{JobID: "audio_" + uuid.NewString()}, nil
}

func (m *Mock) FetchReport(_ context.Context, token string, jobID string) (domain.Report, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpReport); err != nil {
		return nil, err
	}
	if err := m.authorize(OpReport, token); err != nil {
		return nil, err
	}
	p, ok := m.jobs[jobID]
	if !ok {
		return nil, &domain.TransportError{Op: OpReport, StatusCode: 404, Err: fmt.Errorf("unknown job %s", jobID)}
	}
	return BuildMockReport(jobID, p, m.now()), nil
}

func (m *Mock) AnalyzeImage(_ context.Context, token string, image []byte, contentType string) (map[string]any, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.enter(OpImage); err != nil {
		return nil, err
	}
	if err := m.authorize(OpImage, token); err != nil {
		return nil, err
	}
	if len(image) == 0 {
		return nil, &domain.TransportError{Op: OpImage, StatusCode: 400, Err: errors.New("empty image")}
	}
	return map[string]any{
		"label":       "benign-nevus",
		"confidence":  0.82,
		"contentType": contentType,
		"bytes":       len(image),
	}, nil
}

// BuildMockReport derives a report from the submitted payload. Symptom
// weights decrease with list position; the decision severity follows the
// self assessment when one was given.
func BuildMockReport(jobID string, p domain.Payload, at time.Time) domain.Report {
	extracted := make([]any, 0, len(p.Symptoms))
	weight := 0.86
	for _, s := range p.Symptoms {
		extracted = append(extracted, map[string]any{"name": s, "weight": weight})
		weight = max(0.1, weight-0.23)
	}

	patient := map[string]any{"age": nil, "gender": nil}
	if p.Profile.Age != nil {
		patient["age"] = *p.Profile.Age
	}
	if p.Profile.Gender != nil {
		patient["gender"] = *p.Profile.Gender
	}

	severity := 3
	if p.SelfAssessment.Severity != nil {
		severity = severityLevel(*p.SelfAssessment.Severity, severity)
	}

	return domain.Report{
		"jobId":             jobID,
		"patient":           patient,
		"extractedSymptoms": extracted,
		"modelVotes": []any{
			map[string]any{"model": "LogReg", "severity": max(1, severity-1), "confidence": 0.71},
			map[string]any{"model": "RandomForest", "severity": severity, "confidence": 0.64},
		},
		"finalDecision": map[string]any{
			"severity":  severity,
			"rationale": "Consistent with RF + reported symptoms.",
		},
		"createdAt": at.UTC().Format(time.RFC3339),
	}
}

var severityWords = map[string]int{
	"none":     1,
	"mild":     2,
	"moderate": 3,
	"severe":   4,
	"critical": 5,
}

// severityLevel maps a self rating ("4", "severe") onto the 1..5 scale.
func severityLevel(raw string, fallback int) int {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return min(5, max(1, int(n)))
	}
	if n, ok := severityWords[raw]; ok {
		return n
	}
	return fallback
}
