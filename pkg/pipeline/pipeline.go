package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/triage/internal/logging"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/ports"
)

// AudioFilename is the name voice recordings are uploaded under.
const AudioFilename = "speech.wav"

// AudioUpload is the outcome of the best-effort voice upload.
// It is logged and returned for inspection, never propagated as an error.
type AudioUpload struct {
	Attempted bool
	JobID     string
	Err       error
}

// OK reports whether an attempted upload succeeded.
func (a AudioUpload) OK() bool {
	return a.Attempted && a.Err == nil
}

// Pipeline submits sessions to the remote service and keeps the history log.
type Pipeline struct {
	remote    ports.RemoteService
	store     ports.BlobStore
	history   *History
	profile   *ProfileCache
	publisher ports.RecordPublisher
	logger    *slog.Logger
	hooks     domain.LifecycleHooks
	now       func() time.Time
	cap       int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithPublisher broadcasts finalized records.
func WithPublisher(pub ports.RecordPublisher) Option {
	return func(p *Pipeline) {
		p.publisher = pub
	}
}

// WithHistoryCap sets the number of retained records.
func WithHistoryCap(n int) Option {
	return func(p *Pipeline) {
		p.cap = n
	}
}

// WithHooks registers submission lifecycle callbacks.
func WithHooks(h domain.LifecycleHooks) Option {
	return func(p *Pipeline) {
		p.hooks = p.hooks.Merge(h)
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// New creates a pipeline over a remote service and a blob store.
func New(remote ports.RemoteService, store ports.BlobStore, opts ...Option) *Pipeline {
	p := &Pipeline{
		remote: remote,
		store:  store,
		logger: logging.NewNop(),
		now:    func() time.Time { return time.Now().UTC() },
		cap:    domain.DefaultHistoryCap,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.history = NewHistory(store, p.cap)
	p.profile = NewProfileCache(store)
	return p
}

// History returns the submission log.
func (p *Pipeline) History() *History {
	return p.history
}

// Profile returns the profile cache.
func (p *Pipeline) Profile() *ProfileCache {
	return p.profile
}

// RecordAnswer merges value into the session answers. It is used for
// fields collected outside the flow steps (self assessment, profile edits).
func RecordAnswer(s *domain.Session, key string, value any) error {
	if s.Submitting {
		return domain.ErrSubmissionInProgress
	}
	if key == "" {
		return &domain.ValidationError{Key: key, Bound: domain.BoundRequired}
	}
	if s.Answers == nil {
		s.Answers = map[string]any{}
	}
	s.Answers[key] = value
	s.Error = ""
	s.UpdatedAt = time.Now().UTC()
	return nil
}

// Submit runs the whole pipeline for s: latch, payload validation,
// best-effort audio upload, one Submit and one FetchReport call, Finalize.
// On failure s.Error holds the message; answers are never rolled back and
// the latch is always released.
func (p *Pipeline) Submit(ctx context.Context, s *domain.Session, token string) (*domain.SubmissionRecord, error) {
	if s.Submitting {
		return nil, domain.ErrSubmissionInProgress
	}
	start := p.now()
	s.Submitting, s.SubmittingSince = true, &start
	s.Error = ""
	defer s.ReleaseLatch()

	p.emit(ctx, domain.EventSubmitStart, s, "", 0, nil)

	fail := func(err error) (*domain.SubmissionRecord, error) {
		s.Error = err.Error()
		s.UpdatedAt = p.now()
		p.logger.Warn("submission failed", "session_id", s.ID, "error", err)
		p.emit(ctx, domain.EventSubmitFailed, s, "", p.now().Sub(start), err)
		return nil, err
	}

	payload := BuildPayload(s)
	if err := ValidatePayload(payload); err != nil {
		return fail(err)
	}

	p.UploadAudio(ctx, s, token)

	res, err := p.remote.Submit(ctx, token, payload)
	if err != nil {
		return fail(asTransport("submit", err))
	}
	if res.JobID == "" {
		return fail(&domain.TransportError{Op: "submit", Err: errors.New("empty job id")})
	}
	p.logger.Debug("payload submitted", "session_id", s.ID, "job_id", res.JobID)

	report, err := p.remote.FetchReport(ctx, token, res.JobID)
	if err != nil {
		return fail(asTransport("fetch report", err))
	}

	rec, err := p.Finalize(ctx, s, res.JobID, payload, report)
	if err != nil {
		return fail(err)
	}

	p.emit(ctx, domain.EventSubmitComplete, s, rec.JobID, p.now().Sub(start), nil)
	return rec, nil
}

// Finalize records a report: it builds the SubmissionRecord, prepends it to
// the capped history, persists it, refreshes the profile cache and
// publishes it. Publishing and profile caching are best-effort.
func (p *Pipeline) Finalize(ctx context.Context, s *domain.Session, jobID string, payload domain.Payload, report domain.Report) (*domain.SubmissionRecord, error) {
	snapshot := s.Clone()
	payload.Symptoms = append([]string{}, payload.Symptoms...)

	rec := domain.SubmissionRecord{
		JobID:       jobID,
		SessionID:   s.ID,
		SubmittedAt: p.now(),
		InputSnapshot: domain.InputSnapshot{
			Answers: snapshot.Answers,
			Payload: payload,
		},
		Report: report,
	}

	if _, err := p.history.Prepend(ctx, rec); err != nil {
		return nil, err
	}

	if _, err := p.profile.Remember(ctx, payload.Profile); err != nil {
		p.logger.Warn("failed to cache profile", "error", err)
	}

	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, &rec); err != nil {
			p.logger.Warn("failed to publish record", "job_id", jobID, "error", err)
		}
	}

	s.LastReport = report
	s.Error = ""
	s.UpdatedAt = rec.SubmittedAt
	p.logger.Info("submission finalized", "session_id", s.ID, "job_id", jobID)
	return &rec, nil
}

// UploadAudio sends the session's voice recording, if any. Failures are
// logged and returned in the result, never as an error.
func (p *Pipeline) UploadAudio(ctx context.Context, s *domain.Session, token string) AudioUpload {
	if s.Audio == nil {
		return AudioUpload{}
	}
	up := AudioUpload{Attempted: true}

	data, err := p.store.Get(ctx, s.Audio.Key)
	if err != nil {
		up.Err = fmt.Errorf("load audio %s: %w", s.Audio.Key, err)
	} else {
		res, err := p.remote.UploadAudio(ctx, token, bytes.NewReader(data), AudioFilename)
		up.JobID, up.Err = res.JobID, err
	}

	if up.Err != nil {
		p.logger.Warn("audio upload failed, continuing", "session_id", s.ID, "error", up.Err)
	} else {
		p.logger.Debug("audio uploaded", "session_id", s.ID, "job_id", up.JobID)
	}
	return up
}

func (p *Pipeline) emit(ctx context.Context, t domain.EventType, s *domain.Session, jobID string, d time.Duration, err error) {
	if p.hooks.OnSubmit == nil {
		return
	}
	p.hooks.OnSubmit(ctx, &domain.SubmitEvent{
		EventBase: domain.EventBase{Timestamp: p.now(), Type: t, SessionID: s.ID},
		JobID:     jobID,
		Duration:  d,
		Err:       err,
	})
}

func asTransport(op string, err error) error {
	var te *domain.TransportError
	if errors.As(err, &te) {
		return err
	}
	return &domain.TransportError{Op: op, Err: err}
}
