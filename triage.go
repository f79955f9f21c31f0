package triage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/triage/internal/logging"
	"github.com/aretw0/triage/pkg/account"
	"github.com/aretw0/triage/pkg/adapters/memory"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/flow"
	"github.com/aretw0/triage/pkg/media"
	"github.com/aretw0/triage/pkg/pipeline"
	"github.com/aretw0/triage/pkg/ports"
	"github.com/aretw0/triage/pkg/registry"
	"github.com/aretw0/triage/pkg/session"
)

// Wizard is the high-level entry point of the library. It binds the flow
// graphs, the session store, the submission pipeline and the account
// service, and persists every session change explicitly.
type Wizard struct {
	graphs   map[domain.Variant]*flow.Graph
	def      *flow.Definition
	store    ports.BlobStore
	remote   ports.RemoteService
	analyzer ports.ImageAnalyzer
	locker   ports.DistributedLocker

	sessions *session.Manager
	pipeline *pipeline.Pipeline
	accounts *account.Service
	registry *registry.Registry

	publisher    ports.RecordPublisher
	hooks        domain.LifecycleHooks
	historyCap   int
	latchTimeout time.Duration
	logger       *slog.Logger
}

// DefaultLatchTimeout is how long a persisted submission latch is honoured
// before it is treated as abandoned.
const DefaultLatchTimeout = 2 * time.Minute

// Option defines a functional option for configuring the Wizard.
type Option func(*Wizard)

// WithStore sets the persistence backend. Defaults to an in-memory store.
func WithStore(store ports.BlobStore) Option {
	return func(w *Wizard) {
		w.store = store
	}
}

// WithLocker enables distributed session locking across replicas.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(w *Wizard) {
		w.locker = locker
	}
}

// WithDefinition replaces the embedded triage flow.
func WithDefinition(def *flow.Definition) Option {
	return func(w *Wizard) {
		w.def = def
	}
}

// WithImageAnalyzer sets the skin analyzer. By default the remote service
// is used when it implements ports.ImageAnalyzer.
func WithImageAnalyzer(a ports.ImageAnalyzer) Option {
	return func(w *Wizard) {
		w.analyzer = a
	}
}

// WithRegistry replaces the computation registry.
func WithRegistry(r *registry.Registry) Option {
	return func(w *Wizard) {
		w.registry = r
	}
}

// WithPublisher broadcasts finalized submission records.
func WithPublisher(p ports.RecordPublisher) Option {
	return func(w *Wizard) {
		w.publisher = p
	}
}

// WithHistoryCap sets how many submission records are retained.
func WithHistoryCap(n int) Option {
	return func(w *Wizard) {
		w.historyCap = n
	}
}

// WithLatchTimeout sets how long a submission latch may be held before
// other writers may clear it. It should exceed the time the remote calls
// of one submission can take.
func WithLatchTimeout(d time.Duration) Option {
	return func(w *Wizard) {
		w.latchTimeout = d
	}
}

// WithLifecycleHooks registers observability hooks.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(w *Wizard) {
		w.hooks = w.hooks.Merge(hooks)
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Wizard) {
		w.logger = logger
	}
}

// New builds a Wizard over a remote triage service.
func New(remote ports.RemoteService, opts ...Option) (*Wizard, error) {
	if remote == nil {
		return nil, errors.New("remote service is required")
	}
	w := &Wizard{
		remote:       remote,
		historyCap:   domain.DefaultHistoryCap,
		latchTimeout: DefaultLatchTimeout,
		logger:       logging.NewNop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.store == nil {
		w.store = memory.NewStore()
	}
	if w.def == nil {
		w.def = flow.DefaultDefinition()
	}
	if w.analyzer == nil {
		if a, ok := remote.(ports.ImageAnalyzer); ok {
			w.analyzer = a
		}
	}
	if w.registry == nil {
		w.registry = registry.Default(w.store, w.analyzer)
	}

	w.graphs = make(map[domain.Variant]*flow.Graph, 2)
	for _, v := range []domain.Variant{domain.VariantBilingual, domain.VariantPlain} {
		g, err := w.def.Compile(v)
		if err != nil {
			return nil, fmt.Errorf("failed to compile %s flow: %w", v, err)
		}
		if missing := w.registry.Missing(g.Steps()); len(missing) > 0 {
			return nil, fmt.Errorf("flow uses unregistered computations: %v", missing)
		}
		w.graphs[v] = g
	}

	smOpts := []session.Option{session.WithLogger(w.logger)}
	if w.locker != nil {
		smOpts = append(smOpts, session.WithLocker(w.locker))
	}
	w.sessions = session.NewManager(w.store, smOpts...)

	plOpts := []pipeline.Option{
		pipeline.WithLogger(w.logger),
		pipeline.WithHistoryCap(w.historyCap),
		pipeline.WithHooks(w.hooks),
	}
	if w.publisher != nil {
		plOpts = append(plOpts, pipeline.WithPublisher(w.publisher))
	}
	w.pipeline = pipeline.New(remote, w.store, plOpts...)
	w.accounts = account.New(remote, w.store, account.WithLogger(w.logger))
	return w, nil
}

// Graph returns the compiled flow of a variant.
func (w *Wizard) Graph(v domain.Variant) (*flow.Graph, error) {
	if v == "" {
		v = domain.VariantBilingual
	}
	g, ok := w.graphs[v]
	if !ok {
		return nil, fmt.Errorf("unknown variant %q", v)
	}
	return g, nil
}

// Definition returns the flow definition the graphs were compiled from.
func (w *Wizard) Definition() *flow.Definition {
	return w.def
}

// Store returns the persistence backend.
func (w *Wizard) Store() ports.BlobStore {
	return w.store
}

// Accounts returns the account service.
func (w *Wizard) Accounts() *account.Service {
	return w.accounts
}

// Start creates and persists a session at the entry step.
func (w *Wizard) Start(ctx context.Context, v domain.Variant) (*domain.Session, error) {
	g, err := w.Graph(v)
	if err != nil {
		return nil, err
	}
	s, err := w.sessions.Create(ctx, g.Variant(), g.InitialStepID())
	if err != nil {
		return nil, err
	}
	w.logger.Info("session started", "session_id", s.ID, "variant", s.Variant)
	w.enter(ctx, g, s)
	return s, nil
}

// Session loads a session by id.
func (w *Wizard) Session(ctx context.Context, id string) (*domain.Session, error) {
	s, err := w.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	w.expireLatch(s)
	return s, nil
}

// update runs fn under the session lock. A stale submission latch is
// dropped first, so a crashed submitter cannot lock the session for good.
func (w *Wizard) update(ctx context.Context, id string, fn func(*domain.Session) (*domain.Session, error)) (*domain.Session, error) {
	return w.sessions.Update(ctx, id, func(cur *domain.Session) (*domain.Session, error) {
		w.expireLatch(cur)
		return fn(cur)
	})
}

func (w *Wizard) expireLatch(s *domain.Session) {
	if !s.LatchStale(time.Now(), w.latchTimeout) {
		return
	}
	w.logger.Warn("releasing stale submission latch", "session_id", s.ID, "since", s.SubmittingSince)
	s.ReleaseLatch()
}

// Sessions lists the stored session ids.
func (w *Wizard) Sessions(ctx context.Context) ([]string, error) {
	return w.sessions.List(ctx)
}

// Delete removes a session.
func (w *Wizard) Delete(ctx context.Context, id string) error {
	return w.sessions.Delete(ctx, id)
}

// Advance answers the current step and persists the result. Computed steps
// reached on the way are resolved and advanced through automatically.
// When the current step is itself a computed step (a previous computation
// failed), the answer is ignored and the computation is retried.
//
// Rejected answers leave the session in place with Error set; the
// returned session reflects that and err describes the rejection.
func (w *Wizard) Advance(ctx context.Context, id string, answer any) (*domain.Session, error) {
	ctx = registry.WithToken(ctx, w.token(ctx))

	var (
		failed error
		path   []int
	)
	s, err := w.update(ctx, id, func(cur *domain.Session) (*domain.Session, error) {
		g, err := w.Graph(cur.Variant)
		if err != nil {
			return nil, err
		}
		step, err := g.Step(cur.CurrentStepID)
		if err != nil {
			return nil, err
		}

		next := cur
		if _, auto := step.(*domain.AutoAdvanceStep); !auto {
			next, err = flow.Advance(g, cur, answer)
			if err != nil {
				return w.reject(cur, err, &failed)
			}
			path = append(path, next.CurrentStepID)
		}

		next, moved, err := w.resolve(ctx, g, next)
		path = append(path, moved...)
		if err != nil {
			failed = err
			next.Error = err.Error()
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}

	w.emitPath(ctx, s, path)
	return s, failed
}

// reject records a rejected answer on the session. Latch violations are
// returned as-is without touching the stored session.
func (w *Wizard) reject(cur *domain.Session, err error, failed *error) (*domain.Session, error) {
	if errors.Is(err, domain.ErrSubmissionInProgress) {
		return nil, err
	}
	var term *domain.SessionTerminatedError
	if errors.As(err, &term) {
		return nil, err
	}
	*failed = err
	cur.Error = err.Error()
	return cur, nil
}

// resolve advances through consecutive computed steps. It stops at the
// first failing computation, leaving the session on that step.
func (w *Wizard) resolve(ctx context.Context, g *flow.Graph, s *domain.Session) (*domain.Session, []int, error) {
	var moved []int
	for range g.Len() {
		step, err := g.Step(s.CurrentStepID)
		if err != nil {
			return s, moved, err
		}
		auto, ok := step.(*domain.AutoAdvanceStep)
		if !ok {
			return s, moved, nil
		}

		start := time.Now()
		result, err := w.registry.Execute(ctx, auto.Compute, s.Answers)
		w.logger.Debug("computation finished", "session_id", s.ID, "compute", auto.Compute,
			"duration", time.Since(start), "err", err)
		if err != nil {
			return s, moved, fmt.Errorf("step %d: %w", auto.ID(), err)
		}
		next, err := flow.Advance(g, s, result)
		if err != nil {
			return s, moved, err
		}
		s = next
		moved = append(moved, s.CurrentStepID)
	}
	return s, moved, fmt.Errorf("computed steps do not settle after %d transitions", g.Len())
}

// Back returns to the previous step.
func (w *Wizard) Back(ctx context.Context, id string) (*domain.Session, error) {
	return w.update(ctx, id, func(cur *domain.Session) (*domain.Session, error) {
		g, err := w.Graph(cur.Variant)
		if err != nil {
			return nil, err
		}
		return flow.Back(g, cur)
	})
}

// RecordAnswer stores a value collected outside the flow steps, such as
// the self assessment fields.
func (w *Wizard) RecordAnswer(ctx context.Context, id, key string, value any) (*domain.Session, error) {
	return w.update(ctx, id, func(cur *domain.Session) (*domain.Session, error) {
		return nil, pipeline.RecordAnswer(cur, key, value)
	})
}

// AddSymptoms merges symptoms into the picker answer.
func (w *Wizard) AddSymptoms(ctx context.Context, id string, symptoms ...string) (*domain.Session, error) {
	return w.update(ctx, id, func(cur *domain.Session) (*domain.Session, error) {
		return nil, pipeline.AddSymptom(cur, symptoms...)
	})
}

// RemoveSymptom drops a symptom from the picker answer.
func (w *Wizard) RemoveSymptom(ctx context.Context, id, symptom string) (*domain.Session, error) {
	return w.update(ctx, id, func(cur *domain.Session) (*domain.Session, error) {
		return nil, pipeline.RemoveSymptom(cur, symptom)
	})
}

// AttachAudio stores a voice recording and links it to the session. It is
// uploaded, best effort, on the next Submit.
func (w *Wizard) AttachAudio(ctx context.Context, id string, data []byte) (*domain.Session, error) {
	ref, err := media.SaveAudio(ctx, w.store, data, pipeline.AudioFilename)
	if err != nil {
		return nil, err
	}
	return w.update(ctx, id, func(cur *domain.Session) (*domain.Session, error) {
		if cur.Submitting {
			return nil, domain.ErrSubmissionInProgress
		}
		cur.Audio = &ref
		return nil, nil
	})
}

// Upload stores an image for the current image-upload step and advances
// with its reference.
func (w *Wizard) Upload(ctx context.Context, id string, data []byte, name string) (*domain.Session, error) {
	s, err := w.sessions.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	g, err := w.Graph(s.Variant)
	if err != nil {
		return nil, err
	}
	step, err := g.Step(s.CurrentStepID)
	if err != nil {
		return nil, err
	}
	if step.Kind() != domain.KindImageUpload {
		return nil, fmt.Errorf("step %d does not accept uploads", step.ID())
	}

	ref, err := media.SaveImage(ctx, w.store, data, name)
	if err != nil {
		return nil, &domain.ValidationError{StepID: step.ID(), Key: step.Key(), Bound: domain.BoundType, Value: err.Error()}
	}
	w.logger.Debug("image stored", "session_id", id, "key", ref.Key, "size", ref.Size)
	return w.Advance(ctx, id, ref)
}

// Submit sends the session to the remote service and records the report.
// The latch is persisted for the duration of the remote calls, so other
// writers see domain.ErrSubmissionInProgress. A latch older than the
// latch timeout is treated as abandoned and cleared by the next writer.
func (w *Wizard) Submit(ctx context.Context, id string) (*domain.SubmissionRecord, error) {
	latched, err := w.update(ctx, id, func(cur *domain.Session) (*domain.Session, error) {
		if cur.Submitting {
			return nil, domain.ErrSubmissionInProgress
		}
		now := time.Now().UTC()
		cur.Submitting, cur.SubmittingSince = true, &now
		return nil, nil
	})
	if err != nil {
		return nil, err
	}

	work := latched.Clone()
	work.ReleaseLatch()
	rec, subErr := w.pipeline.Submit(ctx, work, w.token(ctx))

	// Release the latch even if ctx was cancelled during the remote calls.
	_, saveErr := w.sessions.Update(context.WithoutCancel(ctx), id, func(*domain.Session) (*domain.Session, error) {
		work.ReleaseLatch()
		return work, nil
	})
	if subErr != nil {
		return nil, subErr
	}
	if saveErr != nil {
		return rec, fmt.Errorf("failed to save session after submit: %w", saveErr)
	}
	return rec, nil
}

// Reset replaces the session with a fresh one at the entry step. The id
// and variant are kept.
func (w *Wizard) Reset(ctx context.Context, id string) (*domain.Session, error) {
	var g *flow.Graph
	s, err := w.update(ctx, id, func(cur *domain.Session) (*domain.Session, error) {
		if cur.Submitting {
			return nil, domain.ErrSubmissionInProgress
		}
		var err error
		g, err = w.Graph(cur.Variant)
		if err != nil {
			return nil, err
		}
		return domain.NewSession(cur.ID, cur.Variant, g.InitialStepID()), nil
	})
	if err != nil {
		return nil, err
	}
	w.enter(ctx, g, s)
	return s, nil
}

// View renders the session and its current step.
func (w *Wizard) View(ctx context.Context, id string) (*View, error) {
	s, err := w.Session(ctx, id)
	if err != nil {
		return nil, err
	}
	g, err := w.Graph(s.Variant)
	if err != nil {
		return nil, err
	}
	return NewView(g, s)
}

// History returns the submission records, most recent first.
func (w *Wizard) History(ctx context.Context) ([]domain.SubmissionRecord, error) {
	return w.pipeline.History().List(ctx)
}

// ClearHistory removes every submission record.
func (w *Wizard) ClearHistory(ctx context.Context) error {
	return w.pipeline.History().Clear(ctx)
}

// Profile returns the cached patient profile.
func (w *Wizard) Profile(ctx context.Context) (map[string]any, error) {
	return w.pipeline.Profile().Load(ctx)
}

// UpdateProfile merges patch into the cached profile.
func (w *Wizard) UpdateProfile(ctx context.Context, patch map[string]any) (map[string]any, error) {
	return w.pipeline.Profile().Update(ctx, patch)
}

// WithToken makes the Wizard use token for remote calls made on behalf of
// ctx instead of the persisted account token.
func WithToken(ctx context.Context, token string) context.Context {
	return registry.WithToken(ctx, token)
}

func (w *Wizard) token(ctx context.Context) string {
	if tok := registry.TokenFrom(ctx); tok != "" {
		return tok
	}
	tok, err := w.accounts.Token(ctx)
	if err != nil {
		w.logger.Warn("failed to read token, continuing signed out", "err", err)
	}
	return tok
}

func (w *Wizard) emitPath(ctx context.Context, s *domain.Session, path []int) {
	if len(path) == 0 {
		return
	}
	g, err := w.Graph(s.Variant)
	if err != nil {
		return
	}
	// The trail ends with the path; the step before it is the one left.
	from := len(s.Trail) - len(path) - 1
	for i, id := range path {
		if from+i >= 0 {
			w.leave(ctx, g, s, s.Trail[from+i])
		}
		w.enterStep(ctx, g, s, id)
	}
}

func (w *Wizard) enter(ctx context.Context, g *flow.Graph, s *domain.Session) {
	w.enterStep(ctx, g, s, s.CurrentStepID)
}

func (w *Wizard) enterStep(ctx context.Context, g *flow.Graph, s *domain.Session, id int) {
	if w.hooks.OnStepEnter == nil {
		return
	}
	if e := stepEvent(g, s, id, domain.EventStepEnter); e != nil {
		w.hooks.OnStepEnter(ctx, e)
	}
}

func (w *Wizard) leave(ctx context.Context, g *flow.Graph, s *domain.Session, id int) {
	if w.hooks.OnStepLeave == nil {
		return
	}
	if e := stepEvent(g, s, id, domain.EventStepLeave); e != nil {
		w.hooks.OnStepLeave(ctx, e)
	}
}

func stepEvent(g *flow.Graph, s *domain.Session, id int, t domain.EventType) *domain.StepEvent {
	st, err := g.Step(id)
	if err != nil {
		return nil
	}
	return &domain.StepEvent{
		EventBase: domain.EventBase{Timestamp: time.Now().UTC(), Type: t, SessionID: s.ID},
		StepID:    id,
		Kind:      st.Kind(),
		Key:       st.Key(),
	}
}
