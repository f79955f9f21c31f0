package registry

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/aretw0/triage/pkg/domain"
)

// ErrUnknownComputation is returned when no computation is registered under a name.
var ErrUnknownComputation = errors.New("computation not found")

// Computation resolves a computed-result step. It receives a snapshot of
// the session answers and returns the value stored under the step key.
type Computation func(ctx context.Context, answers map[string]any) (any, error)

// Registry maps the compute names used by flow definitions to implementations.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Computation
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{
		funcs: make(map[string]Computation),
	}
}

// Register adds a computation. An existing one with the same name is replaced.
func (r *Registry) Register(name string, fn Computation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.funcs[name]
	return ok
}

// Names lists the registered computations, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for n := range r.funcs {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Execute runs the named computation on a copy of answers.
func (r *Registry) Execute(ctx context.Context, name string, answers map[string]any) (any, error) {
	r.mu.RLock()
	fn, ok := r.funcs[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownComputation, name)
	}
	return fn(ctx, domain.CloneAnswers(answers))
}

// Missing returns the compute names referenced by steps that have no
// registered implementation.
func (r *Registry) Missing(steps []domain.Step) []string {
	var missing []string
	for _, st := range steps {
		auto, ok := st.(*domain.AutoAdvanceStep)
		if !ok || r.Has(auto.Compute) || slices.Contains(missing, auto.Compute) {
			continue
		}
		missing = append(missing, auto.Compute)
	}
	return missing
}

type tokenKey struct{}

// WithToken attaches the caller's auth token for computations that call
// the remote service.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the token set by WithToken, or "".
func TokenFrom(ctx context.Context) string {
	t, _ := ctx.Value(tokenKey{}).(string)
	return t
}
