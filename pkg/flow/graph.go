package flow

import (
	"errors"
	"fmt"
	"slices"

	"github.com/aretw0/triage/pkg/domain"
)

// Graph is an immutable flow of steps compiled for one variant.
type Graph struct {
	variant domain.Variant
	entry   int
	steps   map[int]domain.Step
	ids     []int
}

// Step returns the step with the given id.
func (g *Graph) Step(id int) (domain.Step, error) {
	st, ok := g.steps[id]
	if !ok {
		return nil, &domain.UnknownStepError{StepID: id}
	}
	return st, nil
}

// InitialStepID returns the entry step of the flow.
func (g *Graph) InitialStepID() int {
	return g.entry
}

// Variant returns the variant the graph prompts were compiled for.
func (g *Graph) Variant() domain.Variant {
	return g.variant
}

// Steps returns every step ordered by id.
func (g *Graph) Steps() []domain.Step {
	out := make([]domain.Step, 0, len(g.ids))
	for _, id := range g.ids {
		out = append(out, g.steps[id])
	}
	return out
}

// Len returns the number of steps.
func (g *Graph) Len() int {
	return len(g.ids)
}

// Validate checks the closure property: the entry step exists, every
// successor resolves to a step and terminal steps have no successors.
func (g *Graph) Validate() error {
	var errs []error
	if _, ok := g.steps[g.entry]; !ok {
		errs = append(errs, fmt.Errorf("entry step: %w", &domain.UnknownStepError{StepID: g.entry}))
	}
	for _, id := range g.ids {
		st := g.steps[id]
		if st.Terminal() && len(st.Successors()) > 0 {
			errs = append(errs, fmt.Errorf("terminal step %d has successors", id))
		}
		for _, next := range st.Successors() {
			if _, ok := g.steps[next]; !ok {
				errs = append(errs, fmt.Errorf("step %d: %w", id, &domain.UnknownStepError{StepID: next}))
			}
		}
	}
	return errors.Join(errs...)
}

// Reachable returns the ids reachable from the entry step, ordered by id.
func (g *Graph) Reachable() []int {
	seen := map[int]bool{}
	queue := []int{g.entry}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if seen[id] {
			continue
		}
		st, ok := g.steps[id]
		if !ok {
			continue
		}
		seen[id] = true
		queue = append(queue, st.Successors()...)
	}
	out := make([]int, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Unreachable returns the ids that no path from the entry step visits.
func (g *Graph) Unreachable() []int {
	reach := g.Reachable()
	var out []int
	for _, id := range g.ids {
		if _, found := slices.BinarySearch(reach, id); !found {
			out = append(out, id)
		}
	}
	return out
}
