package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/flow"
	"github.com/aretw0/triage/pkg/registry"
)

// Variants lists the variants every definition must compile for.
var Variants = []domain.Variant{domain.VariantBilingual, domain.VariantPlain}

// Report collects what was found while checking a definition.
// Errors make the flow unusable; warnings do not.
type Report struct {
	Errors   []string
	Warnings []string
}

// Valid reports whether no errors were found.
func (r *Report) Valid() bool {
	return len(r.Errors) == 0
}

// Err folds the errors into one error, or nil.
func (r *Report) Err() error {
	if r.Valid() {
		return nil
	}
	return fmt.Errorf("found %d errors:\n- %s", len(r.Errors), strings.Join(r.Errors, "\n- "))
}

func (r *Report) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Report) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// ValidateDefinition compiles def for every variant and checks broken
// links, unreachable steps, missing computations and answer keys.
// A nil registry skips the computation check.
func ValidateDefinition(def *flow.Definition, reg *registry.Registry) *Report {
	rep := &Report{}
	checkKeys(def, rep)

	for _, v := range Variants {
		g, err := def.Compile(v)
		if err != nil {
			rep.errorf("%s: %v", v, err)
			continue
		}
		ValidateGraph(g, reg, rep)
	}
	return rep
}

// ValidateGraph adds the findings for one compiled graph to rep.
func ValidateGraph(g *flow.Graph, reg *registry.Registry, rep *Report) {
	v := g.Variant()
	if err := g.Validate(); err != nil {
		for _, e := range unjoin(err) {
			rep.errorf("%s: %v", v, e)
		}
	}
	for _, id := range g.Unreachable() {
		rep.warnf("%s: step %d is unreachable from step %d", v, id, g.InitialStepID())
	}
	if !reachesTerminal(g) {
		rep.errorf("%s: no terminal step is reachable from step %d", v, g.InitialStepID())
	}
	if reg != nil {
		for _, name := range reg.Missing(g.Steps()) {
			rep.errorf("%s: computation %q is not registered", v, name)
		}
	}
}

func checkKeys(def *flow.Definition, rep *Report) {
	seen := map[int]bool{}
	for _, sd := range def.Steps {
		if seen[sd.ID] {
			rep.errorf("step %d is defined twice", sd.ID)
		}
		seen[sd.ID] = true

		needsKey := sd.Kind == domain.KindChoice || sd.Kind.IsFreeInput()
		if needsKey && sd.Key == "" {
			rep.errorf("step %d (%s) has no answer key", sd.ID, sd.Kind)
		}
		values := map[string]bool{}
		for _, c := range sd.Choices {
			if values[c.Value] {
				rep.warnf("step %d repeats choice %q", sd.ID, c.Value)
			}
			values[c.Value] = true
		}
	}
}

func reachesTerminal(g *flow.Graph) bool {
	for _, id := range g.Reachable() {
		st, err := g.Step(id)
		if err == nil && st.Terminal() {
			return true
		}
	}
	return false
}

func unjoin(err error) []error {
	if j, ok := err.(interface{ Unwrap() []error }); ok {
		return j.Unwrap()
	}
	return []error{err}
}
