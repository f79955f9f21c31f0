package flow

import (
	"errors"
	"fmt"
	"slices"

	"github.com/aretw0/triage/pkg/domain"
)

// Builder manages the graph construction.
type Builder struct {
	variant domain.Variant
	entry   int
	steps   map[int]*StepBuilder
	order   []int
}

// New creates a new graph builder. The entry step defaults to 0.
func New() *Builder {
	return &Builder{
		variant: domain.VariantPlain,
		steps:   make(map[int]*StepBuilder),
	}
}

// Variant records the variant the prompts belong to.
func (b *Builder) Variant(v domain.Variant) *Builder {
	b.variant = v
	return b
}

// Entry sets the initial step id.
func (b *Builder) Entry(id int) *Builder {
	b.entry = id
	return b
}

// Add creates a new step in the graph.
// If the step already exists, it returns the existing builder.
func (b *Builder) Add(id int) *StepBuilder {
	if sb, ok := b.steps[id]; ok {
		return sb
	}
	sb := &StepBuilder{id: id}
	b.steps[id] = sb
	b.order = append(b.order, id)
	return sb
}

// Build compiles the graph and validates its closure.
func (b *Builder) Build() (*Graph, error) {
	g := &Graph{
		variant: b.variant,
		entry:   b.entry,
		steps:   make(map[int]domain.Step, len(b.steps)),
		ids:     slices.Sorted(slices.Values(b.order)),
	}

	var errs []error
	for _, id := range g.ids {
		st, err := b.steps[id].build()
		if err != nil {
			errs = append(errs, err)
			continue
		}
		g.steps[id] = st
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("failed to build graph: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("invalid graph: %w", err)
	}
	return g, nil
}

// StepBuilder provides a fluent API for configuring a step.
// The concrete step type is decided at build time from what was configured.
type StepBuilder struct {
	id          int
	key         string
	prompt      string
	kind        domain.StepKind
	choices     []domain.Choice
	validation  *domain.Validation
	optional    bool
	suggestions []string
	compute     string
	next        *int
	terminal    bool
}

// Key sets the answer field name.
func (s *StepBuilder) Key(key string) *StepBuilder {
	s.key = key
	return s
}

// Prompt sets the display text.
func (s *StepBuilder) Prompt(text string) *StepBuilder {
	s.prompt = text
	return s
}

// Choice adds a selectable answer. Label defaults to value.
func (s *StepBuilder) Choice(value, label string, next int) *StepBuilder {
	if label == "" {
		label = value
	}
	s.choices = append(s.choices, domain.Choice{Value: value, Label: label, Next: next})
	return s
}

// Input marks the step as a free-input step of the given kind.
func (s *StepBuilder) Input(kind domain.StepKind) *StepBuilder {
	s.kind = kind
	return s
}

// Number constrains answers to numbers, optionally bounded.
func (s *StepBuilder) Number(lo, hi *float64) *StepBuilder {
	s.validation = &domain.Validation{Type: "number", Min: lo, Max: hi}
	return s
}

// Range is Number with both bounds set.
func (s *StepBuilder) Range(lo, hi float64) *StepBuilder {
	return s.Number(&lo, &hi)
}

// Validation sets the answer constraints.
func (s *StepBuilder) Validation(v *domain.Validation) *StepBuilder {
	s.validation = v
	return s
}

// Optional allows the step to be skipped without an answer.
func (s *StepBuilder) Optional() *StepBuilder {
	s.optional = true
	return s
}

// Suggest sets the values offered by a symptom picker.
func (s *StepBuilder) Suggest(values ...string) *StepBuilder {
	s.suggestions = append(s.suggestions, values...)
	return s
}

// Compute marks the step as auto-advancing once the named computation resolves.
func (s *StepBuilder) Compute(name string) *StepBuilder {
	s.compute = name
	return s
}

// Go sets the direct successor of a non-choice step.
func (s *StepBuilder) Go(next int) *StepBuilder {
	s.next = &next
	return s
}

// Terminal marks the step as the end of the flow.
func (s *StepBuilder) Terminal() *StepBuilder {
	s.terminal = true
	return s
}

func (s *StepBuilder) build() (domain.Step, error) {
	base := domain.StepBase{StepID: s.id, FieldKey: s.key, PromptText: s.prompt}

	switch {
	case s.terminal:
		if s.next != nil || len(s.choices) > 0 {
			return nil, fmt.Errorf("step %d: terminal step cannot have transitions", s.id)
		}
		return &domain.TerminalStep{StepBase: base}, nil

	case s.compute != "":
		if s.next == nil {
			return nil, fmt.Errorf("step %d: computed step needs a successor", s.id)
		}
		return &domain.AutoAdvanceStep{StepBase: base, Compute: s.compute, Next: *s.next}, nil

	case len(s.choices) > 0:
		if s.next != nil {
			return nil, fmt.Errorf("step %d: choice step cannot have a direct successor", s.id)
		}
		if s.kind != "" && s.kind != domain.KindChoice {
			return nil, fmt.Errorf("step %d: kind %q cannot have choices", s.id, s.kind)
		}
		return &domain.ChoiceStep{StepBase: base, Choices: slices.Clone(s.choices)}, nil

	default:
		kind := s.kind
		if kind == "" {
			kind = domain.KindFreeText
		}
		if !kind.IsFreeInput() {
			return nil, fmt.Errorf("step %d: kind %q needs choices or a computation", s.id, kind)
		}
		if s.next == nil {
			return nil, fmt.Errorf("step %d: input step needs a successor", s.id)
		}
		if s.key == "" {
			return nil, fmt.Errorf("step %d: input step needs a key", s.id)
		}
		return &domain.FreeInputStep{
			StepBase:    base,
			InputKind:   kind,
			Validation:  s.validation,
			Optional:    s.optional,
			Suggestions: slices.Clone(s.suggestions),
			Next:        *s.next,
		}, nil
	}
}
