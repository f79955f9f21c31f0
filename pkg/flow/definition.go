package flow

import (
	_ "embed"
	"fmt"
	"os"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/triage/pkg/domain"
)

//go:embed triage.yaml
var defaultDefinition []byte

// Definition is the variant independent description of a flow.
type Definition struct {
	Name  string           `yaml:"name"`
	Entry int              `yaml:"entry"`
	Steps []StepDefinition `yaml:"steps"`
}

// StepDefinition describes one step with localized texts.
type StepDefinition struct {
	ID          int                `yaml:"id"`
	Key         string             `yaml:"key,omitempty"`
	Kind        domain.StepKind    `yaml:"kind"`
	Prompt      Text               `yaml:"prompt"`
	Choices     []ChoiceDefinition `yaml:"choices,omitempty"`
	Validation  *domain.Validation `yaml:"validation,omitempty"`
	Optional    bool               `yaml:"optional,omitempty"`
	Suggestions []string           `yaml:"suggestions,omitempty"`
	Compute     string             `yaml:"compute,omitempty"`
	Next        *int               `yaml:"next,omitempty"`
}

// ChoiceDefinition describes one choice. Variants restricts the choice to
// the listed variants; empty means all.
type ChoiceDefinition struct {
	Value    string           `yaml:"value"`
	Label    Text             `yaml:"label,omitempty"`
	Next     int              `yaml:"next"`
	Variants []domain.Variant `yaml:"variants,omitempty"`
}

// ParseDefinition decodes a YAML flow definition.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse flow definition: %w", err)
	}
	if len(def.Steps) == 0 {
		return nil, fmt.Errorf("flow definition has no steps")
	}
	return &def, nil
}

// LoadDefinitionFile reads a YAML flow definition from disk.
func LoadDefinitionFile(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read flow definition: %w", err)
	}
	return ParseDefinition(data)
}

// DefaultDefinition returns the embedded triage flow.
func DefaultDefinition() *Definition {
	def, err := ParseDefinition(defaultDefinition)
	if err != nil {
		panic(fmt.Sprintf("embedded flow definition: %v", err))
	}
	return def
}

// Default compiles the embedded triage flow for a variant.
func Default(v domain.Variant) (*Graph, error) {
	return DefaultDefinition().Compile(v)
}

// Compile builds the graph of one variant. Every variant shares the
// same topology; only texts and variant-restricted choices differ.
func (d *Definition) Compile(v domain.Variant) (*Graph, error) {
	cat, err := CatalogFor(v)
	if err != nil {
		return nil, err
	}

	b := New().Variant(v).Entry(d.Entry)
	for _, sd := range d.Steps {
		sb := b.Add(sd.ID).Key(sd.Key).Prompt(cat.Render(sd.Prompt))
		switch {
		case sd.Kind == domain.KindSummary:
			sb.Terminal()
		case sd.Kind == domain.KindComputedResult:
			sb.Compute(sd.Compute)
		case sd.Kind == domain.KindChoice:
			n := 0
			for _, c := range sd.Choices {
				if len(c.Variants) > 0 && !slices.Contains(c.Variants, v) {
					continue
				}
				sb.Choice(c.Value, cat.Render(c.Label), c.Next)
				n++
			}
			if n == 0 {
				return nil, fmt.Errorf("step %d: no choices for %s variant", sd.ID, v)
			}
		default:
			sb.Input(sd.Kind).Validation(sd.Validation).Suggest(sd.Suggestions...)
			if sd.Optional {
				sb.Optional()
			}
		}
		if sd.Next != nil {
			sb.Go(*sd.Next)
		}
	}

	g, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s variant: %w", v, err)
	}
	return g, nil
}
