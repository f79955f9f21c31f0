package validator

import (
	"context"
	"strings"
	"testing"

	"github.com/aretw0/triage/pkg/flow"
	"github.com/aretw0/triage/pkg/registry"
)

func parse(t *testing.T, src string) *flow.Definition {
	t.Helper()
	def, err := flow.ParseDefinition([]byte(src))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return def
}

func TestValidateDefinition(t *testing.T) {
	reg := registry.Default(nil, nil)

	// Scenario A: the embedded flow is valid and fully reachable.
	rep := ValidateDefinition(flow.DefaultDefinition(), reg)
	if !rep.Valid() {
		t.Fatalf("default flow should be valid: %v", rep.Err())
	}
	if len(rep.Warnings) != 0 {
		t.Errorf("default flow should have no warnings, got %v", rep.Warnings)
	}

	// Scenario B: broken link.
	rep = ValidateDefinition(parse(t, `
entry: 0
steps:
  - id: 0
    key: q
    kind: choice
    prompt: {en: "Go?"}
    choices:
      - {value: "yes", label: {en: "Yes"}, next: 9}
  - id: 1
    kind: summary
    prompt: {en: "Done"}
`), reg)
	if rep.Valid() {
		t.Fatal("broken link should fail")
	}
	if !strings.Contains(rep.Err().Error(), "9") {
		t.Errorf("expected the dangling id in %v", rep.Err())
	}
}

func TestValidateDefinition_Unreachable(t *testing.T) {
	rep := ValidateDefinition(parse(t, `
entry: 0
steps:
  - id: 0
    key: name
    kind: free-text
    prompt: {en: "Name"}
    next: 2
  - id: 1
    key: orphan
    kind: free-text
    prompt: {en: "Never asked"}
    next: 2
  - id: 2
    kind: summary
    prompt: {en: "Done"}
`), nil)

	if !rep.Valid() {
		t.Fatalf("unreachable steps are not errors: %v", rep.Err())
	}
	// One warning per variant.
	if len(rep.Warnings) != 2 || !strings.Contains(rep.Warnings[0], "step 1 is unreachable from step 0") {
		t.Errorf("unexpected warnings: %v", rep.Warnings)
	}
}

func TestValidateDefinition_ChoiceWithoutKey(t *testing.T) {
	rep := ValidateDefinition(parse(t, `
entry: 0
steps:
  - id: 0
    kind: choice
    prompt: {en: "Continue?"}
    choices:
      - {value: "yes", label: {en: "Yes"}, next: 1}
      - {value: "yes", label: {en: "Sure"}, next: 1}
  - id: 1
    kind: summary
    prompt: {en: "Done"}
`), nil)

	if rep.Valid() || rep.Errors[0] != "step 0 (choice) has no answer key" {
		t.Fatalf("unexpected errors: %v", rep.Errors)
	}
	if len(rep.Warnings) != 1 || !strings.Contains(rep.Warnings[0], `repeats choice "yes"`) {
		t.Errorf("unexpected warnings: %v", rep.Warnings)
	}
}

func TestValidateDefinition_MissingComputation(t *testing.T) {
	src := `
entry: 0
steps:
  - id: 0
    key: r
    kind: computed-result
    compute: horoscope
    prompt: {en: "Reading the stars"}
    next: 1
  - id: 1
    kind: summary
    prompt: {en: "Done"}
`
	reg := registry.NewRegistry()
	rep := ValidateDefinition(parse(t, src), reg)
	if rep.Valid() || !strings.Contains(rep.Err().Error(), `computation "horoscope" is not registered`) {
		t.Fatalf("expected missing computation, got %v", rep.Err())
	}

	reg.Register("horoscope", func(context.Context, map[string]any) (any, error) { return "stars", nil })
	if rep := ValidateDefinition(parse(t, src), reg); !rep.Valid() {
		t.Errorf("registered computation should pass: %v", rep.Err())
	}
}

func TestValidateDefinition_NoTerminal(t *testing.T) {
	rep := ValidateDefinition(parse(t, `
entry: 0
steps:
  - id: 0
    key: loop
    kind: choice
    prompt: {en: "Again?"}
    choices:
      - {value: "yes", label: {en: "Yes"}, next: 0}
`), nil)
	if rep.Valid() || !strings.Contains(rep.Err().Error(), "no terminal step is reachable") {
		t.Fatalf("expected terminal error, got %v", rep.Err())
	}
}
