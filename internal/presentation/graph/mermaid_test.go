package graph_test

import (
	"strings"
	"testing"

	"github.com/aretw0/triage/internal/presentation/graph"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/flow"
)

func TestGenerateMermaid(t *testing.T) {
	g, err := flow.Default(domain.VariantPlain)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	tests := []struct {
		name     string
		contains []string
	}{
		{
			name:     "Entry Shape",
			contains: []string{`s0(("0: language"))`},
		},
		{
			name:     "Choice Shape And Edges",
			contains: []string{`s8{"8: service"}`, `s8 -- "Skin Lesion Analysis" --> s11`},
		},
		{
			name:     "Input Shape",
			contains: []string{`s3[/"3: age"/]`, "s3 --> s5"},
		},
		{
			name:     "Computed Shape",
			contains: []string{`s12[["12: skinResult"]]`, `s12 -. "skin-analysis" .-> s14`},
		},
		{
			name:     "Summary Shape",
			contains: []string{`s13(["13: summary"])`},
		},
	}

	out := graph.GenerateMermaid(g, nil)
	if !strings.HasPrefix(out, "graph TD\n") {
		t.Fatalf("missing header:\n%s", out)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, s := range tt.contains {
				if !strings.Contains(out, s) {
					t.Errorf("expected output to contain %q\nGot:\n%s", s, out)
				}
			}
		})
	}
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	g, err := flow.Default(domain.VariantPlain)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	s := domain.NewSession("s1", domain.VariantPlain, 0)
	s.Trail = []int{0, 1, 1, 2, 99}
	s.CurrentStepID = 2

	out := graph.GenerateMermaid(g, graph.OverlayFor(s))

	if strings.Count(out, "class s1 visited;") != 1 {
		t.Errorf("visited steps should be deduplicated:\n%s", out)
	}
	if strings.Contains(out, "s99") {
		t.Errorf("unknown steps should be ignored:\n%s", out)
	}
	if !strings.Contains(out, "class s2 current;") {
		t.Errorf("missing current marker:\n%s", out)
	}
}
