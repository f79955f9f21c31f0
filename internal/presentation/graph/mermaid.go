package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/flow"
)

// Overlay contains session state to highlight on the graph.
type Overlay struct {
	Visited []int
	Current *int
}

// OverlayFor builds the overlay of a session.
func OverlayFor(s *domain.Session) *Overlay {
	if s == nil {
		return nil
	}
	cur := s.CurrentStepID
	return &Overlay{Visited: s.Trail, Current: &cur}
}

// GenerateMermaid produces a Mermaid flowchart of g.
// Shapes follow the step kind:
// - Entry: ((Circle))
// - Computed: [[Subroutine]]
// - Free input: [/Parallelogram/]
// - Summary: ([Stadium])
// - Choice: {Rhombus}
// Choice edges are labelled with the choice value.
func GenerateMermaid(g *flow.Graph, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for _, st := range g.Steps() {
		id := nodeID(st.ID())
		opener, closer := "[", "]"
		switch {
		case st.ID() == g.InitialStepID():
			opener, closer = "((", "))"
		case st.Kind() == domain.KindComputedResult:
			opener, closer = "[[", "]]"
		case st.Terminal():
			opener, closer = "([", "])"
		case st.Kind() == domain.KindChoice:
			opener, closer = "{", "}"
		case st.Kind().IsFreeInput():
			opener, closer = "[/", "/]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", id, opener, label(st), closer)

		switch s := st.(type) {
		case *domain.ChoiceStep:
			for _, c := range s.Choices {
				fmt.Fprintf(&sb, "    %s -- \"%s\" --> %s\n", id, escape(c.Value), nodeID(c.Next))
			}
		case *domain.AutoAdvanceStep:
			fmt.Fprintf(&sb, "    %s -. \"%s\" .-> %s\n", id, escape(s.Compute), nodeID(s.Next))
		default:
			for _, next := range st.Successors() {
				fmt.Fprintf(&sb, "    %s --> %s\n", id, nodeID(next))
			}
		}
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		// Black text keeps contrast on light fills in both themes.
		sb.WriteString("    classDef visited fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		seen := make(map[int]bool)
		for _, v := range overlay.Visited {
			if seen[v] {
				continue
			}
			if _, err := g.Step(v); err != nil {
				continue
			}
			seen[v] = true
			fmt.Fprintf(&sb, "    class %s visited;\n", nodeID(v))
		}
		if overlay.Current != nil {
			fmt.Fprintf(&sb, "    class %s current;\n", nodeID(*overlay.Current))
		}
	}

	return sb.String()
}

func nodeID(id int) string {
	return fmt.Sprintf("s%d", id)
}

func label(st domain.Step) string {
	if st.Key() == "" {
		return fmt.Sprintf("%d: %s", st.ID(), st.Kind())
	}
	return fmt.Sprintf("%d: %s", st.ID(), escape(st.Key()))
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}
