package triage

import (
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/flow"
)

// View is a presentation-ready snapshot of a session and its current step.
type View struct {
	SessionID  string         `json:"session_id"`
	Variant    domain.Variant `json:"variant"`
	Status     string         `json:"status"`
	Step       StepView       `json:"step"`
	Answers    map[string]any `json:"answers"`
	Trail      []int          `json:"trail"`
	CanGoBack  bool           `json:"can_go_back"`
	Submitting bool           `json:"submitting"`
	Error      string         `json:"error,omitempty"`
	Report     domain.Report  `json:"report,omitempty"`
}

// StepView describes what the user is asked at the current step.
type StepView struct {
	ID          int             `json:"id"`
	Kind        domain.StepKind `json:"kind"`
	Key         string          `json:"key,omitempty"`
	Prompt      string          `json:"prompt"`
	Terminal    bool            `json:"terminal"`
	Optional    bool            `json:"optional,omitempty"`
	Choices     []ChoiceView    `json:"choices,omitempty"`
	Suggestions []string        `json:"suggestions,omitempty"`
	Numeric     bool            `json:"numeric,omitempty"`
	Min         *float64        `json:"min,omitempty"`
	Max         *float64        `json:"max,omitempty"`
}

type ChoiceView struct {
	Index int    `json:"index"`
	Value string `json:"value"`
	Label string `json:"label"`
}

// NewView renders s against g.
func NewView(g *flow.Graph, s *domain.Session) (*View, error) {
	st, err := g.Step(s.CurrentStepID)
	if err != nil {
		return nil, err
	}
	_, backErr := flow.Back(g, s)
	return &View{
		SessionID:  s.ID,
		Variant:    s.Variant,
		Status:     string(s.Status),
		Step:       DescribeStep(st),
		Answers:    domain.CloneAnswers(s.Answers),
		Trail:      append([]int(nil), s.Trail...),
		CanGoBack:  backErr == nil,
		Submitting: s.Submitting,
		Error:      s.Error,
		Report:     s.LastReport,
	}, nil
}

// DescribeStep flattens a step for display.
func DescribeStep(st domain.Step) StepView {
	v := StepView{
		ID:       st.ID(),
		Kind:     st.Kind(),
		Key:      st.Key(),
		Prompt:   st.Prompt(),
		Terminal: st.Terminal(),
	}
	switch t := st.(type) {
	case *domain.ChoiceStep:
		for i, c := range t.Choices {
			v.Choices = append(v.Choices, ChoiceView{Index: i, Value: c.Value, Label: c.Label})
		}
	case *domain.FreeInputStep:
		v.Optional = t.Optional
		v.Suggestions = t.Suggestions
		if t.Validation.Numeric() {
			v.Numeric = true
			v.Min, v.Max = t.Validation.Min, t.Validation.Max
		}
	}
	return v
}
