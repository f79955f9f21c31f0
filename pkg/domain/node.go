package domain

// StepKind defines the input and transition behavior of a step.
type StepKind string

const (
	KindChoice         StepKind = "choice"
	KindFreeText       StepKind = "free-text"
	KindNLPInput       StepKind = "nlp-input"
	KindSymptomPicker  StepKind = "symptom-picker"
	KindImageUpload    StepKind = "image-upload"
	KindComputedResult StepKind = "computed-result"
	KindSummary        StepKind = "summary"
)

// IsFreeInput reports whether the kind collects a user supplied value
// that is not picked from a list of choices.
func (k StepKind) IsFreeInput() bool {
	switch k {
	case KindFreeText, KindNLPInput, KindSymptomPicker, KindImageUpload:
		return true
	}
	return false
}

// Step is one node of the flow graph.
// The set of implementations is closed: ChoiceStep, FreeInputStep,
// AutoAdvanceStep and TerminalStep.
type Step interface {
	ID() int
	// Key is the answer field name. Empty for informational or terminal steps.
	Key() string
	Kind() StepKind
	// Prompt is the display text, already localized for the graph variant.
	Prompt() string
	Terminal() bool
	// Successors lists every step id reachable in one transition.
	Successors() []int

	isStep()
}

// StepBase holds the fields shared by every step kind.
type StepBase struct {
	StepID     int    `json:"id" yaml:"id"`
	FieldKey   string `json:"key,omitempty" yaml:"key,omitempty"`
	PromptText string `json:"prompt" yaml:"prompt"`
}

func (b StepBase) ID() int        { return b.StepID }
func (b StepBase) Key() string    { return b.FieldKey }
func (b StepBase) Prompt() string { return b.PromptText }
func (b StepBase) Terminal() bool { return false }
func (b StepBase) isStep()        {}

// Choice is one selectable answer of a ChoiceStep.
type Choice struct {
	// Value is the canonical, locale independent answer stored in the session.
	Value string `json:"value" yaml:"value"`
	// Label is the localized display text.
	Label string `json:"label" yaml:"label"`
	Next  int    `json:"next" yaml:"next"`
}

// ChoiceStep asks the user to pick one of a fixed list of answers.
// Each choice carries its own transition.
type ChoiceStep struct {
	StepBase
	Choices []Choice `json:"choices" yaml:"choices"`
}

func (s *ChoiceStep) Kind() StepKind { return KindChoice }

func (s *ChoiceStep) Successors() []int {
	ids := make([]int, 0, len(s.Choices))
	for _, c := range s.Choices {
		ids = append(ids, c.Next)
	}
	return ids
}

// Labels returns the localized labels in declaration order.
func (s *ChoiceStep) Labels() []string {
	labels := make([]string, len(s.Choices))
	for i, c := range s.Choices {
		labels[i] = c.Label
	}
	return labels
}

// Validation constrains free-text answers.
type Validation struct {
	// Type is "number" for numeric answers, empty for plain text.
	Type string   `json:"type,omitempty" yaml:"type,omitempty"`
	Min  *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max  *float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// Numeric reports whether answers must parse as numbers.
func (v *Validation) Numeric() bool {
	return v != nil && (v.Type == "number" || v.Min != nil || v.Max != nil)
}

// FreeInputStep collects a typed value (text, description, symptom list or upload).
type FreeInputStep struct {
	StepBase
	InputKind  StepKind    `json:"kind" yaml:"kind"`
	Validation *Validation `json:"validation,omitempty" yaml:"validation,omitempty"`
	Optional   bool        `json:"optional,omitempty" yaml:"optional,omitempty"`
	// Suggestions are offered by symptom pickers. Other values are accepted too.
	Suggestions []string `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
	Next        int      `json:"next" yaml:"next"`
}

func (s *FreeInputStep) Kind() StepKind    { return s.InputKind }
func (s *FreeInputStep) Successors() []int { return []int{s.Next} }

// AutoAdvanceStep requires no user input. The host resolves the named
// computation and the step advances with its result.
type AutoAdvanceStep struct {
	StepBase
	Compute string `json:"compute" yaml:"compute"`
	Next    int    `json:"next" yaml:"next"`
}

func (s *AutoAdvanceStep) Kind() StepKind    { return KindComputedResult }
func (s *AutoAdvanceStep) Successors() []int { return []int{s.Next} }

// TerminalStep ends the questionnaire.
type TerminalStep struct {
	StepBase
}

func (s *TerminalStep) Kind() StepKind    { return KindSummary }
func (s *TerminalStep) Terminal() bool    { return true }
func (s *TerminalStep) Successors() []int { return nil }
