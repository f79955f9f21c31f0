package flow

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/triage/pkg/domain"
)

// Advance applies an answer to the session's current step and returns the
// resulting session. The input session is never mutated. On error the
// caller keeps its previous snapshot unchanged.
//
// Choice steps accept a choice value or label (case-insensitive) or a
// zero-based index. Free-input steps accept nil only when optional; the
// skip leaves the answers untouched. Computed steps require the resolved
// computation result; a nil result is rejected so an unresolved step is
// never passed.
func Advance(g *Graph, s *domain.Session, answer any) (*domain.Session, error) {
	if s == nil {
		return nil, domain.ErrSessionNotFound
	}
	if s.Submitting {
		return nil, domain.ErrSubmissionInProgress
	}

	current, err := g.Step(s.CurrentStepID)
	if err != nil {
		return nil, err
	}
	if s.Completed() || current.Terminal() {
		return nil, &domain.SessionTerminatedError{SessionID: s.ID, StepID: s.CurrentStepID}
	}

	var (
		value any
		store bool
		next  int
	)

	switch st := current.(type) {
	case *domain.ChoiceStep:
		c, err := MatchChoice(st, answer)
		if err != nil {
			return nil, err
		}
		value, store, next = c.Value, true, c.Next

	case *domain.FreeInputStep:
		v, skipped, err := NormalizeInput(st, answer)
		if err != nil {
			return nil, err
		}
		value, store, next = v, !skipped, st.Next

	case *domain.AutoAdvanceStep:
		if answer == nil {
			return nil, &domain.ValidationError{StepID: st.ID(), Key: st.Key(), Bound: domain.BoundRequired}
		}
		value, store, next = answer, true, st.Next

	default:
		return nil, fmt.Errorf("step %d: unsupported step type %T", st.ID(), st)
	}

	target, err := g.Step(next)
	if err != nil {
		return nil, err
	}

	ns := s.Clone()
	if store && current.Key() != "" {
		ns.Answers[current.Key()] = value
	}
	ns.CurrentStepID = next
	ns.Trail = append(ns.Trail, next)
	if target.Terminal() {
		ns.Status = domain.StatusCompleted
	}
	ns.Error = ""
	ns.UpdatedAt = time.Now().UTC()
	return ns, nil
}

// Back returns the session positioned at the previously visited step.
// Computed steps on the way are skipped, since they take no input and
// would run again straight away. Answers are kept so the step can be
// revised.
func Back(g *Graph, s *domain.Session) (*domain.Session, error) {
	if s == nil {
		return nil, domain.ErrSessionNotFound
	}
	if s.Submitting {
		return nil, domain.ErrSubmissionInProgress
	}
	if s.Completed() {
		return nil, &domain.SessionTerminatedError{SessionID: s.ID, StepID: s.CurrentStepID}
	}

	trail := s.Trail
	for len(trail) >= 2 {
		trail = trail[:len(trail)-1]
		st, err := g.Step(trail[len(trail)-1])
		if err != nil {
			return nil, err
		}
		if _, auto := st.(*domain.AutoAdvanceStep); !auto {
			ns := s.Clone()
			ns.Trail = slices.Clone(trail)
			ns.CurrentStepID = st.ID()
			ns.Error = ""
			ns.UpdatedAt = time.Now().UTC()
			return ns, nil
		}
	}
	return nil, domain.ErrNoPreviousStep
}

// MatchChoice resolves an answer against the choices of a step.
func MatchChoice(st *domain.ChoiceStep, answer any) (domain.Choice, error) {
	invalid := &domain.InvalidChoiceError{StepID: st.ID(), Answer: answer, Choices: st.Labels()}

	byIndex := func(i int) (domain.Choice, error) {
		if i < 0 || i >= len(st.Choices) {
			return domain.Choice{}, invalid
		}
		return st.Choices[i], nil
	}

	switch a := answer.(type) {
	case string:
		text := strings.TrimSpace(a)
		if text == "" {
			return domain.Choice{}, invalid
		}
		for _, c := range st.Choices {
			if strings.EqualFold(text, c.Value) || strings.EqualFold(text, c.Label) {
				return c, nil
			}
		}
		// A bilingual label "Male/Wati" also matches either half.
		for _, c := range st.Choices {
			for _, part := range strings.Split(c.Label, "/") {
				if strings.EqualFold(text, strings.TrimSpace(part)) {
					return c, nil
				}
			}
		}
		if i, err := strconv.Atoi(text); err == nil {
			return byIndex(i)
		}
	case int:
		return byIndex(a)
	case int64:
		return byIndex(int(a))
	case float64:
		if a == math.Trunc(a) {
			return byIndex(int(a))
		}
	case domain.Choice:
		for _, c := range st.Choices {
			if c.Value == a.Value {
				return c, nil
			}
		}
	}
	return domain.Choice{}, invalid
}

// NormalizeInput validates a free-input answer and converts it to the
// value stored in the session. skipped is true when an optional step was
// left blank.
func NormalizeInput(st *domain.FreeInputStep, answer any) (value any, skipped bool, err error) {
	if isBlank(answer) {
		if st.Optional {
			return nil, true, nil
		}
		return nil, false, &domain.ValidationError{StepID: st.ID(), Key: st.Key(), Bound: domain.BoundRequired}
	}

	switch st.Kind() {
	case domain.KindSymptomPicker:
		list, err := SymptomList(answer)
		if err != nil {
			return nil, false, &domain.ValidationError{StepID: st.ID(), Key: st.Key(), Bound: domain.BoundType, Value: answer}
		}
		if len(list) == 0 {
			if st.Optional {
				return nil, true, nil
			}
			return nil, false, &domain.ValidationError{StepID: st.ID(), Key: st.Key(), Bound: domain.BoundRequired}
		}
		return list, false, nil

	case domain.KindImageUpload:
		ref, err := AsBlobRef(answer)
		if err != nil {
			return nil, false, &domain.ValidationError{StepID: st.ID(), Key: st.Key(), Bound: domain.BoundType, Value: answer}
		}
		return ref, false, nil
	}

	if st.Validation.Numeric() {
		n, err := validateNumber(st, answer)
		return n, false, err
	}

	switch a := answer.(type) {
	case string:
		return strings.TrimSpace(a), false, nil
	case fmt.Stringer:
		return a.String(), false, nil
	default:
		return fmt.Sprint(a), false, nil
	}
}

func validateNumber(st *domain.FreeInputStep, answer any) (float64, error) {
	var n float64
	switch a := answer.(type) {
	case float64:
		n = a
	case float32:
		n = float64(a)
	case int:
		n = float64(a)
	case int64:
		n = float64(a)
	case json.Number:
		f, err := a.Float64()
		if err != nil {
			return 0, &domain.ValidationError{StepID: st.ID(), Key: st.Key(), Bound: domain.BoundType, Value: answer}
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(a), 64)
		if err != nil {
			return 0, &domain.ValidationError{StepID: st.ID(), Key: st.Key(), Bound: domain.BoundType, Value: answer}
		}
		n = f
	default:
		return 0, &domain.ValidationError{StepID: st.ID(), Key: st.Key(), Bound: domain.BoundType, Value: answer}
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, &domain.ValidationError{StepID: st.ID(), Key: st.Key(), Bound: domain.BoundType, Value: answer}
	}

	v := st.Validation
	if v.Min != nil && n < *v.Min {
		return 0, &domain.ValidationError{StepID: st.ID(), Key: st.Key(), Bound: domain.BoundMin, Limit: v.Min, Value: n}
	}
	if v.Max != nil && n > *v.Max {
		return 0, &domain.ValidationError{StepID: st.ID(), Key: st.Key(), Bound: domain.BoundMax, Limit: v.Max, Value: n}
	}
	return n, nil
}

func isBlank(answer any) bool {
	switch a := answer.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(a) == ""
	case *domain.BlobRef:
		return a == nil
	}
	return false
}
