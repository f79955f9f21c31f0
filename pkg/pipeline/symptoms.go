package pipeline

import (
	"strings"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/flow"
)

// AddSymptom appends symptoms to the picker answer, ignoring duplicates.
func AddSymptom(s *domain.Session, symptoms ...string) error {
	current, err := flow.SymptomList(s.Answers[domain.KeySymptoms])
	if err != nil {
		current = nil
	}
	return RecordAnswer(s, domain.KeySymptoms, flow.MergeSymptoms(current, symptoms...))
}

// RemoveSymptom drops a symptom (case-insensitive) from the picker answer.
func RemoveSymptom(s *domain.Session, symptom string) error {
	current, err := flow.SymptomList(s.Answers[domain.KeySymptoms])
	if err != nil {
		current = nil
	}
	kept := make([]string, 0, len(current))
	for _, c := range current {
		if !equalFold(c, symptom) {
			kept = append(kept, c)
		}
	}
	return RecordAnswer(s, domain.KeySymptoms, kept)
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
