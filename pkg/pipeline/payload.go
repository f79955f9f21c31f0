package pipeline

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/flow"
)

// BuildPayload projects the session answers into the remote request shape.
// Absent answers become nil pointers (JSON null); Symptoms is never nil.
func BuildPayload(s *domain.Session) domain.Payload {
	a := s.Answers

	symptoms, err := flow.SymptomList(a[domain.KeySymptoms])
	if err != nil || symptoms == nil {
		symptoms = []string{}
	}

	var skin *domain.BlobRef
	if v, ok := a[domain.KeySkinImage]; ok && v != nil {
		if ref, err := flow.AsBlobRef(v); err == nil {
			skin = ref
		}
	}

	return domain.Payload{
		Text:     text(a, domain.KeyNLPSymptoms),
		Symptoms: symptoms,
		Profile: domain.Profile{
			FullName:    text(a, domain.KeyFullName),
			Age:         number(a, domain.KeyAge),
			Gender:      text(a, domain.KeyGender),
			Conditions:  text(a, domain.KeyConditions),
			Allergies:   text(a, domain.KeyAllergies),
			Medications: text(a, domain.KeyMedications),
		},
		SelfAssessment: domain.SelfAssessment{
			Severity: text(a, domain.KeySeverity),
			Feeling:  text(a, domain.KeyFeeling),
		},
		Service:    text(a, domain.KeyService),
		SkinImage:  skin,
		SkinResult: a[domain.KeySkinResult],
	}
}

// ValidatePayload requires at least one symptom source.
func ValidatePayload(p domain.Payload) error {
	if p.Text != nil || len(p.Symptoms) > 0 || p.SkinImage != nil {
		return nil
	}
	return &domain.ValidationError{Key: domain.KeySymptoms, Bound: domain.BoundRequired}
}

func text(a map[string]any, key string) *string {
	v, ok := a[key]
	if !ok || v == nil {
		return nil
	}
	var s string
	switch t := v.(type) {
	case string:
		s = strings.TrimSpace(t)
	case fmt.Stringer:
		s = t.String()
	default:
		s = fmt.Sprint(t)
	}
	if s == "" {
		return nil
	}
	return &s
}

func number(a map[string]any, key string) *float64 {
	var n float64
	switch t := a[key].(type) {
	case float64:
		n = t
	case int:
		n = float64(t)
	case int64:
		n = float64(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return nil
		}
		n = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil
		}
		n = f
	default:
		return nil
	}
	return &n
}
