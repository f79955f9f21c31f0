package flow

import (
	"fmt"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/aretw0/triage/pkg/domain"
)

// SymptomList normalizes a picker answer into a trimmed, de-duplicated list.
// It accepts []string, []any of strings or a comma-separated string.
// Order of first occurrence is kept.
func SymptomList(answer any) ([]string, error) {
	var raw []string
	switch a := answer.(type) {
	case nil:
		return []string{}, nil
	case []string:
		raw = a
	case []any:
		for _, e := range a {
			s, ok := e.(string)
			if !ok {
				return nil, fmt.Errorf("symptom %v is not a string", e)
			}
			raw = append(raw, s)
		}
	case string:
		raw = strings.Split(a, ",")
	default:
		return nil, fmt.Errorf("unsupported symptom list %T", answer)
	}
	return MergeSymptoms(nil, raw...), nil
}

// MergeSymptoms appends symptoms to list, skipping blanks and
// case-insensitive duplicates. The input list is not modified.
func MergeSymptoms(list []string, add ...string) []string {
	out := make([]string, 0, len(list)+len(add))
	seen := make(map[string]bool, len(list)+len(add))
	for _, s := range append(append([]string{}, list...), add...) {
		s = strings.TrimSpace(s)
		k := strings.ToLower(s)
		if s == "" || seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, s)
	}
	return out
}

// AsBlobRef converts an upload answer into a blob reference. Besides
// BlobRef values it decodes the generic maps produced by JSON transports.
func AsBlobRef(answer any) (*domain.BlobRef, error) {
	switch a := answer.(type) {
	case domain.BlobRef:
		return &a, validRef(&a)
	case *domain.BlobRef:
		if a == nil {
			return nil, fmt.Errorf("nil blob reference")
		}
		c := *a
		return &c, validRef(&c)
	case map[string]any:
		var ref domain.BlobRef
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           &ref,
			WeaklyTypedInput: true,
			TagName:          "json",
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(a); err != nil {
			return nil, fmt.Errorf("failed to decode blob reference: %w", err)
		}
		return &ref, validRef(&ref)
	}
	return nil, fmt.Errorf("unsupported upload answer %T", answer)
}

func validRef(ref *domain.BlobRef) error {
	if ref.Key == "" {
		return fmt.Errorf("blob reference without key")
	}
	return nil
}
