package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/ports"
)

// Mask replaces masked values.
const Mask = "***"

// DefaultPIIScopes are the records masked when no scope is given. They are
// written for display only and never read back into a submission.
var DefaultPIIScopes = []string{domain.StoreKeyHistory, domain.StoreKeyProfile}

type piiMiddleware struct {
	next     ports.BlobStore
	patterns []*regexp.Regexp
	scopes   []string
}

// NewPIIMiddleware masks JSON fields whose names match any of the patterns
// before values reach the store. Only store keys starting with one of
// scopes are rewritten, DefaultPIIScopes when none are given. Non-JSON
// values pass through untouched.
//
// Sessions cannot be scoped: their answers are read back and submitted, so
// masking them would send the mask to the triage service.
func NewPIIMiddleware(patternStrings []string, scopes ...string) (Middleware, error) {
	if len(scopes) == 0 {
		scopes = DefaultPIIScopes
	}
	for _, sc := range scopes {
		if strings.HasPrefix(domain.StorePrefixSession, sc) || strings.HasPrefix(sc, domain.StorePrefixSession) {
			return nil, fmt.Errorf("PII scope %q covers session documents, whose answers are submitted", sc)
		}
	}
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid PII pattern %q: %w", p, err)
		}
		patterns[i] = re
	}
	return func(next ports.BlobStore) ports.BlobStore {
		return &piiMiddleware{next: next, patterns: patterns, scopes: scopes}
	}, nil
}

func (m *piiMiddleware) inScope(key string) bool {
	for _, s := range m.scopes {
		if strings.HasPrefix(key, s) {
			return true
		}
	}
	return false
}

func (m *piiMiddleware) Put(ctx context.Context, key string, value []byte) error {
	if !m.inScope(key) {
		return m.next.Put(ctx, key, value)
	}
	trimmed := bytes.TrimSpace(value)
	if len(trimmed) == 0 || (trimmed[0] != '{' && trimmed[0] != '[') {
		return m.next.Put(ctx, key, value)
	}

	var doc any
	if err := json.Unmarshal(trimmed, &doc); err != nil {
		return m.next.Put(ctx, key, value)
	}
	masked, err := json.Marshal(maskValue(doc, m.patterns))
	if err != nil {
		return fmt.Errorf("failed to encode masked %s: %w", key, err)
	}
	return m.next.Put(ctx, key, masked)
}

func (m *piiMiddleware) Get(ctx context.Context, key string) ([]byte, error) {
	return m.next.Get(ctx, key)
}

func (m *piiMiddleware) Delete(ctx context.Context, key string) error {
	return m.next.Delete(ctx, key)
}

func (m *piiMiddleware) List(ctx context.Context, prefix string) ([]string, error) {
	return m.next.List(ctx, prefix)
}

// maskValue walks a decoded JSON document. The document is freshly decoded
// so it is rewritten in place.
func maskValue(v any, patterns []*regexp.Regexp) any {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			if matchesAny(k, patterns) && child != nil {
				t[k] = Mask
				continue
			}
			t[k] = maskValue(child, patterns)
		}
	case []any:
		for i := range t {
			t[i] = maskValue(t[i], patterns)
		}
	}
	return v
}

func matchesAny(k string, patterns []*regexp.Regexp) bool {
	for _, p := range patterns {
		if p.MatchString(k) {
			return true
		}
	}
	return false
}
