package flow

import (
	"fmt"
	"strings"

	"github.com/aretw0/triage/pkg/domain"
)

// Text is a localized string keyed by locale ("en", "wbp").
type Text map[string]string

// Catalog renders localized texts for one variant.
type Catalog struct {
	// Locales lists the locales to render, in order.
	Locales []string
	// Separator joins the rendered locales.
	Separator string
}

// CatalogFor returns the catalog of a variant.
func CatalogFor(v domain.Variant) (Catalog, error) {
	switch v {
	case domain.VariantBilingual:
		return Catalog{Locales: []string{"en", "wbp"}, Separator: "/"}, nil
	case domain.VariantPlain, "":
		return Catalog{Locales: []string{"en"}}, nil
	}
	return Catalog{}, fmt.Errorf("unknown variant %q", v)
}

// Render joins the catalog locales present in t. Missing locales are
// skipped; identical texts are rendered once.
func (c Catalog) Render(t Text) string {
	parts := make([]string, 0, len(c.Locales))
	for _, loc := range c.Locales {
		s := strings.TrimSpace(t[loc])
		if s == "" || contains(parts, s) {
			continue
		}
		parts = append(parts, s)
	}
	return strings.Join(parts, c.Separator)
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

// ParseVariant validates a variant name.
func ParseVariant(s string) (domain.Variant, error) {
	v := domain.Variant(strings.ToLower(strings.TrimSpace(s)))
	if v == "" {
		return domain.VariantBilingual, nil
	}
	if _, err := CatalogFor(v); err != nil {
		return "", err
	}
	return v, nil
}
