package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/flow"
	"github.com/aretw0/triage/pkg/ports"
)

// SkinAnalysisName is the compute name of the skin lesion analyzer.
const SkinAnalysisName = "skin-analysis"

// SkinAnalysis sends the uploaded skin image to analyzer. The image is read
// from store through the BlobRef recorded under the skinImage answer.
func SkinAnalysis(store ports.BlobStore, analyzer ports.ImageAnalyzer) Computation {
	return func(ctx context.Context, answers map[string]any) (any, error) {
		if analyzer == nil {
			return nil, errors.New("skin analysis: no image analyzer configured")
		}
		raw, ok := answers[domain.KeySkinImage]
		if !ok || raw == nil {
			return nil, &domain.ValidationError{Key: domain.KeySkinImage, Bound: domain.BoundRequired}
		}
		ref, err := flow.AsBlobRef(raw)
		if err != nil {
			return nil, fmt.Errorf("skin analysis: %w", err)
		}
		data, err := store.Get(ctx, ref.Key)
		if err != nil {
			return nil, fmt.Errorf("skin analysis: load %s: %w", ref.Key, err)
		}

		result, err := analyzer.AnalyzeImage(ctx, TokenFrom(ctx), data, ref.ContentType)
		if err != nil {
			return nil, fmt.Errorf("skin analysis: %w", err)
		}
		if result == nil {
			result = map[string]any{}
		}
		result["image"] = ref.Key
		return result, nil
	}
}

// Default returns a registry holding the computations the built-in flow uses.
func Default(store ports.BlobStore, analyzer ports.ImageAnalyzer) *Registry {
	r := NewRegistry()
	r.Register(SkinAnalysisName, SkinAnalysis(store, analyzer))
	return r
}
