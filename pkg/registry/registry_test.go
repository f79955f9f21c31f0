package registry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aretw0/triage/pkg/adapters/memory"
	"github.com/aretw0/triage/pkg/adapters/remote"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/flow"
	"github.com/aretw0/triage/pkg/registry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_Execute(t *testing.T) {
	r := registry.NewRegistry()
	r.Register("echo", func(_ context.Context, answers map[string]any) (any, error) {
		answers["touched"] = true
		return answers["x"], nil
	})

	answers := map[string]any{"x": "y"}
	got, err := r.Execute(context.Background(), "echo", answers)
	require.NoError(t, err)
	assert.Equal(t, "y", got)
	assert.NotContains(t, answers, "touched", "computations work on a copy")

	_, err = r.Execute(context.Background(), "nope", nil)
	assert.ErrorIs(t, err, registry.ErrUnknownComputation)
	assert.Equal(t, []string{"echo"}, r.Names())
}

func TestRegistry_Missing(t *testing.T) {
	g, err := flow.Default(domain.VariantPlain)
	require.NoError(t, err)

	empty := registry.NewRegistry()
	assert.Equal(t, []string{registry.SkinAnalysisName}, empty.Missing(g.Steps()))

	full := registry.Default(memory.NewStore(), nil)
	assert.Empty(t, full.Missing(g.Steps()))
}

func TestToken(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, registry.TokenFrom(ctx))
	assert.Equal(t, "abc", registry.TokenFrom(registry.WithToken(ctx, "abc")))
}

func TestSkinAnalysis(t *testing.T) {
	store := memory.NewStore()
	mock := remote.NewMock()
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "blob:img", []byte("jpeg-bytes")))

	fn := registry.SkinAnalysis(store, mock)

	ref := domain.BlobRef{Key: "blob:img", ContentType: "image/jpeg", Size: 10}
	res, err := fn(ctx, map[string]any{domain.KeySkinImage: ref})
	require.NoError(t, err)
	m := res.(map[string]any)
	assert.Equal(t, "benign-nevus", m["label"])
	assert.Equal(t, "blob:img", m["image"])

	// JSON-decoded answers arrive as plain maps.
	res, err = fn(ctx, map[string]any{domain.KeySkinImage: map[string]any{"key": "blob:img", "content_type": "image/jpeg"}})
	require.NoError(t, err)
	assert.Equal(t, "blob:img", res.(map[string]any)["image"])

	_, err = fn(ctx, map[string]any{})
	var ve *domain.ValidationError
	assert.True(t, errors.As(err, &ve))

	_, err = fn(ctx, map[string]any{domain.KeySkinImage: domain.BlobRef{Key: "blob:gone"}})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	mock.Fail(remote.OpImage, errors.New("model down"))
	_, err = fn(ctx, map[string]any{domain.KeySkinImage: ref})
	var te *domain.TransportError
	assert.True(t, errors.As(err, &te))
}
