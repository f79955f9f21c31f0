package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/triage/pkg/domain"
)

func TestDefault_Closure(t *testing.T) {
	for _, v := range []domain.Variant{domain.VariantBilingual, domain.VariantPlain} {
		t.Run(string(v), func(t *testing.T) {
			g, err := Default(v)
			require.NoError(t, err)
			require.NoError(t, g.Validate())

			for _, id := range g.Reachable() {
				st, err := g.Step(id)
				require.NoError(t, err)
				if st.Terminal() {
					assert.Empty(t, st.Successors(), "terminal step %d", id)
					continue
				}
				for _, next := range st.Successors() {
					_, err := g.Step(next)
					assert.NoError(t, err, "step %d -> %d", id, next)
				}
			}
			assert.Empty(t, g.Unreachable())
		})
	}
}

func TestDefault_VariantsShareTopology(t *testing.T) {
	bi, err := Default(domain.VariantBilingual)
	require.NoError(t, err)
	plain, err := Default(domain.VariantPlain)
	require.NoError(t, err)

	require.Equal(t, bi.Len(), plain.Len())
	for _, st := range bi.Steps() {
		other, err := plain.Step(st.ID())
		require.NoError(t, err)
		assert.Equal(t, st.Kind(), other.Kind())
		assert.Equal(t, st.Key(), other.Key())
		if st.ID() == bi.InitialStepID() {
			continue
		}
		assert.Equal(t, st.Successors(), other.Successors(), "step %d", st.ID())
	}

	entryBi, _ := bi.Step(0)
	entryPlain, _ := plain.Step(0)
	assert.Len(t, entryBi.(*domain.ChoiceStep).Choices, 2)
	assert.Len(t, entryPlain.(*domain.ChoiceStep).Choices, 1)

	gender, _ := bi.Step(2)
	assert.Equal(t, "Male/Wati", gender.(*domain.ChoiceStep).Choices[0].Label)
	gender, _ = plain.Step(2)
	assert.Equal(t, "Male", gender.(*domain.ChoiceStep).Choices[0].Label)

	lang, _ := bi.Step(0)
	assert.Contains(t, lang.Prompt(), "/")
	lang, _ = plain.Step(0)
	assert.NotContains(t, lang.Prompt(), "/")
}

func TestGraph_UnknownStep(t *testing.T) {
	g, err := Default(domain.VariantPlain)
	require.NoError(t, err)

	_, err = g.Step(4)
	var unknown *domain.UnknownStepError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, 4, unknown.StepID)
}

func TestBuilder_SimpleFlow(t *testing.T) {
	b := New()
	b.Add(0).Key("name").Prompt("Name?").Go(1)
	b.Add(1).Key("mood").Prompt("Mood?").
		Choice("good", "Good", 2).
		Choice("bad", "", 0)
	b.Add(2).Prompt("Bye").Terminal()

	g, err := b.Build()
	require.NoError(t, err)

	st, err := g.Step(0)
	require.NoError(t, err)
	require.IsType(t, &domain.FreeInputStep{}, st)
	assert.Equal(t, domain.KindFreeText, st.Kind())

	st, err = g.Step(1)
	require.NoError(t, err)
	choice := st.(*domain.ChoiceStep)
	assert.Equal(t, []int{2, 0}, choice.Successors())
	assert.Equal(t, "bad", choice.Choices[1].Label)

	st, err = g.Step(2)
	require.NoError(t, err)
	assert.True(t, st.Terminal())
}

func TestBuilder_Errors(t *testing.T) {
	t.Run("dangling successor", func(t *testing.T) {
		b := New()
		b.Add(0).Key("a").Go(7)
		_, err := b.Build()
		var unknown *domain.UnknownStepError
		require.ErrorAs(t, err, &unknown)
		assert.Equal(t, 7, unknown.StepID)
	})

	t.Run("missing entry", func(t *testing.T) {
		b := New().Entry(3)
		b.Add(0).Terminal()
		_, err := b.Build()
		require.Error(t, err)
	})

	t.Run("terminal with transition", func(t *testing.T) {
		b := New()
		b.Add(0).Terminal().Go(0)
		_, err := b.Build()
		require.Error(t, err)
	})

	t.Run("choice with direct successor", func(t *testing.T) {
		b := New()
		b.Add(0).Choice("x", "", 1).Go(1)
		b.Add(1).Terminal()
		_, err := b.Build()
		require.Error(t, err)
	})

	t.Run("input without key", func(t *testing.T) {
		b := New()
		b.Add(0).Go(1)
		b.Add(1).Terminal()
		_, err := b.Build()
		require.Error(t, err)
	})
}

func TestDefinition_Compile(t *testing.T) {
	def, err := ParseDefinition([]byte(`
entry: 1
steps:
  - id: 1
    key: lang
    kind: choice
    prompt: {en: Language?, wbp: Wangka?}
    choices:
      - value: en
        label: {en: English}
        next: 2
      - value: wbp
        label: {en: Warlpiri}
        next: 2
        variants: [bilingual]
  - id: 2
    kind: summary
    prompt: {en: Done}
`))
	require.NoError(t, err)

	g, err := def.Compile(domain.VariantBilingual)
	require.NoError(t, err)
	assert.Equal(t, 1, g.InitialStepID())
	st, _ := g.Step(1)
	assert.Equal(t, "Language?/Wangka?", st.Prompt())
	assert.Len(t, st.(*domain.ChoiceStep).Choices, 2)

	g, err = def.Compile(domain.VariantPlain)
	require.NoError(t, err)
	st, _ = g.Step(1)
	assert.Equal(t, "Language?", st.Prompt())
	assert.Len(t, st.(*domain.ChoiceStep).Choices, 1)

	_, err = def.Compile("klingon")
	require.Error(t, err)
}

func TestParseVariant(t *testing.T) {
	v, err := ParseVariant("")
	require.NoError(t, err)
	assert.Equal(t, domain.VariantBilingual, v)

	v, err = ParseVariant(" Plain ")
	require.NoError(t, err)
	assert.Equal(t, domain.VariantPlain, v)

	_, err = ParseVariant("fr")
	require.Error(t, err)
}
