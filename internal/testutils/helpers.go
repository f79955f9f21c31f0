// Package testutils holds fixtures shared by the wizard, transport and
// CLI tests.
package testutils

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aretw0/triage"
	"github.com/aretw0/triage/pkg/adapters/remote"
)

// CheckupAnswers walks the plain flow through the general check-up and
// chooses to finish. Optional history steps are skipped.
var CheckupAnswers = []string{
	"English", "Jane Doe", "Female", "34", "", "", "",
	"General Check-up", "fever and cough", "No, submit", "Finish",
}

// NewWizard builds a Wizard on an in-memory store over a fresh mock.
func NewWizard(t *testing.T, opts ...triage.Option) (*triage.Wizard, *remote.Mock) {
	t.Helper()
	mock := remote.NewMock()
	w, err := triage.New(mock, opts...)
	require.NoError(t, err, "Failed to build wizard")
	return w, mock
}

// PNG encodes a size x size image, which passes image validation.
func PNG(t *testing.T, size int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for i := range size {
		img.Set(i, i, color.RGBA{R: 200, G: 120, B: 90, A: 255})
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img), "Failed to encode PNG")
	return buf.Bytes()
}
