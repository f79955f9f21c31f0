package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/triage"
	"github.com/aretw0/triage/internal/config"
	"github.com/aretw0/triage/internal/testutils"
	"github.com/aretw0/triage/pkg/domain"
)

func lines(l ...string) io.Reader {
	return strings.NewReader(strings.Join(l, "\n") + "\n")
}

func TestRunWizard_Headless(t *testing.T) {
	app := newTestApp(t, testConfig(t, config.DriverMemory))
	var out bytes.Buffer

	rec, err := RunWizard(context.Background(), app, lines(testutils.CheckupAnswers...), &out, RunOptions{Variant: domain.VariantPlain, Headless: true})
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", rec.InputSnapshot.Answers[domain.KeyFullName])
	assert.Contains(t, out.String(), `"finalDecision"`)
	assert.NotContains(t, out.String(), "Submitted as job")

	history, err := app.Wizard.History(context.Background())
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRunWizard_PlainPrompt(t *testing.T) {
	app := newTestApp(t, testConfig(t, config.DriverMemory))
	var out bytes.Buffer

	rec, err := RunWizard(context.Background(), app, lines(testutils.CheckupAnswers...), &out, RunOptions{Variant: domain.VariantPlain})
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Submitted as job "+rec.JobID)
	assert.Contains(t, out.String(), "v"+strings.TrimSpace(triage.Version))
}

func TestRunWizard_Cancelled(t *testing.T) {
	app := newTestApp(t, testConfig(t, config.DriverMemory))
	pr, pw := io.Pipe()
	defer pw.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	_, err := RunWizard(ctx, app, pr, io.Discard, RunOptions{Headless: true})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoError(t, HandleExecutionError(err))
}

func TestHandleExecutionError(t *testing.T) {
	assert.NoError(t, HandleExecutionError(nil))
	assert.NoError(t, HandleExecutionError(triage.ErrAborted))
	boom := errors.New("boom")
	assert.Equal(t, boom, HandleExecutionError(boom))
}
