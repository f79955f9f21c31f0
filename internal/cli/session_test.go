package cli

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/triage/internal/config"
	"github.com/aretw0/triage/internal/testutils"
	"github.com/aretw0/triage/pkg/domain"
)

func TestSessionCommands(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t, testConfig(t, config.DriverFile))
	var out bytes.Buffer

	require.NoError(t, ListSessions(ctx, app, &out))
	assert.Contains(t, out.String(), "No sessions found.")

	s, err := app.Wizard.Start(ctx, domain.VariantPlain)
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, ListSessions(ctx, app, &out))
	assert.Contains(t, out.String(), "- "+s.ID+"  step 0  active")

	out.Reset()
	require.NoError(t, InspectSession(ctx, app, &out, s.ID))
	assert.Contains(t, out.String(), `"session_id": "`+s.ID+`"`)

	out.Reset()
	require.NoError(t, RemoveSessions(ctx, app, &out, s.ID))
	assert.Contains(t, out.String(), "Removed session '"+s.ID+"'")

	assert.Error(t, InspectSession(ctx, app, &out, s.ID))
}

func TestHistoryCommand(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t, testConfig(t, config.DriverMemory))
	var out bytes.Buffer

	require.NoError(t, PrintHistory(ctx, app, &out, false))
	assert.Contains(t, out.String(), "No reports yet.")

	rec, err := RunWizard(ctx, app, lines(testutils.CheckupAnswers...), &bytes.Buffer{}, RunOptions{Variant: domain.VariantPlain, Headless: true})
	require.NoError(t, err)

	out.Reset()
	require.NoError(t, PrintHistory(ctx, app, &out, false))
	assert.Contains(t, out.String(), rec.JobID+"  severity 3/5")

	out.Reset()
	require.NoError(t, PrintHistory(ctx, app, &out, true))
	assert.Contains(t, out.String(), `"jobId": "`+rec.JobID+`"`)
}

func TestAccountCommands(t *testing.T) {
	ctx := context.Background()
	app := newTestApp(t, testConfig(t, config.DriverMemory))
	var out bytes.Buffer

	require.NoError(t, Register(ctx, app, &out, domain.Credentials{Email: "jane@example.com", Password: "pw", Name: "Jane"}))
	assert.Contains(t, out.String(), "Account created for Jane.")

	tok, err := app.Wizard.Accounts().Token(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, tok)

	require.NoError(t, Logout(ctx, app, &out))
	tok, _ = app.Wizard.Accounts().Token(ctx)
	assert.Empty(t, tok)

	out.Reset()
	require.NoError(t, Login(ctx, app, &out, "jane@example.com", "pw"))
	assert.Contains(t, out.String(), "Signed in as Jane.")

	assert.Error(t, Login(ctx, app, &out, "jane@example.com", "wrong"))
}
