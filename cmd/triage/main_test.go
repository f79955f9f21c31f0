package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "triage version 0.1.0")
}

func TestValidateCommand(t *testing.T) {
	out, err := execute(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "Flow is valid!")

	path := filepath.Join(t.TempDir(), "broken.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
entry: 0
steps:
  - id: 0
    key: q
    kind: free-text
    prompt: {en: "Name?"}
    next: 7
`), 0o644))
	_, err = execute(t, "validate", path)
	assert.ErrorContains(t, err, "validation failed")
}

func TestGraphCommand(t *testing.T) {
	out, err := execute(t, "graph", "--variant", "plain")
	require.NoError(t, err)
	assert.Contains(t, out, "graph TD")
	assert.Contains(t, out, "s13")

	out, err = execute(t, "graph", "--variant", "plain", "--format", "json")
	require.NoError(t, err)
	assert.Contains(t, out, `"kind": "computed-result"`)
}

func TestSessionCommand_EmptyStore(t *testing.T) {
	out, err := execute(t, "session", "ls", "--store", "file", "--store-path", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No sessions found.")
}
