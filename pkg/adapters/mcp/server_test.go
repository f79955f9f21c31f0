package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/triage/internal/testutils"
)

func newServer(t *testing.T) *Server {
	t.Helper()
	w, _ := testutils.NewWizard(t)
	return NewServer(w)
}

func TestTools_WalkAndSubmit(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	resp, err := s.handleStart(ctx, req, StartArgs{Variant: "plain"})
	require.NoError(t, err)
	id := resp.View.SessionID
	assert.Equal(t, 0, resp.View.Step.ID)

	for _, a := range testutils.CheckupAnswers {
		resp, err = s.handleAnswer(ctx, req, AnswerArgs{SessionID: id, Answer: a})
		require.NoError(t, err)
		require.Empty(t, resp.Rejected, "answer %q", a)
	}
	assert.True(t, resp.View.Step.Terminal)

	resp, err = s.handleRecord(ctx, req, RecordArgs{SessionID: id, Key: "severity", Value: "moderate"})
	require.NoError(t, err)
	assert.Equal(t, "moderate", resp.View.Answers["severity"])

	rec, err := s.handleSubmit(ctx, req, SessionArgs{SessionID: id})
	require.NoError(t, err)
	assert.NotEmpty(t, rec.JobID)
	assert.Equal(t, "Jane Doe", rec.InputSnapshot.Answers["fullName"])
}

func TestTools_RejectionIsReported(t *testing.T) {
	s := newServer(t)
	ctx := context.Background()
	req := mcp.CallToolRequest{}

	resp, err := s.handleStart(ctx, req, StartArgs{Variant: "plain"})
	require.NoError(t, err)
	id := resp.View.SessionID

	resp, err = s.handleAnswer(ctx, req, AnswerArgs{SessionID: id, Answer: "Klingon"})
	require.NoError(t, err)
	assert.Contains(t, resp.Rejected, "invalid choice")
	assert.Equal(t, 0, resp.View.Step.ID)

	resp, err = s.handleBack(ctx, req, SessionArgs{SessionID: id})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Rejected)

	_, err = s.handleGet(ctx, req, SessionArgs{SessionID: "missing"})
	assert.Error(t, err)

	_, err = s.handleStart(ctx, req, StartArgs{Variant: "martian"})
	assert.Error(t, err)
}

func TestGraphResource(t *testing.T) {
	s := newServer(t)
	chart, err := s.mermaid("plain")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(chart, "graph TD"))
}

func TestStructuredHandler_BindsArguments(t *testing.T) {
	s := newServer(t)
	handler := mcp.NewStructuredToolHandler(s.handleStart)

	req := mcp.CallToolRequest{}
	req.Params.Name = "start_session"
	req.Params.Arguments = map[string]any{"variant": "plain"}

	res, err := handler(context.Background(), req)
	require.NoError(t, err)
	require.False(t, res.IsError)

	data, err := json.Marshal(res.StructuredContent)
	require.NoError(t, err)
	var out StepResponse
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "plain", string(out.View.Variant))
}
