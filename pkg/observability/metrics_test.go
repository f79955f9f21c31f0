package observability

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHooks(t *testing.T) {
	m := NewMetrics()
	h := m.Hooks()
	ctx := context.Background()

	h.OnStepEnter(ctx, &domain.StepEvent{StepID: 3, Kind: domain.KindFreeText})
	h.OnStepEnter(ctx, &domain.StepEvent{StepID: 3, Kind: domain.KindFreeText})
	h.OnSubmit(ctx, &domain.SubmitEvent{EventBase: domain.EventBase{Type: domain.EventSubmitStart}})
	h.OnSubmit(ctx, &domain.SubmitEvent{EventBase: domain.EventBase{Type: domain.EventSubmitComplete}, Duration: time.Second})
	h.OnSubmit(ctx, &domain.SubmitEvent{EventBase: domain.EventBase{Type: domain.EventSubmitFailed}})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StepVisits.WithLabelValues("3", "free-text")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Submissions.WithLabelValues("error")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "triage_submit_duration_seconds_count 2")
}

func TestLoggingHooks(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	h := LoggingHooks(logger).Merge(NewMetrics().Hooks())
	ctx := context.Background()

	h.OnStepEnter(ctx, &domain.StepEvent{EventBase: domain.EventBase{SessionID: "s1"}, StepID: 8})
	h.OnSubmit(ctx, &domain.SubmitEvent{EventBase: domain.EventBase{Type: domain.EventSubmitFailed, SessionID: "s1"}, Err: errors.New("boom")})

	out := buf.String()
	assert.Contains(t, out, "step_enter")
	assert.Contains(t, out, "step_id=8")
	assert.Contains(t, out, "submit_failed")
	assert.Contains(t, out, "err=boom")
}
