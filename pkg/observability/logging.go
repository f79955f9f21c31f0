package observability

import (
	"context"
	"log/slog"

	"github.com/aretw0/triage/pkg/domain"
)

// LoggingHooks logs every lifecycle event. Step events go to debug level.
func LoggingHooks(logger *slog.Logger) domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnStepEnter: func(ctx context.Context, e *domain.StepEvent) {
			logger.DebugContext(ctx, "step_enter", "session_id", e.SessionID, "step_id", e.StepID, "kind", e.Kind)
		},
		OnStepLeave: func(ctx context.Context, e *domain.StepEvent) {
			logger.DebugContext(ctx, "step_leave", "session_id", e.SessionID, "step_id", e.StepID, "key", e.Key)
		},
		OnSubmit: func(ctx context.Context, e *domain.SubmitEvent) {
			switch e.Type {
			case domain.EventSubmitFailed:
				logger.WarnContext(ctx, "submit_failed", "session_id", e.SessionID, "duration", e.Duration, "err", e.Err)
			default:
				logger.InfoContext(ctx, string(e.Type), "session_id", e.SessionID, "job_id", e.JobID, "duration", e.Duration)
			}
		},
	}
}
