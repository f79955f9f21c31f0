package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventStepEnter      EventType = "step_enter"
	EventStepLeave      EventType = "step_leave"
	EventSubmitStart    EventType = "submit_start"
	EventSubmitComplete EventType = "submit_complete"
	EventSubmitFailed   EventType = "submit_failed"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
}

// StepEvent represents entry or exit from a step.
type StepEvent struct {
	EventBase
	StepID int      `json:"step_id"`
	Kind   StepKind `json:"kind"`
	Key    string   `json:"key,omitempty"`
}

// SubmitEvent represents a submission lifecycle transition.
type SubmitEvent struct {
	EventBase
	JobID    string        `json:"job_id,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	Err      error         `json:"-"`
}

// LifecycleHooks defines callbacks for wizard observability.
type LifecycleHooks struct {
	OnStepEnter func(context.Context, *StepEvent)
	OnStepLeave func(context.Context, *StepEvent)
	OnSubmit    func(context.Context, *SubmitEvent)
}

// Merge combines two hook sets, calling h before other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnStepEnter: chain(h.OnStepEnter, other.OnStepEnter),
		OnStepLeave: chain(h.OnStepLeave, other.OnStepLeave),
		OnSubmit:    chain(h.OnSubmit, other.OnSubmit),
	}
}

func chain[E any](a, b func(context.Context, E)) func(context.Context, E) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e E) {
		a(ctx, e)
		b(ctx, e)
	}
}
