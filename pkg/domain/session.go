package domain

import (
	"maps"
	"slices"
	"time"
)

// SessionStatus is the lifecycle state of a session.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusCompleted SessionStatus = "completed"
)

// Variant selects the prompt texts a graph is compiled with.
type Variant string

const (
	VariantBilingual Variant = "bilingual"
	VariantPlain     Variant = "plain"
)

// Session is one user's traversal of the flow graph.
type Session struct {
	ID            string         `json:"id"`
	Variant       Variant        `json:"variant"`
	CurrentStepID int            `json:"current_step_id"`
	Answers       map[string]any `json:"answers"`
	// Trail holds the visited step ids, entry step first.
	Trail  []int         `json:"trail"`
	Status SessionStatus `json:"status"`

	// Submitting is an advisory latch held while a submission is in flight.
	Submitting bool `json:"submitting"`
	// SubmittingSince is when the latch was taken.
	SubmittingSince *time.Time `json:"submitting_since,omitempty"`
	// Error retains the last failure message until the next successful action.
	Error      string   `json:"error,omitempty"`
	LastReport Report   `json:"last_report,omitempty"`
	Audio      *BlobRef `json:"audio,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewSession creates a clean session positioned at the entry step.
func NewSession(id string, variant Variant, entry int) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:            id,
		Variant:       variant,
		CurrentStepID: entry,
		Answers:       make(map[string]any),
		Trail:         []int{entry},
		Status:        StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Completed reports whether the session reached a terminal step.
func (s *Session) Completed() bool {
	return s.Status == StatusCompleted
}

// LatchStale reports whether the submission latch outlived ttl, which
// happens when the submitter died before releasing it. A latch without a
// start time cannot be dated and counts as stale. A ttl of zero or less
// never expires a dated latch.
func (s *Session) LatchStale(now time.Time, ttl time.Duration) bool {
	if !s.Submitting {
		return false
	}
	if s.SubmittingSince == nil {
		return true
	}
	return ttl > 0 && now.Sub(*s.SubmittingSince) > ttl
}

// ReleaseLatch clears the submission latch.
func (s *Session) ReleaseLatch() {
	s.Submitting = false
	s.SubmittingSince = nil
}

// Clone returns a copy that shares no mutable state with s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Answers = CloneAnswers(s.Answers)
	c.Trail = slices.Clone(s.Trail)
	if s.LastReport != nil {
		c.LastReport = Report(cloneValue(map[string]any(s.LastReport)).(map[string]any))
	}
	if s.Audio != nil {
		a := *s.Audio
		c.Audio = &a
	}
	if s.SubmittingSince != nil {
		t := *s.SubmittingSince
		c.SubmittingSince = &t
	}
	return &c
}

// CloneAnswers deep copies an answers map.
func CloneAnswers(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case []string:
		return slices.Clone(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case map[string]any:
		out := maps.Clone(t)
		for k, e := range out {
			out[k] = cloneValue(e)
		}
		return out
	case *BlobRef:
		if t == nil {
			return t
		}
		c := *t
		return &c
	default:
		return v
	}
}
