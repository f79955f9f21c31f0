package domain

import (
	"reflect"
)

// SessionDiff represents the changes between two session snapshots.
// It is serialized to JSON for partial updates on streaming clients.
type SessionDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`

	CurrentStepID *int           `json:"current_step_id,omitempty"`
	Status        *SessionStatus `json:"status,omitempty"`
	Submitting    *bool          `json:"submitting,omitempty"`
	Error         *string        `json:"error,omitempty"`

	// Answers contains only changed, added or deleted keys.
	// Deleted keys are present with a nil value.
	Answers map[string]any `json:"answers,omitempty"`

	// Trail describes how the visited-step trail moved.
	Trail *TrailDelta `json:"trail,omitempty"`
}

// TrailDelta represents changes to the trail.
// Back navigation shows up as a positive Popped count.
type TrailDelta struct {
	Appended []int `json:"appended,omitempty"`
	Popped   int   `json:"popped,omitempty"`
}

// Diff calculates the difference between oldS and newS.
// If oldS is nil, it returns a diff representing the entire newS (initial load).
// It returns nil when nothing observable changed.
func Diff(oldS, newS *Session) *SessionDiff {
	if newS == nil {
		return nil
	}

	diff := &SessionDiff{
		SessionID: newS.ID,
	}

	if oldS == nil || oldS.CurrentStepID != newS.CurrentStepID {
		diff.CurrentStepID = &newS.CurrentStepID
	}
	if oldS == nil || oldS.Status != newS.Status {
		diff.Status = &newS.Status
	}
	if (oldS == nil && newS.Submitting) || (oldS != nil && oldS.Submitting != newS.Submitting) {
		diff.Submitting = &newS.Submitting
	}
	if (oldS == nil && newS.Error != "") || (oldS != nil && oldS.Error != newS.Error) {
		diff.Error = &newS.Error
	}

	diff.Answers = diffAnswers(oldS, newS)
	diff.Trail = diffTrail(oldS, newS)

	if diff.IsEmpty() {
		return nil
	}
	return diff
}

func diffAnswers(old *Session, new *Session) map[string]any {
	delta := make(map[string]any)

	if old == nil {
		for k, v := range new.Answers {
			delta[k] = v
		}
	} else {
		for k, newVal := range new.Answers {
			oldVal, exists := old.Answers[k]
			if !exists || !reflect.DeepEqual(oldVal, newVal) {
				delta[k] = newVal
			}
		}
		for k := range old.Answers {
			if _, exists := new.Answers[k]; !exists {
				delta[k] = nil
			}
		}
	}

	if len(delta) == 0 {
		return nil
	}
	return delta
}

func diffTrail(old *Session, new *Session) *TrailDelta {
	if old == nil {
		if len(new.Trail) == 0 {
			return nil
		}
		return &TrailDelta{Appended: new.Trail}
	}

	// Longest common prefix, then whatever was dropped and added past it.
	common := 0
	for common < len(old.Trail) && common < len(new.Trail) && old.Trail[common] == new.Trail[common] {
		common++
	}
	popped := len(old.Trail) - common
	appended := new.Trail[common:]
	if popped == 0 && len(appended) == 0 {
		return nil
	}
	d := &TrailDelta{Popped: popped}
	if len(appended) > 0 {
		d.Appended = appended
	}
	return d
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SessionDiff) IsEmpty() bool {
	return d.CurrentStepID == nil &&
		d.Status == nil &&
		d.Submitting == nil &&
		d.Error == nil &&
		len(d.Answers) == 0 &&
		d.Trail == nil
}
