package domain

import "time"

// BlobRef points at a binary payload held in the blob store.
type BlobRef struct {
	Key         string `json:"key" mapstructure:"key"`
	ContentType string `json:"content_type" mapstructure:"content_type"`
	Size        int64  `json:"size" mapstructure:"size"`
	SHA256      string `json:"sha256" mapstructure:"sha256"`
	Name        string `json:"name,omitempty" mapstructure:"name"`
	Width       int    `json:"width,omitempty" mapstructure:"width"`
	Height      int    `json:"height,omitempty" mapstructure:"height"`
}

// Profile is the demographic part of the payload.
// Absent fields serialize as null.
type Profile struct {
	FullName    *string  `json:"fullName"`
	Age         *float64 `json:"age"`
	Gender      *string  `json:"gender"`
	Conditions  *string  `json:"conditions"`
	Allergies   *string  `json:"allergies"`
	Medications *string  `json:"medications"`
}

// SelfAssessment is the patient's own rating of their condition.
type SelfAssessment struct {
	Severity *string `json:"severity"`
	Feeling  *string `json:"feeling"`
}

// Payload is the request body sent to the remote triage service.
type Payload struct {
	Text           *string        `json:"text"`
	Symptoms       []string       `json:"symptoms"`
	Profile        Profile        `json:"profile"`
	SelfAssessment SelfAssessment `json:"selfAssessment"`
	Service        *string        `json:"service"`
	SkinImage      *BlobRef       `json:"skinImage"`
	SkinResult     any            `json:"skinResult"`
}

// Report is the opaque structure returned by the remote service.
type Report map[string]any

// InputSnapshot freezes what was submitted.
type InputSnapshot struct {
	Answers map[string]any `json:"answers"`
	Payload Payload        `json:"payload"`
}

// SubmissionRecord is one finalized report in the history log.
// Records are never mutated after creation.
type SubmissionRecord struct {
	JobID         string        `json:"jobId"`
	SessionID     string        `json:"sessionId,omitempty"`
	SubmittedAt   time.Time     `json:"submittedAt"`
	InputSnapshot InputSnapshot `json:"inputSnapshot"`
	Report        Report        `json:"report"`
}

// SubmitResult is the remote acknowledgement of a submission.
type SubmitResult struct {
	JobID string `json:"jobId"`
}

// Credentials identify an account on the remote service.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name,omitempty"`
}

// User is the account owner as reported by the remote service.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// AuthResult is returned by login and register.
type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}
