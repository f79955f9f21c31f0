package ports

import (
	"context"
	"io"

	"github.com/aretw0/triage/pkg/domain"
)

// RemoteService is the backend that turns payloads into triage reports.
// Implementations return *domain.TransportError for network or HTTP failures.
type RemoteService interface {
	// Submit sends a payload and returns the job identifier.
	Submit(ctx context.Context, token string, payload domain.Payload) (domain.SubmitResult, error)

	// FetchReport retrieves the report generated for a job.
	FetchReport(ctx context.Context, token string, jobID string) (domain.Report, error)

	// UploadAudio sends a voice recording.
	UploadAudio(ctx context.Context, token string, audio io.Reader, filename string) (domain.SubmitResult, error)

	Login(ctx context.Context, creds domain.Credentials) (domain.AuthResult, error)
	Register(ctx context.Context, creds domain.Credentials) (domain.AuthResult, error)
}

// ImageAnalyzer classifies an uploaded skin image.
type ImageAnalyzer interface {
	AnalyzeImage(ctx context.Context, token string, image []byte, contentType string) (map[string]any, error)
}
