package ports

import (
	"context"

	"github.com/aretw0/triage/pkg/domain"
)

// RecordPublisher broadcasts finalized submission records to downstream
// consumers. Publishing is best-effort from the pipeline's point of view.
type RecordPublisher interface {
	Publish(ctx context.Context, record *domain.SubmissionRecord) error
}
