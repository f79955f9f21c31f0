package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/ports"
)

// History is the persisted, most-recent-first log of submission records.
// Its read-modify-write cycle is serialized by a mutex.
type History struct {
	mu    sync.Mutex
	store ports.BlobStore
	cap   int
}

// NewHistory creates a log capped at limit records. A non-positive limit
// uses domain.DefaultHistoryCap.
func NewHistory(store ports.BlobStore, limit int) *History {
	if limit <= 0 {
		limit = domain.DefaultHistoryCap
	}
	return &History{store: store, cap: limit}
}

// Cap returns the retention limit.
func (h *History) Cap() int {
	return h.cap
}

// List returns the records, most recent first.
func (h *History) List(ctx context.Context) ([]domain.SubmissionRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.load(ctx)
}

// Prepend inserts rec at position 0 and evicts the oldest records beyond the cap.
func (h *History) Prepend(ctx context.Context, rec domain.SubmissionRecord) ([]domain.SubmissionRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	records, err := h.load(ctx)
	if err != nil {
		return nil, err
	}
	records = append([]domain.SubmissionRecord{rec}, records...)
	if len(records) > h.cap {
		records = records[:h.cap]
	}
	if err := h.save(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}

// Clear removes every record.
func (h *History) Clear(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.store.Delete(ctx, domain.StoreKeyHistory); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

func (h *History) load(ctx context.Context) ([]domain.SubmissionRecord, error) {
	data, err := h.store.Get(ctx, domain.StoreKeyHistory)
	if errors.Is(err, domain.ErrNotFound) {
		return []domain.SubmissionRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	var records []domain.SubmissionRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode history: %w", err)
	}
	if records == nil {
		records = []domain.SubmissionRecord{}
	}
	return records, nil
}

func (h *History) save(ctx context.Context, records []domain.SubmissionRecord) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}
	if err := h.store.Put(ctx, domain.StoreKeyHistory, data); err != nil {
		return fmt.Errorf("failed to persist history: %w", err)
	}
	return nil
}
