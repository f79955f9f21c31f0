package ports

import (
	"context"
	"time"
)

// BlobStore persists opaque values under string keys.
// Values are JSON documents except "blob:" keys, which hold raw uploads.
type BlobStore interface {
	// Get returns the value stored under key.
	// Returns domain.ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Put stores value under key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// List returns the keys starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)
}

// UnlockFunc releases a lock taken through DistributedLocker.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker serializes the load-modify-save cycle of one session
// across wizard replicas sharing a BlobStore. The in-process lock of the
// session manager covers a single replica only.
type DistributedLocker interface {
	// Lock waits until key is free or ctx is done. A holder that never
	// unlocks loses the lock after ttl. The returned UnlockFunc must be
	// called once the session is saved.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
