package bolt_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/triage/internal/adapters/bolt"
	"github.com/aretw0/triage/pkg/ports"
)

func TestBoltStore_Contract(t *testing.T) {
	store, err := bolt.Open(filepath.Join(t.TempDir(), "triage.db"))
	require.NoError(t, err)
	defer store.Close()

	ports.RunBlobStoreContract(t, store)
}

func TestBoltStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "triage.db")
	ctx := context.Background()

	store, err := bolt.Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, "token", []byte(`"abc"`)))
	require.NoError(t, store.Close())

	store, err = bolt.Open(path)
	require.NoError(t, err)
	defer store.Close()

	got, err := store.Get(ctx, "token")
	require.NoError(t, err)
	assert.Equal(t, []byte(`"abc"`), got)
}
