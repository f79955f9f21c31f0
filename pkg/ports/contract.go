package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/triage/pkg/domain"
)

// RunBlobStoreContract runs a suite of tests to verify that a BlobStore
// implementation adheres to the defined interface contract.
func RunBlobStoreContract(t *testing.T, store BlobStore) {
	ctx := context.Background()
	prefix := fmt.Sprintf("contract-%d:", time.Now().UnixNano())

	t.Run("Put and Get", func(t *testing.T) {
		key := prefix + "profile"
		value := []byte(`{"fullName":"Jane Doe","age":34}`)

		require.NoError(t, store.Put(ctx, key, value))

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, value, got)
	})

	t.Run("Overwrite", func(t *testing.T) {
		key := prefix + "token"
		require.NoError(t, store.Put(ctx, key, []byte(`"a"`)))
		require.NoError(t, store.Put(ctx, key, []byte(`"b"`)))

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte(`"b"`), got)
	})

	t.Run("Binary Values", func(t *testing.T) {
		key := prefix + domain.StorePrefixBlob + "bin"
		value := []byte{0x00, 0xff, 0x10, 0x80}
		require.NoError(t, store.Put(ctx, key, value))

		got, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, value, got)
	})

	t.Run("Get Non-Existent", func(t *testing.T) {
		_, err := store.Get(ctx, prefix+"missing")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		key := prefix + "history"
		require.NoError(t, store.Put(ctx, key, []byte(`[]`)))
		require.NoError(t, store.Delete(ctx, key))

		_, err := store.Get(ctx, key)
		assert.ErrorIs(t, err, domain.ErrNotFound, "Get after Delete should return ErrNotFound")

		assert.NoError(t, store.Delete(ctx, key), "Delete of a missing key should succeed")
	})

	t.Run("List", func(t *testing.T) {
		id1 := prefix + domain.StorePrefixSession + "1"
		id2 := prefix + domain.StorePrefixSession + "2"
		other := prefix + "user"
		require.NoError(t, store.Put(ctx, id2, []byte(`{}`)))
		require.NoError(t, store.Put(ctx, id1, []byte(`{}`)))
		require.NoError(t, store.Put(ctx, other, []byte(`{}`)))
		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
			_ = store.Delete(ctx, other)
		}()

		keys, err := store.List(ctx, prefix+domain.StorePrefixSession)
		require.NoError(t, err)
		assert.Equal(t, []string{id1, id2}, keys)
	})
}
