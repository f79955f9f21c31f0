package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/triage/pkg/adapters/memory"
	redisadapter "github.com/aretw0/triage/pkg/adapters/redis"
	"github.com/aretw0/triage/pkg/domain"
	"github.com/aretw0/triage/pkg/flow"
	"github.com/aretw0/triage/pkg/session"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SlowStore adds latency so unsynchronized read-modify-write cycles lose updates.
type SlowStore struct {
	*memory.Store
}

func (s SlowStore) Get(ctx context.Context, key string) ([]byte, error) {
	time.Sleep(2 * time.Millisecond)
	return s.Store.Get(ctx, key)
}

func (s SlowStore) Put(ctx context.Context, key string, value []byte) error {
	time.Sleep(2 * time.Millisecond)
	return s.Store.Put(ctx, key, value)
}

func counterUpdate(s *domain.Session) (*domain.Session, error) {
	n, _ := s.Answers["n"].(float64)
	s.Answers["n"] = n + 1
	return nil, nil
}

func TestManager_UpdateIsSerialized(t *testing.T) {
	mgr := session.NewManager(SlowStore{memory.NewStore()})
	ctx := context.Background()
	s, err := mgr.LoadOrStart(ctx, "race", domain.VariantPlain, 0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Update(ctx, s.ID, counterUpdate)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := mgr.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 20.0, got.Answers["n"])
}

func TestManager_LoadOrStart(t *testing.T) {
	mgr := session.NewManager(SlowStore{memory.NewStore()})
	ctx := context.Background()

	var wg sync.WaitGroup
	created := make([]time.Time, 2)
	for i := range created {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s, err := mgr.LoadOrStart(ctx, "atomic-init", domain.VariantBilingual, 0)
			assert.NoError(t, err)
			created[i] = s.CreatedAt
		}(i)
	}
	wg.Wait()

	assert.True(t, created[0].Equal(created[1]), "both callers see the same session")
	s, err := mgr.Load(ctx, "atomic-init")
	require.NoError(t, err)
	assert.Equal(t, 0, s.CurrentStepID)
	assert.Equal(t, domain.VariantBilingual, s.Variant)
}

func TestManager_CRUD(t *testing.T) {
	store := memory.NewStore()
	mgr := session.NewManager(store)
	ctx := context.Background()

	_, err := mgr.Load(ctx, "nope")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)

	a, err := mgr.Create(ctx, domain.VariantPlain, 0)
	require.NoError(t, err)
	b, err := mgr.Create(ctx, domain.VariantPlain, 0)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, domain.StoreKeyHistory, []byte("[]")))

	ids, err := mgr.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)

	require.NoError(t, mgr.Delete(ctx, a.ID))
	require.NoError(t, mgr.Delete(ctx, a.ID))
	ids, err = mgr.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, ids)
}

func TestManager_UpdateWithPureTransition(t *testing.T) {
	mgr := session.NewManager(memory.NewStore())
	ctx := context.Background()
	g, err := flow.Default(domain.VariantPlain)
	require.NoError(t, err)

	s, err := mgr.Create(ctx, g.Variant(), g.InitialStepID())
	require.NoError(t, err)

	next, err := mgr.Update(ctx, s.ID, func(cur *domain.Session) (*domain.Session, error) {
		return flow.Advance(g, cur, "English")
	})
	require.NoError(t, err)
	assert.NotEqual(t, s.CurrentStepID, next.CurrentStepID)

	loaded, err := mgr.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, next.CurrentStepID, loaded.CurrentStepID)
	assert.Equal(t, next.Trail, loaded.Trail)

	boom := errors.New("boom")
	_, err = mgr.Update(ctx, s.ID, func(cur *domain.Session) (*domain.Session, error) {
		cur.Answers["x"] = 1
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	loaded, err = mgr.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.NotContains(t, loaded.Answers, "x")
}

func TestManager_DistributedLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := memory.NewStore()
	locker := redisadapter.NewLocker(client, "test:")
	replicaA := session.NewManager(store, session.WithLocker(locker), session.WithLockTTL(5*time.Second))
	replicaB := session.NewManager(store, session.WithLocker(locker))
	ctx := context.Background()

	s, err := replicaA.Create(ctx, domain.VariantPlain, 0)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		mgr := replicaA
		if i%2 == 1 {
			mgr = replicaB
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.Update(ctx, s.ID, counterUpdate)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := replicaB.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 6.0, got.Answers["n"])
}
