package memory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	autherrors "github.com/jrsteele09/dashboard-auth/internal/errors"
	"github.com/jrsteele09/dashboard-auth/storage"
	"github.com/jrsteele09/dashboard-auth/storage/memory"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu      sync.Mutex
	changes []storage.Change
}

func (r *recorder) record(c storage.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, c)
}

func (r *recorder) Changes() []storage.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]storage.Change(nil), r.changes...)
}

func TestStore_SharedValues(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewBackend()
	tabA, tabB := backend.Open(), backend.Open()
	require.NotEqual(t, tabA.Origin(), tabB.Origin())

	require.NoError(t, tabA.Set(ctx, storage.KeyUsername, "admin"))

	v, ok, err := tabB.Get(ctx, storage.KeyUsername)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "admin", v)

	require.NoError(t, tabB.Delete(ctx, storage.KeyUsername, storage.KeyToken))
	_, ok, err = tabA.Get(ctx, storage.KeyUsername)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, uint64(2), backend.Version())
}

func TestStore_WatchSeesOtherOriginsOnly(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewBackend()
	tabA, tabB := backend.Open(), backend.Open()

	var seenByA recorder
	cancel, err := tabA.Watch(seenByA.record)
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, tabA.Set(ctx, storage.KeyToken, "{}"))
	require.NoError(t, tabB.Set(ctx, storage.KeyUsername, "admin"))

	require.Eventually(t, func() bool { return len(seenByA.Changes()) == 1 }, time.Second, time.Millisecond)
	change := seenByA.Changes()[0]
	require.Equal(t, storage.KeyUsername, change.Key)
	require.Equal(t, tabB.Origin(), change.Origin)
	require.Equal(t, uint64(2), change.Version)
}

func TestStore_CancelAndClose(t *testing.T) {
	ctx := context.Background()
	backend := memory.NewBackend()
	tabA, tabB := backend.Open(), backend.Open()

	var seen recorder
	cancel, err := tabA.Watch(seen.record)
	require.NoError(t, err)
	cancel()
	cancel()

	require.NoError(t, tabB.Set(ctx, storage.KeyUsername, "admin"))
	time.Sleep(10 * time.Millisecond)
	require.Empty(t, seen.Changes())

	require.NoError(t, tabA.Close())
	require.ErrorIs(t, tabA.Set(ctx, storage.KeyUsername, "x"), autherrors.ErrClosed)
	_, err = tabA.Watch(seen.record)
	require.ErrorIs(t, err, autherrors.ErrClosed)
}
