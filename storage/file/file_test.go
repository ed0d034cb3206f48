package file_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	autherrors "github.com/jrsteele09/dashboard-auth/internal/errors"
	"github.com/jrsteele09/dashboard-auth/storage"
	"github.com/jrsteele09/dashboard-auth/storage/file"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

const docPath = "/var/dashauth/session.json"

func TestStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()

	a, err := file.New(fs, docPath)
	require.NoError(t, err)
	b, err := file.New(fs, docPath)
	require.NoError(t, err)

	_, ok, err := a.Get(ctx, storage.KeyToken)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, a.Set(ctx, storage.KeyToken, `{"token":"x"}`))
	require.NoError(t, a.Set(ctx, storage.KeyUsername, "admin"))

	v, ok, err := b.Get(ctx, storage.KeyToken)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"token":"x"}`, v)

	require.NoError(t, b.Delete(ctx, storage.KeyToken, storage.KeyUsername, storage.KeyRefreshToken))
	_, ok, err = a.Get(ctx, storage.KeyUsername)
	require.NoError(t, err)
	require.False(t, ok)

	version, err := a.Version()
	require.NoError(t, err)
	require.Equal(t, uint64(3), version)

	exists, err := afero.Exists(fs, docPath+".tmp-"+a.Origin())
	require.NoError(t, err)
	require.False(t, exists, "temp file renamed into place")
}

func TestStore_CorruptDocumentReadsEmpty(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, docPath, []byte("{garbage"), 0o600))

	s, err := file.New(fs, docPath)
	require.NoError(t, err)

	_, ok, err := s.Get(ctx, storage.KeyToken)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, storage.KeyUsername, "admin"))
	v, ok, err := s.Get(ctx, storage.KeyUsername)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "admin", v)
}

func TestStore_Closed(t *testing.T) {
	s, err := file.New(afero.NewMemMapFs(), docPath)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	require.ErrorIs(t, s.Set(context.Background(), storage.KeyUsername, "x"), autherrors.ErrClosed)
	_, _, err = s.Get(context.Background(), storage.KeyUsername)
	require.ErrorIs(t, err, autherrors.ErrClosed)
}

func TestStore_WatchSeesOtherProcessWrites(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	fs := afero.NewOsFs()

	watching, err := file.New(fs, path)
	require.NoError(t, err)
	defer watching.Close()
	writer, err := file.New(fs, path)
	require.NoError(t, err)
	defer writer.Close()

	var mu sync.Mutex
	var changes []storage.Change
	cancel, err := watching.Watch(func(c storage.Change) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, c)
	})
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, watching.Set(ctx, storage.KeyUsername, "self"))
	require.NoError(t, writer.Set(ctx, storage.KeyUsername, "admin"))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		for _, c := range changes {
			if c.Origin == writer.Origin() && c.Version == 2 {
				return true
			}
		}
		return false
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, c := range changes {
		require.NotEqual(t, watching.Origin(), c.Origin, "own writes are not reported")
	}
}

func TestStore_GenerationChangesWhenDocumentRecreated(t *testing.T) {
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	s, err := file.New(fs, docPath)
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, storage.KeyUsername, "admin"))
	require.NoError(t, s.Set(ctx, storage.KeyToken, "t"))
	first, err := s.Generation()
	require.NoError(t, err)
	require.NotEmpty(t, first)

	require.NoError(t, fs.Remove(docPath))
	require.NoError(t, s.Set(ctx, storage.KeyUsername, "admin"))
	second, err := s.Generation()
	require.NoError(t, err)
	require.NotEqual(t, first, second)
	version, err := s.Version()
	require.NoError(t, err)
	require.Equal(t, uint64(1), version, "counter restarts with the new generation")

	require.NoError(t, afero.WriteFile(fs, docPath, []byte("{garbage"), 0o600))
	require.NoError(t, s.Set(ctx, storage.KeyUsername, "admin"))
	third, err := s.Generation()
	require.NoError(t, err)
	require.NotEqual(t, second, third)
}

func TestStore_WatchReportsRestartedCounter(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	fs := afero.NewOsFs()

	watching, err := file.New(fs, path)
	require.NoError(t, err)
	defer watching.Close()
	writer, err := file.New(fs, path)
	require.NoError(t, err)
	defer writer.Close()

	var mu sync.Mutex
	var changes []storage.Change
	cancel, err := watching.Watch(func(c storage.Change) {
		mu.Lock()
		defer mu.Unlock()
		changes = append(changes, c)
	})
	require.NoError(t, err)
	defer cancel()

	seen := func(match func(storage.Change) bool) func() bool {
		return func() bool {
			mu.Lock()
			defer mu.Unlock()
			for _, c := range changes {
				if match(c) {
					return true
				}
			}
			return false
		}
	}

	for i := 0; i < 3; i++ {
		require.NoError(t, writer.Set(ctx, storage.KeyUsername, "admin"))
	}
	require.Eventually(t, seen(func(c storage.Change) bool { return c.Version == 3 }), 2*time.Second, 10*time.Millisecond)
	first, err := writer.Generation()
	require.NoError(t, err)

	require.NoError(t, fs.Remove(path))
	require.NoError(t, writer.Set(ctx, storage.KeyUsername, "admin"))
	second, err := writer.Generation()
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	require.Eventually(t, seen(func(c storage.Change) bool {
		return c.Version == 1 && c.Generation == second
	}), 2*time.Second, 10*time.Millisecond)
}
