package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/docs-discovery-console/internal/storage"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	store, err := New(context.Background(), Config{Address: mr.Addr(), KeyPrefix: "docs:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "documents/run-1.md", "# A"))
	got, err := mr.Get("docs:documents/run-1.md")
	require.NoError(t, err)
	require.Equal(t, "# A", got)

	loaded, err := store.Load(ctx, "documents/run-1.md")
	require.NoError(t, err)
	require.Equal(t, "# A", loaded)

	_, err = store.Load(ctx, "documents/missing.md")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTTLExpires(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	store, err := New(context.Background(), Config{Address: mr.Addr(), TTL: time.Minute})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "k", "v"))
	require.Equal(t, time.Minute, mr.TTL("k"))

	mr.FastForward(2 * time.Minute)
	_, err = store.Load(ctx, "k")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNewFailures(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{})
	require.ErrorIs(t, err, ErrEmptyAddress)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = New(context.Background(), Config{Address: addr})
	require.Error(t, err)
}
