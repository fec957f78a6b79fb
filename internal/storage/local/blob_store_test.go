package local_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/docs-discovery-console/internal/storage"
	"github.com/JakeFAU/docs-discovery-console/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		store, err := local.New(local.Config{BaseDir: t.TempDir()})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("CreatesMissingDir", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "docs")
		_, err := local.New(local.Config{BaseDir: dir})
		require.NoError(t, err)
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "file")
		require.NoError(t, os.WriteFile(file, []byte("x"), 0o600))
		_, err := local.New(local.Config{BaseDir: file})
		assert.Error(t, err)
	})
}

func TestSaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: dir})
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "documents/run-1.md", "# Title"))

	data, err := os.ReadFile(filepath.Join(dir, "documents", "run-1.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Title", string(data))

	got, err := store.Load(ctx, "documents/run-1.md")
	require.NoError(t, err)
	assert.Equal(t, "# Title", got)

	require.NoError(t, store.Save(ctx, "documents/run-1.md", "# Replaced"))
	got, err = store.Load(ctx, "documents/run-1.md")
	require.NoError(t, err)
	assert.Equal(t, "# Replaced", got)

	entries, err := os.ReadDir(filepath.Join(dir, "documents"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files should not linger")
}

func TestLoadMissing(t *testing.T) {
	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "documents/nope.md")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRejectsTraversal(t *testing.T) {
	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)
	ctx := context.Background()

	assert.Error(t, store.Save(ctx, "../escape.md", "x"))
	assert.Error(t, store.Save(ctx, "", "x"))
	_, err = store.Load(ctx, "../../etc/passwd")
	assert.Error(t, err)
}
