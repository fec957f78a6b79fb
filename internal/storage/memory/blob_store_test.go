package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/docs-discovery-console/internal/storage"
)

func TestStoreSaveLoad(t *testing.T) {
	t.Parallel()

	s := New()
	ctx := context.Background()

	_, err := s.Load(ctx, "documents/run-1.md")
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Save(ctx, "documents/run-1.md", "# A"))
	require.NoError(t, s.Save(ctx, "documents/run-1.md", "# A\n\n# B"))

	got, err := s.Load(ctx, "documents/run-1.md")
	require.NoError(t, err)
	require.Equal(t, "# A\n\n# B", got)
	require.Equal(t, 1, s.Keys())

	require.Error(t, s.Save(ctx, "", "x"))
}
