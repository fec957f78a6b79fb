package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWaitDelaysOnceBurstIsSpent(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 10, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "crawl"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "crawl"))
	require.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestKeysHaveIndependentBuckets(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 1, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "discover"))
	start := time.Now()
	require.NoError(t, l.Wait(ctx, "crawl"))
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestZeroRateIsUnlimited(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(ctx, "crawl"))
	}
	require.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestWaitHonorsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{RPS: 0.1, Burst: 1})
	require.NoError(t, l.Wait(context.Background(), "crawl"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.Error(t, l.Wait(ctx, "crawl"))
}
