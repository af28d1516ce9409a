package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexroom/redline/pkg/contracts"
)

func sampleProjection(clauseID string) contracts.ProjectionResult {
	return contracts.ProjectionResult{
		ClauseID:        clauseID,
		EffectiveText:   "effective text",
		EffectiveStatus: contracts.ClauseNoDeviation,
	}
}

func TestMemoryCacheMissThenHit(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	_, ok, err := c.Get(ctx, "cl-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "cl-1", sampleProjection("cl-1")))

	got, ok, err := c.Get(ctx, "cl-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cl-1", got.ClauseID)
	assert.Equal(t, "effective text", got.EffectiveText)
}

func TestMemoryCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	require.NoError(t, c.Set(ctx, "cl-1", sampleProjection("cl-1")))
	require.NoError(t, c.Invalidate(ctx, "cl-1"))

	_, ok, err := c.Get(ctx, "cl-1")
	require.NoError(t, err)
	assert.False(t, ok)

	// Invalidating an absent entry is a no-op.
	require.NoError(t, c.Invalidate(ctx, "cl-missing"))
}

func TestMemoryCacheTTLExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache(
		WithTTL(5*time.Minute),
		WithClock(func() time.Time { return now }),
	)

	require.NoError(t, c.Set(ctx, "cl-1", sampleProjection("cl-1")))

	now = now.Add(4 * time.Minute)
	_, ok, err := c.Get(ctx, "cl-1")
	require.NoError(t, err)
	assert.True(t, ok, "entry inside TTL should be served")

	now = now.Add(time.Minute)
	_, ok, err = c.Get(ctx, "cl-1")
	require.NoError(t, err)
	assert.False(t, ok, "entry at TTL boundary should be expired")
}

func TestMemoryCacheSetRefreshesExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemoryCache(
		WithTTL(5*time.Minute),
		WithClock(func() time.Time { return now }),
	)

	require.NoError(t, c.Set(ctx, "cl-1", sampleProjection("cl-1")))

	now = now.Add(4 * time.Minute)
	require.NoError(t, c.Set(ctx, "cl-1", sampleProjection("cl-1")))

	now = now.Add(4 * time.Minute)
	_, ok, err := c.Get(ctx, "cl-1")
	require.NoError(t, err)
	assert.True(t, ok, "rewrite should restart the TTL window")
}

func TestMemoryCacheEntriesAreIndependent(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	require.NoError(t, c.Set(ctx, "cl-1", sampleProjection("cl-1")))
	require.NoError(t, c.Set(ctx, "cl-2", sampleProjection("cl-2")))
	require.NoError(t, c.Invalidate(ctx, "cl-1"))

	_, ok, err := c.Get(ctx, "cl-1")
	require.NoError(t, err)
	assert.False(t, ok)

	got, ok, err := c.Get(ctx, "cl-2")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "cl-2", got.ClauseID)
}
