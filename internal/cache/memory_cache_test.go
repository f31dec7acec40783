package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	_, found, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	got, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v", got)

	require.NoError(t, c.Del(ctx, "k"))
	_, found, _ = c.Get(ctx, "k")
	assert.False(t, found)
}

func TestMemoryCacheDelPattern(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "reco:res:u1:home", "a", time.Minute))
	require.NoError(t, c.Set(ctx, "reco:res:u1:search", "b", time.Minute))
	require.NoError(t, c.Set(ctx, "reco:res:u2:home", "c", time.Minute))

	require.NoError(t, c.DelPattern(ctx, "reco:res:u1*"))

	_, found, _ := c.Get(ctx, "reco:res:u1:home")
	assert.False(t, found)
	_, found, _ = c.Get(ctx, "reco:res:u1:search")
	assert.False(t, found)
	_, found, _ = c.Get(ctx, "reco:res:u2:home")
	assert.True(t, found, "other users' keys must survive")
}

func TestMemoryCacheIncrWithTTL(t *testing.T) {
	c := NewMemoryCache()
	ctx := context.Background()

	n, err := c.IncrWithTTL(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = c.IncrWithTTL(ctx, "counter", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	// Counters read back as their decimal form.
	raw, found, err := c.Get(ctx, "counter")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "2", raw)
}
