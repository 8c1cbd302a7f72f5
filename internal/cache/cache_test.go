package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedCorridor struct {
	Name string  `json:"name"`
	MinLat float64 `json:"min_lat"`
}

func newTestCache(t *testing.T) *CorridorCache {
	t.Helper()
	srv := miniredis.RunT(t)
	return New(srv.Addr(), time.Minute)
}

func TestCorridorCache_SetThenGetRoundTrips(t *testing.T) {
	c := newTestCache(t)
	defer c.Close()
	ctx := context.Background()

	want := []cachedCorridor{{Name: "bab-el-mandeb", MinLat: 12.5}}
	require.NoError(t, c.Set(ctx, "corridors:models", want))

	var got []cachedCorridor
	hit, err := c.Get(ctx, "corridors:models", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, want, got)
}

func TestCorridorCache_GetMissReturnsFalseNotError(t *testing.T) {
	c := newTestCache(t)
	defer c.Close()
	ctx := context.Background()

	var got []cachedCorridor
	hit, err := c.Get(ctx, "does:not:exist", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCorridorCache_InvalidateRemovesKey(t *testing.T) {
	c := newTestCache(t)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "ports:models", []cachedCorridor{{Name: "fujairah"}}))
	require.NoError(t, c.Invalidate(ctx, "ports:models"))

	var got []cachedCorridor
	hit, err := c.Get(ctx, "ports:models", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestCorridorCache_TTLExpiresEntry(t *testing.T) {
	srv := miniredis.RunT(t)
	c := New(srv.Addr(), time.Second)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "corridors:dark_zones", []cachedCorridor{{Name: "strait-of-hormuz"}}))
	srv.FastForward(2 * time.Second)

	var got []cachedCorridor
	hit, err := c.Get(ctx, "corridors:dark_zones", &got)
	require.NoError(t, err)
	assert.False(t, hit)
}
