package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bling-mirror/internal/clock"
)

func TestMemoryCache_SetGet(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	c := NewMemoryCache(clk)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	got, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	// returned slice is a copy
	got[0] = 'x'
	again, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), again)
}

func TestMemoryCache_Expiry(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	c := NewMemoryCache(clk)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	clk.Advance(59 * time.Second)
	_, err := c.Get(ctx, "k")
	require.NoError(t, err)

	clk.Advance(time.Second)
	_, err = c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	c.removeExpired()
	assert.Equal(t, 0, c.Len())
}

func TestMemoryCache_ZeroTTLNeverExpires(t *testing.T) {
	clk := clock.NewFake(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	c := NewMemoryCache(clk)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), 0))
	clk.Advance(1000 * time.Hour)

	_, err := c.Get(ctx, "k")
	assert.NoError(t, err)
}

func TestMemoryCache_Delete(t *testing.T) {
	c := NewMemoryCache(nil)
	defer c.Close()

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Hour))
	require.NoError(t, c.Delete(ctx, "k"))

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)

	// closing twice is safe
	require.NoError(t, c.Close())
}
