package pricefeed

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(20 * time.Millisecond)

	c.Put("0xAAA", 1.5)
	got, ok := c.Get("0xAAA")
	require.True(t, ok)
	assert.Equal(t, 1.5, got)

	time.Sleep(30 * time.Millisecond)
	_, ok = c.Get("0xAAA")
	assert.False(t, ok)
}

func TestRedisCache_PutGet(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	c := NewRedisCache(mr.Addr(), "", 0, time.Minute, zap.NewNop())
	defer c.Close()

	c.Put("0xAAA", 2.25)

	got, ok := c.Get("0xaaa")
	require.True(t, ok, "lookup is case-insensitive")
	assert.Equal(t, 2.25, got)

	_, ok = c.Get("0xBBB")
	assert.False(t, ok)
}

func TestRedisCache_Expiry(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	c := NewRedisCache(mr.Addr(), "", 0, 10*time.Second, zap.NewNop())
	defer c.Close()

	c.Put("0xAAA", 3)
	mr.FastForward(11 * time.Second)

	_, ok := c.Get("0xAAA")
	assert.False(t, ok)
}

func TestRedisCache_DownIsAMiss(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	c := NewRedisCache(mr.Addr(), "", 0, time.Minute, zap.NewNop())
	defer c.Close()

	mr.Close()

	// A broken cache degrades to misses; it must not error the lookup path.
	_, ok := c.Get("0xAAA")
	assert.False(t, ok)
	c.Put("0xAAA", 1) // must not panic
}
