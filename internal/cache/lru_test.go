package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_PutAndGet(t *testing.T) {
	c := NewLRU[string, string](8, time.Hour)

	c.Put("0xdac17f958d2ee523a2206206994597c13d831ec7", "Tether: USDT")
	c.Put("0x7a250d5630b4cf539739df2c5dacb4c659f2488d", "Uniswap V2: Router")

	v, ok := c.Get("0xdac17f958d2ee523a2206206994597c13d831ec7")
	require.True(t, ok)
	assert.Equal(t, "Tether: USDT", v)

	_, ok = c.Get("0xunknown")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestLRU_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[string, int](3, time.Hour)

	c.Put("a", 1)
	c.Put("b", 2)
	c.Put("c", 3)

	// Touch "a" so "b" becomes the eviction candidate.
	_, ok := c.Get("a")
	require.True(t, ok)

	c.Put("d", 4)

	_, ok = c.Get("b")
	assert.False(t, ok, "b should have been evicted")

	for _, key := range []string{"a", "c", "d"} {
		_, ok := c.Get(key)
		assert.True(t, ok, "%s should survive", key)
	}
	assert.Equal(t, 3, c.Len())
}

func TestLRU_EntryExpiresAfterTTL(t *testing.T) {
	c := NewLRU[string, int](8, 10*time.Minute)

	now := time.Now()
	c.nowFn = func() time.Time { return now }

	c.Put("a", 1)

	_, ok := c.Get("a")
	require.True(t, ok)

	c.nowFn = func() time.Time { return now.Add(11 * time.Minute) }

	_, ok = c.Get("a")
	assert.False(t, ok, "entry should have expired")
	assert.Equal(t, 0, c.Len(), "expired entry is dropped on access")
}

func TestLRU_ZeroTTLNeverExpires(t *testing.T) {
	c := NewLRU[string, int](8, 0)

	now := time.Now()
	c.nowFn = func() time.Time { return now }

	c.Put("a", 1)

	c.nowFn = func() time.Time { return now.Add(1000 * time.Hour) }

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}

func TestLRU_PutRefreshesValueAndTTL(t *testing.T) {
	c := NewLRU[string, int](8, 10*time.Minute)

	now := time.Now()
	c.nowFn = func() time.Time { return now }

	c.Put("a", 1)

	c.nowFn = func() time.Time { return now.Add(8 * time.Minute) }
	c.Put("a", 2)

	// 14 minutes after the first write, 6 after the refresh.
	c.nowFn = func() time.Time { return now.Add(14 * time.Minute) }

	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())
}

func TestLRU_Remove(t *testing.T) {
	c := NewLRU[string, int](8, time.Hour)

	c.Put("a", 1)
	c.Put("b", 2)

	c.Remove("a")
	c.Remove("missing")

	_, ok := c.Get("a")
	assert.False(t, ok)

	v, ok := c.Get("b")
	require.True(t, ok)
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())
}

func TestLRU_NonPositiveCapacityFallsBack(t *testing.T) {
	c := NewLRU[string, int](0, time.Hour)

	c.Put("a", 1)
	v, ok := c.Get("a")
	require.True(t, ok)
	assert.Equal(t, 1, v)
}
