package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newManualClockCache[V any](ttl time.Duration, maxEntries int) (*Cache[V], *time.Time) {
	c := New[V](ttl, maxEntries)
	now := time.Unix(1000, 0)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestCacheSetGet(t *testing.T) {
	t.Parallel()

	c, _ := newManualClockCache[string](time.Minute, 10)
	c.Set("a", "alpha")

	got, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, "alpha", got)

	_, ok = c.Get("missing")
	require.False(t, ok)
}

func TestCacheExpiry(t *testing.T) {
	t.Parallel()

	c, now := newManualClockCache[int](time.Minute, 10)
	c.Set("a", 1)

	*now = now.Add(59 * time.Second)
	_, ok := c.Get("a")
	require.True(t, ok)

	*now = now.Add(2 * time.Second)
	_, ok = c.Get("a")
	require.False(t, ok)
	require.Zero(t, c.Len())
}

func TestCacheDelete(t *testing.T) {
	t.Parallel()

	c, _ := newManualClockCache[int](time.Minute, 10)
	c.Set("a", 1)
	c.Delete("a")
	_, ok := c.Get("a")
	require.False(t, ok)
}

func TestCacheEvictsWhenFull(t *testing.T) {
	t.Parallel()

	c, now := newManualClockCache[int](time.Minute, 2)
	c.Set("a", 1)
	*now = now.Add(time.Second)
	c.Set("b", 2)
	*now = now.Add(time.Second)
	c.Set("c", 3)

	require.Equal(t, 2, c.Len())
	// The entry closest to expiry ("a") was evicted.
	_, ok := c.Get("a")
	require.False(t, ok)
	_, ok = c.Get("b")
	require.True(t, ok)
	_, ok = c.Get("c")
	require.True(t, ok)
}

func TestCacheOverwriteDoesNotEvict(t *testing.T) {
	t.Parallel()

	c, _ := newManualClockCache[int](time.Minute, 2)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 3)

	require.Equal(t, 2, c.Len())
	got, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 3, got)
}
