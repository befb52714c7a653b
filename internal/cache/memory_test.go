package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestMemoryCacheSetGetExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(0, WithClock(clock.Now))
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "profile:u1", `{"id":"u1"}`, 5*time.Minute))

	v, err := c.Get(ctx, "profile:u1")
	require.NoError(t, err)
	assert.Equal(t, `{"id":"u1"}`, v)

	clock.Advance(5 * time.Minute)
	v, err = c.Get(ctx, "profile:u1")
	require.NoError(t, err)
	assert.Empty(t, v, "entry must be gone once its TTL elapsed")
}

func TestMemoryCacheDelete(t *testing.T) {
	c := NewMemoryCache(0)
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v", 0))
	require.NoError(t, c.Delete(ctx, "k"))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestMemoryCacheIncrWithExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 23, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(0, WithClock(clock.Now))
	defer c.Close()
	ctx := context.Background()

	n, err := c.IncrWithExpiry(ctx, "usage:u1:2024-03-01", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// Later increments keep the original deadline.
	clock.Advance(23 * time.Hour)
	n, err = c.IncrWithExpiry(ctx, "usage:u1:2024-03-01", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	clock.Advance(time.Hour)
	v, err := c.Get(ctx, "usage:u1:2024-03-01")
	require.NoError(t, err)
	assert.Empty(t, v)
}

func TestMemoryCacheIncrRepairsMissingExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(0, WithClock(clock.Now))
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "usage:u1:2024-03-01", "3", 0))
	n, err := c.IncrWithExpiry(ctx, "usage:u1:2024-03-01", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	clock.Advance(time.Hour)
	v, _ := c.Get(ctx, "usage:u1:2024-03-01")
	assert.Empty(t, v)
}

func TestMemoryCacheIncrConcurrent(t *testing.T) {
	c := NewMemoryCache(0)
	defer c.Close()
	ctx := context.Background()

	const workers = 64
	seen := make([]int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			n, err := c.IncrWithExpiry(ctx, "k", time.Hour)
			assert.NoError(t, err)
			seen[i] = n
		}(i)
	}
	wg.Wait()

	unique := make(map[int64]bool)
	for _, n := range seen {
		unique[n] = true
	}
	assert.Len(t, unique, workers, "every increment must observe a distinct value")
	v, _ := c.Get(ctx, "k")
	assert.Equal(t, "64", v)
}

func TestMemoryCacheSweep(t *testing.T) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)}
	c := NewMemoryCache(0, WithClock(clock.Now))
	defer c.Close()
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "a", "1", time.Minute))
	require.NoError(t, c.Set(ctx, "b", "2", 0))
	clock.Advance(2 * time.Minute)
	c.sweep()

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.NotContains(t, c.entries, "a")
	assert.Contains(t, c.entries, "b")
}
