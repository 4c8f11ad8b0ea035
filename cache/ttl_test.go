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

	"proveit/clock"
)

func TestTTLExpiry(t *testing.T) {
	clk := clock.NewManual(time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC))
	c := NewTTL[string](clk, 5*time.Minute)
	ctx := context.Background()

	var loads int
	load := func(context.Context) (string, error) {
		loads++
		return "alice", nil
	}

	v, err := c.Get(ctx, "u1", load)
	require.NoError(t, err)
	assert.Equal(t, "alice", v)

	clk.Advance(4 * time.Minute)
	_, err = c.Get(ctx, "u1", load)
	require.NoError(t, err)
	assert.Equal(t, 1, loads)

	clk.Advance(time.Minute)
	_, err = c.Get(ctx, "u1", load)
	require.NoError(t, err)
	assert.Equal(t, 2, loads, "entry expires after the TTL")
}

func TestTTLErrorsAreNotCached(t *testing.T) {
	clk := clock.NewManual(time.Now())
	c := NewTTL[int](clk, time.Hour)
	ctx := context.Background()

	_, err := c.Get(ctx, "k", func(context.Context) (int, error) { return 0, errors.New("boom") })
	require.Error(t, err)

	v, err := c.Get(ctx, "k", func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestTTLInvalidate(t *testing.T) {
	clk := clock.NewManual(time.Now())
	c := NewTTL[int](clk, time.Hour)
	c.Set("k", 1)
	c.Invalidate("k")

	v, err := c.Get(context.Background(), "k", func(context.Context) (int, error) { return 2, nil })
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestTTLPurge(t *testing.T) {
	clk := clock.NewManual(time.Now())
	c := NewTTL[int](clk, time.Minute)
	c.Set("a", 1)
	clk.Advance(2 * time.Minute)
	c.Set("b", 2)
	c.Purge()
	assert.Equal(t, 1, c.Len())
}

func TestTTLDedupesConcurrentLoads(t *testing.T) {
	clk := clock.NewManual(time.Now())
	c := NewTTL[int](clk, time.Hour)

	var loads atomic.Int32
	release := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Get(context.Background(), "k", func(context.Context) (int, error) {
				loads.Add(1)
				<-release
				return 42, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, 42, v)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), loads.Load())
}
