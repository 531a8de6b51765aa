package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFingerprint_Deterministic(t *testing.T) {
	a := Fingerprint("twitch", "streams", "shroud")
	b := Fingerprint("twitch", "streams", "shroud")
	require.Equal(t, a, b)

	// Part boundaries matter: "ab","c" is not "a","bc".
	require.NotEqual(t, Fingerprint("ab", "c"), Fingerprint("a", "bc"))
}

func TestGetOrCompute_CachesWithinTTL(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	c := New().WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	})

	var calls int
	fn := func(context.Context) (any, error) {
		calls++
		return calls, nil
	}

	fp := Fingerprint("k")
	v, err := c.GetOrCompute(context.Background(), fp, time.Minute, fn)
	require.NoError(t, err)
	require.Equal(t, 1, v)

	v, err = c.GetOrCompute(context.Background(), fp, time.Minute, fn)
	require.NoError(t, err)
	require.Equal(t, 1, v)
	require.Equal(t, 1, calls)

	mu.Lock()
	now = now.Add(2 * time.Minute)
	mu.Unlock()

	v, err = c.GetOrCompute(context.Background(), fp, time.Minute, fn)
	require.NoError(t, err)
	require.Equal(t, 2, v)
}

func TestGetOrCompute_CoalescesConcurrentCallers(t *testing.T) {
	c := New()
	fp := Fingerprint("shared")

	var calls int32
	release := make(chan struct{})
	fn := func(context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "value", nil
	}

	const n = 20
	var wg sync.WaitGroup
	results := make([]any, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := c.GetOrCompute(context.Background(), fp, time.Minute, fn)
			require.NoError(t, err)
			results[i] = v
		}(i)
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, v := range results {
		require.Equal(t, "value", v)
	}
}

func TestGetOrCompute_ErrorsNotCached(t *testing.T) {
	c := New()
	fp := Fingerprint("flaky")

	var calls int
	fn := func(context.Context) (any, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("upstream down")
		}
		return "ok", nil
	}

	_, err := c.GetOrCompute(context.Background(), fp, time.Minute, fn)
	require.Error(t, err)

	v, err := c.GetOrCompute(context.Background(), fp, time.Minute, fn)
	require.NoError(t, err)
	require.Equal(t, "ok", v)
	require.Equal(t, 2, calls)
}

func TestInvalidateAndSweep(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var mu sync.Mutex
	c := New().WithClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	})

	var calls int
	fn := func(context.Context) (any, error) {
		calls++
		return calls, nil
	}

	fp := Fingerprint("k")
	_, err := c.GetOrCompute(context.Background(), fp, time.Minute, fn)
	require.NoError(t, err)

	c.Invalidate(fp)
	_, err = c.GetOrCompute(context.Background(), fp, time.Minute, fn)
	require.NoError(t, err)
	require.Equal(t, 2, calls)

	mu.Lock()
	now = now.Add(time.Hour)
	mu.Unlock()
	c.Sweep()

	c.mu.RLock()
	require.Empty(t, c.entries)
	c.mu.RUnlock()
}
