package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_EnforcesMinInterval_Invariant1(t *testing.T) {
	l := NewLimiter(50 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, l.Wait(ctx))
	require.NoError(t, l.Wait(ctx))
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
}

func TestLimiter_FirstWaitDoesNotBlock(t *testing.T) {
	l := NewLimiter(time.Second)
	start := time.Now()
	require.NoError(t, l.Wait(context.Background()))
	assert.Less(t, time.Since(start), 100*time.Millisecond)
}

func TestLimiter_ConcurrentCallersSerializeWithSpacing_S2(t *testing.T) {
	l := NewLimiter(200 * time.Millisecond)
	ctx := context.Background()

	const n = 4
	var wg sync.WaitGroup
	wg.Add(n)
	start := time.Now()
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_ = l.Wait(ctx)
		}()
	}
	wg.Wait()
	elapsed := time.Since(start)

	// 4 requests at a 200ms minimum interval: the first is free, the
	// remaining 3 must each wait for a full interval, so the whole
	// batch takes at least 3*200ms = 600ms.
	assert.GreaterOrEqual(t, elapsed, 600*time.Millisecond)
}

func TestLimiter_WaitRespectsContextCancellation(t *testing.T) {
	l := NewLimiter(time.Second)
	require.NoError(t, l.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := l.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRegistry_SharesLimiterPerProvider(t *testing.T) {
	r := NewRegistry()
	a := r.Get("plos", 50*time.Millisecond)
	b := r.Get("plos", time.Hour)
	c := r.Get("crossref", 50*time.Millisecond)

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)
	assert.Equal(t, 50*time.Millisecond, a.MinInterval())
}

func TestRegistry_ConcurrentGetIsRaceFree(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	results := make([]*Limiter, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Get("core", 10*time.Millisecond)
		}(i)
	}
	wg.Wait()
	for i := 1; i < len(results); i++ {
		assert.Same(t, results[0], results[i])
	}
}
