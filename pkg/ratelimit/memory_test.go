package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(window time.Duration) (*MemoryLimiter, *time.Time) {
	l := NewMemoryLimiter(window)
	now := time.Unix(1_700_000_000, 0)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestMemoryLimiterAllowsUpToLimit(t *testing.T) {
	l, _ := newTestLimiter(time.Minute)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		info, err := l.Check(ctx, "team-1", 5)
		require.NoError(t, err)
		assert.True(t, info.Allowed)
		assert.Equal(t, 5-i-1, info.Remaining)
	}

	info, err := l.Check(ctx, "team-1", 5)
	require.NoError(t, err)
	assert.False(t, info.Allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.Equal(t, 5, info.Limit)
}

func TestMemoryLimiterDeniedRequestNotRecorded(t *testing.T) {
	l, _ := newTestLimiter(time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := l.Check(ctx, "team-1", 3)
		require.NoError(t, err)
	}
	for i := 0; i < 10; i++ {
		info, err := l.Check(ctx, "team-1", 3)
		require.NoError(t, err)
		assert.False(t, info.Allowed)
	}

	info, err := l.Peek(ctx, "team-1", 3)
	require.NoError(t, err)
	assert.Equal(t, 0, info.Remaining)
}

func TestMemoryLimiterWindowSlides(t *testing.T) {
	l, now := newTestLimiter(time.Minute)
	ctx := context.Background()
	start := *now

	_, err := l.Check(ctx, "team-1", 1)
	require.NoError(t, err)

	// Still inside the window.
	*now = start.Add(59 * time.Second)
	info, err := l.Check(ctx, "team-1", 1)
	require.NoError(t, err)
	assert.False(t, info.Allowed)

	// First request has aged out.
	*now = start.Add(61 * time.Second)
	info, err = l.Check(ctx, "team-1", 1)
	require.NoError(t, err)
	assert.True(t, info.Allowed)
}

func TestMemoryLimiterResetAdvancesWithTime(t *testing.T) {
	l, now := newTestLimiter(time.Minute)
	ctx := context.Background()

	info, err := l.Check(ctx, "team-1", 10)
	require.NoError(t, err)
	assert.Equal(t, now.Unix()+60, info.Reset)

	*now = now.Add(30 * time.Second)
	info, err = l.Check(ctx, "team-1", 10)
	require.NoError(t, err)
	assert.Equal(t, now.Unix()+60, info.Reset)
}

func TestMemoryLimiterPeekDoesNotConsume(t *testing.T) {
	l, _ := newTestLimiter(time.Minute)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		info, err := l.Peek(ctx, "team-1", 2)
		require.NoError(t, err)
		assert.True(t, info.Allowed)
		assert.Equal(t, 2, info.Remaining)
	}

	info, err := l.Check(ctx, "team-1", 2)
	require.NoError(t, err)
	assert.True(t, info.Allowed)
	assert.Equal(t, 1, info.Remaining)

	info, err = l.Peek(ctx, "team-1", 2)
	require.NoError(t, err)
	assert.Equal(t, 1, info.Remaining)
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(time.Minute)
	ctx := context.Background()

	_, err := l.Check(ctx, "team-1", 1)
	require.NoError(t, err)
	info, err := l.Check(ctx, "team-1", 1)
	require.NoError(t, err)
	assert.False(t, info.Allowed)

	info, err = l.Check(ctx, "team-2", 1)
	require.NoError(t, err)
	assert.True(t, info.Allowed)
}

func TestMemoryLimiterCleanupDropsExpiredKeys(t *testing.T) {
	l, now := newTestLimiter(time.Minute)
	ctx := context.Background()

	_, err := l.Check(ctx, "team-1", 10)
	require.NoError(t, err)
	_, err = l.Check(ctx, "team-2", 10)
	require.NoError(t, err)
	assert.Equal(t, 2, l.Size())

	*now = now.Add(2 * time.Minute)
	l.cleanup()
	assert.Equal(t, 0, l.Size())
}

func TestMemoryLimiterConcurrentChecks(t *testing.T) {
	l := NewMemoryLimiter(time.Minute)
	ctx := context.Background()

	const workers = 50
	const limit = 20
	allowed := make(chan bool, workers)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			info, err := l.Check(ctx, "team-1", limit)
			require.NoError(t, err)
			allowed <- info.Allowed
		}()
	}
	wg.Wait()
	close(allowed)

	admitted := 0
	for ok := range allowed {
		if ok {
			admitted++
		}
	}
	assert.Equal(t, limit, admitted)
}

func TestInfoRetryAfter(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)

	info := Info{Reset: now.Unix() + 42}
	assert.Equal(t, 42, info.RetryAfter(now))

	// Never less than one second, even when the reset is in the past.
	info = Info{Reset: now.Unix() - 5}
	assert.Equal(t, 1, info.RetryAfter(now))
}
