package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLimiterAllowUnderLimit(t *testing.T) {
	l := NewLimiter(3, time.Minute)

	require.True(t, l.Allow("10.0.0.1"))
	require.True(t, l.Allow("10.0.0.1"))
	require.True(t, l.Allow("10.0.0.1"))
	require.False(t, l.Allow("10.0.0.1"))
}

func TestLimiterKeysAreIndependent(t *testing.T) {
	l := NewLimiter(1, time.Minute)

	require.True(t, l.Allow("10.0.0.1"))
	require.False(t, l.Allow("10.0.0.1"))
	require.True(t, l.Allow("10.0.0.2"))
}

func TestLimiterWindowSlides(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(2, time.Minute, WithClock(func() time.Time { return now }))

	require.True(t, l.Allow("k"))
	require.True(t, l.Allow("k"))
	require.False(t, l.Allow("k"))

	// Half the window later the old hits still count.
	now = now.Add(30 * time.Second)
	require.False(t, l.Allow("k"))

	// After the window passes, the key is fresh again.
	now = now.Add(31 * time.Second)
	require.True(t, l.Allow("k"))
}

func TestLimiterForgiveRefundsHit(t *testing.T) {
	l := NewLimiter(2, time.Minute)

	require.True(t, l.Allow("k"))
	require.True(t, l.Allow("k"))
	l.Forgive("k")
	require.True(t, l.Allow("k"))
	require.False(t, l.Allow("k"))
}

func TestLimiterForgiveUnknownKey(t *testing.T) {
	l := NewLimiter(2, time.Minute)

	// Must not panic or create state.
	l.Forgive("missing")
	require.Equal(t, 2, l.Remaining("missing"))
}

func TestLimiterRemaining(t *testing.T) {
	l := NewLimiter(5, time.Minute)

	require.Equal(t, 5, l.Remaining("k"))
	l.Allow("k")
	l.Allow("k")
	require.Equal(t, 3, l.Remaining("k"))
}

func TestLimiterRejectedHitsStillCount(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(1, time.Minute, WithClock(func() time.Time { return now }))

	require.True(t, l.Allow("k"))
	require.False(t, l.Allow("k"))
	require.Equal(t, 0, l.Remaining("k"))
}

func TestLimiterSweepDropsIdleKeys(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l := NewLimiter(2, time.Minute, WithClock(func() time.Time { return now }))

	l.Allow("a")
	l.Allow("b")

	now = now.Add(2 * time.Minute)
	l.sweep()

	l.mu.Lock()
	defer l.mu.Unlock()
	require.Empty(t, l.buckets)
}
