package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryLocker_AcquireRelease(t *testing.T) {
	ml := NewMemoryLocker()
	key := Keys.AccessKeyRedeem("PAL-TESTKEY")

	acquired, err := ml.Acquire(context.Background(), key, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	// A second holder is refused while the lock is live.
	acquired, err = ml.Acquire(context.Background(), key, time.Minute)
	require.NoError(t, err)
	require.False(t, acquired)

	released, err := ml.Release(context.Background(), key)
	require.NoError(t, err)
	require.True(t, released)

	// Released locks are free again.
	acquired, err = ml.Acquire(context.Background(), key, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)
}

func TestMemoryLocker_ExpiredLockIsFree(t *testing.T) {
	ml := NewMemoryLocker()
	key := Keys.EventPurge()

	acquired, err := ml.Acquire(context.Background(), key, time.Millisecond)
	require.NoError(t, err)
	require.True(t, acquired)

	time.Sleep(5 * time.Millisecond)

	acquired, err = ml.Acquire(context.Background(), key, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)
}

func TestMemoryLocker_ReleaseUnheld(t *testing.T) {
	ml := NewMemoryLocker()

	released, err := ml.Release(context.Background(), Keys.AccessKeyRedeem("PAL-NEVERHELD"))
	require.NoError(t, err)
	require.False(t, released)
}

func TestMemoryLocker_AcquireWithRetry(t *testing.T) {
	ml := NewMemoryLocker()
	key := Keys.AccessKeyRedeem("PAL-CONTESTED")

	// The retry loop outlives the first holder's TTL and wins.
	acquired, err := ml.Acquire(context.Background(), key, 20*time.Millisecond)
	require.NoError(t, err)
	require.True(t, acquired)

	acquired, err = ml.AcquireWithRetry(context.Background(), key, time.Minute, 10, 10*time.Millisecond)
	require.NoError(t, err)
	require.True(t, acquired)

	// Exhausting retries against a long-lived holder reports false.
	acquired, err = ml.AcquireWithRetry(context.Background(), key, time.Minute, 2, time.Millisecond)
	require.NoError(t, err)
	require.False(t, acquired)
}

func TestMemoryLocker_AcquireWithRetryCancelled(t *testing.T) {
	ml := NewMemoryLocker()
	key := Keys.AccessKeyRedeem("PAL-CANCELLED")

	acquired, err := ml.Acquire(context.Background(), key, time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = ml.AcquireWithRetry(ctx, key, time.Minute, 5, 10*time.Millisecond)
	require.ErrorIs(t, err, context.Canceled)
}
