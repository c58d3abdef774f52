package lock

import (
	"context"
	"time"
)

// NoOpLocker grants every request without tracking anything. Service
// tests use it where redemption and purge serialization are not under
// test; the database's conditional updates still keep those paths
// correct.
type NoOpLocker struct{}

// NewNoOpLocker creates a locker that never blocks.
func NewNoOpLocker() *NoOpLocker {
	return &NoOpLocker{}
}

// Acquire always grants the lock.
func (n *NoOpLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return true, ctx.Err()
}

// AcquireWithRetry always grants the lock on the first attempt.
func (n *NoOpLocker) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	return true, ctx.Err()
}

// Release always reports the lock as released.
func (n *NoOpLocker) Release(ctx context.Context, key string) (bool, error) {
	return true, ctx.Err()
}

// Ensure NoOpLocker implements Locker.
var _ Locker = (*NoOpLocker)(nil)
