// Package lock serializes the forum's two cross-instance critical
// sections: invite-key redemption and the audit-log retention sweep.
// Single-node deployments use the in-process locker; multi-node
// deployments point it at Redis.
package lock

import (
	"context"
	"time"
)

// Locker is the minimal lock surface those critical sections need: take
// a lock with a TTL, optionally retry, and give it back. Locks expire on
// their own, so a crashed holder never wedges redemption or the purge.
type Locker interface {
	// Acquire takes the lock if it is free, reporting false when another
	// holder has it. The lock expires after ttl regardless.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// AcquireWithRetry retries Acquire up to maxRetries times, waiting
	// retryDelay between attempts, and respects context cancellation.
	AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error)

	// Release gives the lock back, reporting false when it was not held.
	Release(ctx context.Context, key string) (bool, error)
}

// =============================================================================
// Common Lock Keys
// =============================================================================

// Keys provides lock key generation for common scenarios.
var Keys = lockKeys{}

type lockKeys struct{}

// AccessKeyRedeem returns a lock key for redeeming a registration key.
// Serializes concurrent registrations racing for the same key across instances.
func (lockKeys) AccessKeyRedeem(code string) string {
	return "lock:accesskey:redeem:" + code
}

// EventPurge returns a lock key for the audit log retention sweep.
// Only one instance should run the purge at a time.
func (lockKeys) EventPurge() string {
	return "lock:events:purge"
}
