package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker is the single-node Locker. A registration racing for an
// invite key and the retention sweep both run inside one process here,
// so a mutex-guarded map of deadlines is enough. Nothing survives a
// restart, which is fine: the sqlite conditional update remains the
// correctness backstop for key redemption.
type MemoryLocker struct {
	mu        sync.Mutex
	deadlines map[string]time.Time
}

// NewMemoryLocker creates an in-process locker and starts its expiry
// sweep.
func NewMemoryLocker() *MemoryLocker {
	ml := &MemoryLocker{
		deadlines: make(map[string]time.Time),
	}
	go ml.sweepLoop()
	return ml
}

// sweepLoop drops expired deadlines so abandoned keys do not accumulate
// between redemption bursts.
func (m *MemoryLocker) sweepLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		m.mu.Lock()
		for key, deadline := range m.deadlines {
			if now.After(deadline) {
				delete(m.deadlines, key)
			}
		}
		m.mu.Unlock()
	}
}

// Acquire takes the lock unless a live deadline for the key exists. An
// expired deadline is treated as free and overwritten in place.
func (m *MemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	if deadline, held := m.deadlines[key]; held && now.Before(deadline) {
		return false, nil
	}
	m.deadlines[key] = now.Add(ttl)
	return true, nil
}

// AcquireWithRetry retries Acquire with a delay between attempts. It
// never sleeps after the final attempt and returns early when the
// context is cancelled.
func (m *MemoryLocker) AcquireWithRetry(ctx context.Context, key string, ttl time.Duration, maxRetries int, retryDelay time.Duration) (bool, error) {
	for attempt := 0; ; attempt++ {
		acquired, err := m.Acquire(ctx, key, ttl)
		if acquired || err != nil {
			return acquired, err
		}
		if attempt >= maxRetries {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(retryDelay):
		}
	}
}

// Release drops the deadline for the key, reporting whether one existed.
func (m *MemoryLocker) Release(ctx context.Context, key string) (bool, error) {
	if ctx.Err() != nil {
		return false, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	_, held := m.deadlines[key]
	delete(m.deadlines, key)
	return held, nil
}

// Ensure MemoryLocker implements Locker.
var _ Locker = (*MemoryLocker)(nil)
