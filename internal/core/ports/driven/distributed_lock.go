package driven

import (
	"context"
	"time"
)

// DistributedLock coordinates work across instances. The orchestrator uses
// it to extend the single-scan-at-a-time guarantee beyond one process in
// multi-instance deployments.
type DistributedLock interface {
	// Acquire attempts to acquire a named lock with the given TTL.
	// Returns true if the lock was successfully acquired, false if already
	// held by another instance.
	Acquire(ctx context.Context, name string, ttl time.Duration) (acquired bool, err error)

	// Release releases a named lock. Best-effort; TTL-based
	// implementations auto-expire anyway.
	Release(ctx context.Context, name string) error

	// Extend extends the TTL of a currently held lock. Returns an error if
	// the lock is not held by this instance.
	Extend(ctx context.Context, name string, ttl time.Duration) error

	// Ping checks if the lock backend is healthy.
	Ping(ctx context.Context) error
}
