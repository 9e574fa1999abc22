package ports

import (
	"context"
	"time"
)

// UnlockFunc releases a distributed lock.
type UnlockFunc func(ctx context.Context) error

// DistributedLocker coordinates per-record mutual exclusion across replicas.
// The in-process key lock always applies; a DistributedLocker extends the
// same discipline to multiple instances sharing one store.
type DistributedLocker interface {
	// Lock acquires the lock for key, blocking until acquired or the
	// context is cancelled. The returned UnlockFunc must be called to
	// release it; the TTL bounds how long a crashed holder wedges the key.
	Lock(ctx context.Context, key string, ttl time.Duration) (UnlockFunc, error)
}
