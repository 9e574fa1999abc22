package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"log/slog"

	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/pkg/ports"
)

// lockEntry holds the mutex and the reference count.
type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// Locks serializes access per record key. It uses reference counting to
// garbage collect unused entries, so a long-lived process does not
// accumulate a mutex per session ever created.
type Locks struct {
	mu      sync.Mutex            // Global lock for the map
	entries map[string]*lockEntry // Map of active locks

	locker  ports.DistributedLocker // Optional distributed locker
	lockTTL time.Duration
	logger  *slog.Logger
}

// Option configures the Locks.
type Option func(*Locks)

// WithLocker enables distributed locking on top of the in-process lock.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(l *Locks) {
		l.locker = locker
	}
}

// WithLockTTL bounds how long a crashed holder can wedge a distributed lock.
func WithLockTTL(ttl time.Duration) Option {
	return func(l *Locks) {
		l.lockTTL = ttl
	}
}

// WithLogger configures a logger for deferred unlock failures.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Locks) {
		l.logger = logger
	}
}

// NewLocks creates a per-key lock manager.
func NewLocks(opts ...Option) *Locks {
	l := &Locks{
		entries: make(map[string]*lockEntry),
		lockTTL: 30 * time.Second,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// acquire gets or creates a lock entry and increments its reference count.
// The caller must Lock the entry.mu and call release(key) after unlocking.
func (l *Locks) acquire(key string) *lockEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.entries[key]
	if !exists {
		entry = &lockEntry{}
		l.entries[key] = entry
	}
	entry.refs++
	return entry
}

// release decrements the reference count and deletes the entry at zero.
func (l *Locks) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, exists := l.entries[key]
	if !exists {
		return // Should not happen if paired correctly
	}

	entry.refs--
	if entry.refs <= 0 {
		delete(l.entries, key)
	}
}

// WithLock executes fn while holding the lock for key.
func (l *Locks) WithLock(ctx context.Context, key string, fn func(context.Context) error) error {
	entry := l.acquire(key)
	entry.mu.Lock()
	defer func() {
		entry.mu.Unlock()
		l.release(key)
	}()

	if l.locker != nil {
		unlock, err := l.locker.Lock(ctx, key, l.lockTTL)
		if err != nil {
			return fmt.Errorf("failed to acquire distributed lock: %w", err)
		}
		defer func() {
			if err := unlock(ctx); err != nil {
				l.logger.Warn("Failed to release distributed lock (will expire via TTL)",
					"key", key,
					"err", err,
				)
			}
		}()
	}

	return fn(ctx)
}
