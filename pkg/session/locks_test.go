package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/parleyhq/parley/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocks_SerializesPerKey(t *testing.T) {
	locks := session.NewLocks()
	ctx := context.Background()

	var inside int
	var maxInside int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locks.WithLock(ctx, "same-key", func(ctx context.Context) error {
				mu.Lock()
				inside++
				if inside > maxInside {
					maxInside = inside
				}
				mu.Unlock()

				time.Sleep(2 * time.Millisecond) // widen the race window

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInside, "at most one holder per key at a time")
}

func TestLocks_DifferentKeysDoNotBlock(t *testing.T) {
	locks := session.NewLocks()
	ctx := context.Background()

	release := make(chan struct{})
	held := make(chan struct{})

	go func() {
		_ = locks.WithLock(ctx, "a", func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()

	<-held
	done := make(chan struct{})
	go func() {
		_ = locks.WithLock(ctx, "b", func(ctx context.Context) error { return nil })
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on a different key must not block")
	}
	close(release)
}

func TestLocks_ErrorsPropagate(t *testing.T) {
	locks := session.NewLocks()

	sentinel := assert.AnError
	err := locks.WithLock(context.Background(), "k", func(ctx context.Context) error {
		return sentinel
	})
	require.ErrorIs(t, err, sentinel)
}
