package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/parleyhq/parley/pkg/adapters/redis"
	"github.com/parleyhq/parley/pkg/domain"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestClient(t *testing.T) *backend.Client {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return backend.NewClient(&backend.Options{Addr: mr.Addr()})
}

func sampleSession(id string) *domain.DialogueSession {
	fields := []domain.Field{{Name: "serial", Required: true}}
	class := domain.SlotClassification{Hard: []string{"serial"}}
	return domain.NewSession(id, "ticket", fields, class, nil, nil, t0)
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	store := redis.NewFromClient(newTestClient(t))
	ctx := context.Background()

	require.NoError(t, store.SaveSession(ctx, sampleSession("s1")))

	got, err := store.LoadSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "serial", got.CurrentSlot)
	assert.Equal(t, []string{"serial"}, got.PendingSlots)
}

func TestStore_LoadUnknown(t *testing.T) {
	store := redis.NewFromClient(newTestClient(t))
	_, err := store.LoadSession(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestStore_ListSessions(t *testing.T) {
	store := redis.NewFromClient(newTestClient(t))
	ctx := context.Background()

	require.NoError(t, store.SaveSession(ctx, sampleSession("a")))
	require.NoError(t, store.SaveSession(ctx, sampleSession("b")))

	ids, err := store.ListSessions(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a", "b"}, ids)
}

func TestStore_SaveOverwrites(t *testing.T) {
	store := redis.NewFromClient(newTestClient(t))
	ctx := context.Background()

	sess := sampleSession("s1")
	require.NoError(t, store.SaveSession(ctx, sess))

	sess.ApplySlot("serial", "ab-123", domain.SlotCollect, t0.Add(time.Minute))
	require.NoError(t, store.SaveSession(ctx, sess))

	got, err := store.LoadSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "ab-123", got.CollectedSlots["serial"])
	assert.Empty(t, got.PendingSlots)
}
