package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/parleyhq/parley/pkg/adapters/memory"
	"github.com/parleyhq/parley/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLog_QueryByOwner(t *testing.T) {
	log := memory.NewAuditLog()
	ctx := context.Background()

	for i, owner := range []string{"a", "b", "a"} {
		require.NoError(t, log.Append(ctx, domain.AuditEvent{
			OwnerID:   owner,
			Kind:      domain.EventSlotUpdated,
			Timestamp: t0.Add(time.Duration(i) * time.Second),
		}))
	}

	events, err := log.Query(ctx, "a", 10)
	require.NoError(t, err)
	assert.Len(t, events, 2)

	all, err := log.Query(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestAuditLog_LimitKeepsMostRecentInOrder(t *testing.T) {
	log := memory.NewAuditLog()
	ctx := context.Background()

	kinds := []domain.EventKind{
		domain.EventSessionCreated,
		domain.EventSlotUpdated,
		domain.EventSessionStatus,
	}
	for i, kind := range kinds {
		require.NoError(t, log.Append(ctx, domain.AuditEvent{
			OwnerID:   "s1",
			Kind:      kind,
			Timestamp: t0.Add(time.Duration(i) * time.Second),
		}))
	}

	events, err := log.Query(ctx, "s1", 2)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventSlotUpdated, events[0].Kind, "oldest surviving event first")
	assert.Equal(t, domain.EventSessionStatus, events[1].Kind)
}
