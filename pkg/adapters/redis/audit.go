package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/parleyhq/parley/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// AuditLog implements ports.AuditLog on Redis lists: one list per owner
// plus a global stream, both append-only.
type AuditLog struct {
	client *backend.Client
	prefix string
}

// NewAuditLog creates a Redis audit log from an existing client.
func NewAuditLog(client *backend.Client, prefix string) *AuditLog {
	if prefix == "" {
		prefix = "parley:audit:"
	}
	return &AuditLog{client: client, prefix: prefix}
}

func (l *AuditLog) ownerKey(ownerID string) string {
	return l.prefix + "owner:" + ownerID
}

func (l *AuditLog) streamKey() string {
	return l.prefix + "stream"
}

// Append records the event on the owner list and the global stream.
func (l *AuditLog) Append(ctx context.Context, event domain.AuditEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	pipe := l.client.Pipeline()
	pipe.RPush(ctx, l.streamKey(), data)
	if event.OwnerID != "" {
		pipe.RPush(ctx, l.ownerKey(event.OwnerID), data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}

// Query returns the most recent limit events in chronological order.
func (l *AuditLog) Query(ctx context.Context, ownerID string, limit int) ([]domain.AuditEvent, error) {
	key := l.streamKey()
	if ownerID != "" {
		key = l.ownerKey(ownerID)
	}

	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	vals, err := l.client.LRange(ctx, key, start, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to query audit events: %w", err)
	}

	events := make([]domain.AuditEvent, 0, len(vals))
	for _, v := range vals {
		var e domain.AuditEvent
		if err := json.Unmarshal([]byte(v), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal audit event: %w", err)
		}
		events = append(events, e)
	}
	return events, nil
}
