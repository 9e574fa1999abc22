package memory

import (
	"context"
	"sync"

	"github.com/parleyhq/parley/pkg/domain"
)

// AuditLog implements ports.AuditLog as an append-only in-memory stream.
// Safe for concurrent use.
type AuditLog struct {
	events []domain.AuditEvent
	mu     sync.RWMutex
}

// NewAuditLog creates a new in-memory audit log.
func NewAuditLog() *AuditLog {
	return &AuditLog{}
}

// Append records an event. Events are never mutated or deleted.
func (l *AuditLog) Append(ctx context.Context, event domain.AuditEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
	return nil
}

// Query returns the most recent limit events for the owner, in
// chronological order. An empty ownerID matches all owners.
func (l *AuditLog) Query(ctx context.Context, ownerID string, limit int) ([]domain.AuditEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	matched := make([]domain.AuditEvent, 0)
	for _, e := range l.events {
		if ownerID == "" || e.OwnerID == ownerID {
			matched = append(matched, e)
		}
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}
