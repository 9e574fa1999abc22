package ports

import (
	"context"

	"github.com/parleyhq/parley/pkg/domain"
)

// AuditLog is the append-only event stream shared by the dialogue engine
// and the approval workflow. Events are never mutated or deleted.
type AuditLog interface {
	// Append records an event for the given owner (session or request id).
	Append(ctx context.Context, event domain.AuditEvent) error

	// Query returns the most recent limit events in chronological order.
	// An empty ownerID returns events for all owners.
	Query(ctx context.Context, ownerID string, limit int) ([]domain.AuditEvent, error)
}
