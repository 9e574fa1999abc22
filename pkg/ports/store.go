package ports

import (
	"context"

	"github.com/parleyhq/parley/pkg/domain"
)

// SessionStore persists dialogue sessions keyed by their opaque id.
type SessionStore interface {
	// SaveSession persists the session, overwriting any previous snapshot.
	SaveSession(ctx context.Context, session *domain.DialogueSession) error

	// LoadSession retrieves a session snapshot.
	// Returns domain.ErrSessionNotFound if the id is unknown.
	LoadSession(ctx context.Context, sessionID string) (*domain.DialogueSession, error)

	// ListSessions returns the ids of all known sessions.
	ListSessions(ctx context.Context) ([]string, error)
}

// ApprovalStore persists approval requests keyed by their opaque id.
type ApprovalStore interface {
	// SaveRequest persists the request, overwriting any previous snapshot.
	SaveRequest(ctx context.Context, request *domain.ApprovalRequest) error

	// LoadRequest retrieves a request snapshot.
	// Returns domain.ErrRequestNotFound if the id is unknown.
	LoadRequest(ctx context.Context, requestID string) (*domain.ApprovalRequest, error)

	// ListRequests returns snapshots of all known requests, in no
	// particular order. Callers filter and sort.
	ListRequests(ctx context.Context) ([]*domain.ApprovalRequest, error)

	// ListPending returns the ids of requests whose stored status is
	// pending. The sweeper uses this to bound its scan.
	ListPending(ctx context.Context) ([]string, error)
}
