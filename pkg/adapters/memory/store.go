package memory

import (
	"context"
	"sync"

	"github.com/parleyhq/parley/pkg/domain"
)

// Store implements ports.SessionStore in memory.
// Safe for concurrent use.
type Store struct {
	data map[string]*domain.DialogueSession
	mu   sync.RWMutex
}

// NewStore creates a new in-memory session store.
func NewStore() *Store {
	return &Store{
		data: make(map[string]*domain.DialogueSession),
	}
}

// SaveSession persists the session in memory.
func (s *Store) SaveSession(ctx context.Context, session *domain.DialogueSession) error {
	copied := cloneSession(session)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[session.SessionID] = copied
	return nil
}

// LoadSession retrieves the session from memory.
func (s *Store) LoadSession(ctx context.Context, sessionID string) (*domain.DialogueSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.data[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	return cloneSession(session), nil
}

// ListSessions returns the ids of all known sessions.
func (s *Store) ListSessions(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	return ids, nil
}

// cloneSession deep-copies so callers can't mutate store state by pointer.
func cloneSession(in *domain.DialogueSession) *domain.DialogueSession {
	out := *in
	out.Fields = append([]domain.Field(nil), in.Fields...)
	out.PendingSlots = append([]string(nil), in.PendingSlots...)
	out.CompletedSlots = append([]string(nil), in.CompletedSlots...)
	out.Classification = domain.SlotClassification{
		Hard:   append([]string(nil), in.Classification.Hard...),
		Soft:   append([]string(nil), in.Classification.Soft...),
		Hidden: append([]string(nil), in.Classification.Hidden...),
	}
	out.CollectedSlots = make(map[string]any, len(in.CollectedSlots))
	for k, v := range in.CollectedSlots {
		out.CollectedSlots[k] = v
	}
	if in.Metadata != nil {
		out.Metadata = make(map[string]any, len(in.Metadata))
		for k, v := range in.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
