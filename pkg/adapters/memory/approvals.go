package memory

import (
	"context"
	"sync"

	"github.com/parleyhq/parley/pkg/domain"
)

// ApprovalStore implements ports.ApprovalStore in memory.
// Safe for concurrent use.
type ApprovalStore struct {
	data map[string]*domain.ApprovalRequest
	mu   sync.RWMutex
}

// NewApprovalStore creates a new in-memory approval store.
func NewApprovalStore() *ApprovalStore {
	return &ApprovalStore{
		data: make(map[string]*domain.ApprovalRequest),
	}
}

// SaveRequest persists the request in memory.
func (s *ApprovalStore) SaveRequest(ctx context.Context, request *domain.ApprovalRequest) error {
	copied := cloneRequest(request)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[request.RequestID] = copied
	return nil
}

// LoadRequest retrieves the request from memory.
func (s *ApprovalStore) LoadRequest(ctx context.Context, requestID string) (*domain.ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	request, ok := s.data[requestID]
	if !ok {
		return nil, domain.ErrRequestNotFound
	}
	return cloneRequest(request), nil
}

// ListRequests returns snapshots of all known requests.
func (s *ApprovalStore) ListRequests(ctx context.Context) ([]*domain.ApprovalRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.ApprovalRequest, 0, len(s.data))
	for _, r := range s.data {
		out = append(out, cloneRequest(r))
	}
	return out, nil
}

// ListPending returns the ids of requests stored as pending.
func (s *ApprovalStore) ListPending(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0)
	for id, r := range s.data {
		if r.Status == domain.StatusPending {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func cloneRequest(in *domain.ApprovalRequest) *domain.ApprovalRequest {
	out := *in
	out.Options = append([]domain.SelectionOption(nil), in.Options...)
	if in.Data != nil {
		out.Data = make(map[string]any, len(in.Data))
		for k, v := range in.Data {
			out.Data[k] = v
		}
	}
	if in.Metadata != nil {
		out.Metadata = make(map[string]any, len(in.Metadata))
		for k, v := range in.Metadata {
			out.Metadata[k] = v
		}
	}
	if in.Response != nil {
		resp := *in.Response
		out.Response = &resp
	}
	return &out
}
