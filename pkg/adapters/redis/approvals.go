package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/parleyhq/parley/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// ApprovalStore implements ports.ApprovalStore using Redis. Requests live
// as JSON values; a SET tracks pending ids so the sweeper scans only those.
type ApprovalStore struct {
	client *backend.Client
	prefix string
}

// NewApprovalStore creates a Redis approval store from an existing client.
func NewApprovalStore(client *backend.Client, prefix string) *ApprovalStore {
	if prefix == "" {
		prefix = "parley:approval:"
	}
	return &ApprovalStore{client: client, prefix: prefix}
}

func (s *ApprovalStore) key(requestID string) string {
	return s.prefix + requestID
}

func (s *ApprovalStore) indexKey() string {
	return s.prefix + "index"
}

func (s *ApprovalStore) pendingKey() string {
	return s.prefix + "pending"
}

// SaveRequest persists the request and maintains the pending index.
func (s *ApprovalStore) SaveRequest(ctx context.Context, request *domain.ApprovalRequest) error {
	data, err := json.Marshal(request)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.key(request.RequestID), data, 0)
	pipe.SAdd(ctx, s.indexKey(), request.RequestID)
	if request.Status == domain.StatusPending {
		pipe.SAdd(ctx, s.pendingKey(), request.RequestID)
	} else {
		pipe.SRem(ctx, s.pendingKey(), request.RequestID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// LoadRequest retrieves the request from Redis.
func (s *ApprovalStore) LoadRequest(ctx context.Context, requestID string) (*domain.ApprovalRequest, error) {
	val, err := s.client.Get(ctx, s.key(requestID)).Result()
	if err != nil {
		if err == backend.Nil {
			return nil, domain.ErrRequestNotFound
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	var request domain.ApprovalRequest
	if err := json.Unmarshal([]byte(val), &request); err != nil {
		return nil, fmt.Errorf("failed to unmarshal request: %w", err)
	}
	return &request, nil
}

// ListRequests returns snapshots of all known requests.
func (s *ApprovalStore) ListRequests(ctx context.Context) ([]*domain.ApprovalRequest, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list requests: %w", err)
	}

	out := make([]*domain.ApprovalRequest, 0, len(ids))
	for _, id := range ids {
		req, err := s.LoadRequest(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrRequestNotFound) {
				continue // index entry outlived its value
			}
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

// ListPending returns the ids of requests stored as pending.
func (s *ApprovalStore) ListPending(ctx context.Context) ([]string, error) {
	ids, err := s.client.SMembers(ctx, s.pendingKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	return ids, nil
}
