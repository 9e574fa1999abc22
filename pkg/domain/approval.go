package domain

import "time"

// RequestType categorizes what kind of human decision a request asks for.
type RequestType string

const (
	RequestConfirmation RequestType = "confirmation"
	RequestApproval     RequestType = "approval"
	RequestSelection    RequestType = "selection"
	RequestDataReview   RequestType = "data_review"
	RequestIntervention RequestType = "intervention"
	RequestEscalation   RequestType = "escalation"
)

// Priority tiers an approval request. Each tier maps to a default timeout;
// an explicit timeout on the request overrides the table.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// DefaultTimeout returns the expiry window for the priority tier.
func (p Priority) DefaultTimeout() time.Duration {
	switch p {
	case PriorityCritical:
		return 5 * time.Minute
	case PriorityHigh:
		return 30 * time.Minute
	case PriorityLow:
		return 24 * time.Hour
	default:
		return 4 * time.Hour
	}
}

// Rank orders priorities for list sorting, critical first.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityNormal:
		return 2
	default:
		return 3
	}
}

// RequestStatus is the lifecycle state of an approval request.
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusApproved  RequestStatus = "approved"
	StatusRejected  RequestStatus = "rejected"
	StatusModified  RequestStatus = "modified"
	StatusEscalated RequestStatus = "escalated"
	StatusTimeout   RequestStatus = "timeout"
	StatusCancelled RequestStatus = "cancelled"
)

// Decision is the subset of statuses a reviewer may record through respond.
type Decision = RequestStatus

// ValidDecision reports whether d is accepted by respond.
func ValidDecision(d Decision) bool {
	switch d {
	case StatusApproved, StatusRejected, StatusModified, StatusEscalated:
		return true
	}
	return false
}

// SelectionOption is one choice offered by a selection-type request.
type SelectionOption struct {
	ID          string `json:"id" mapstructure:"id"`
	Label       string `json:"label" mapstructure:"label"`
	Description string `json:"description,omitempty" mapstructure:"description"`
	Value       any    `json:"value,omitempty" mapstructure:"value"`
}

// Response records the reviewer's decision. It is set exactly once, on the
// first terminal transition.
type Response struct {
	Decision     Decision       `json:"decision"`
	Feedback     string         `json:"feedback,omitempty"`
	ModifiedData map[string]any `json:"modified_data,omitempty"`
	RespondedAt  time.Time      `json:"responded_at"`
}

// ApprovalRequest is a unit of work awaiting a human decision.
type ApprovalRequest struct {
	RequestID string      `json:"request_id"`
	SessionID string      `json:"session_id,omitempty"`
	Type      RequestType `json:"type"`

	Title       string            `json:"title"`
	Description string            `json:"description"`
	Data        map[string]any    `json:"data"`
	Options     []SelectionOption `json:"options,omitempty"`

	Priority Priority      `json:"priority"`
	Assignee string        `json:"assignee,omitempty"`
	Status   RequestStatus `json:"status"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`

	Response *Response      `json:"response,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// NewApprovalRequest builds a pending request. A zero timeout selects the
// priority default.
func NewApprovalRequest(id string, typ RequestType, title, description string, data map[string]any, priority Priority, timeout time.Duration, now time.Time) *ApprovalRequest {
	if priority == "" {
		priority = PriorityNormal
	}
	if timeout <= 0 {
		timeout = priority.DefaultTimeout()
	}
	return &ApprovalRequest{
		RequestID:   id,
		Type:        typ,
		Title:       title,
		Description: description,
		Data:        data,
		Priority:    priority,
		Status:      StatusPending,
		CreatedAt:   now,
		ExpiresAt:   now.Add(timeout),
	}
}

// Respond records the reviewer's decision. Only a pending request may be
// decided; anything else fails with ErrInvalidState.
func (r *ApprovalRequest) Respond(decision Decision, feedback string, modified map[string]any, now time.Time) error {
	if r.Status != StatusPending {
		return ErrInvalidState
	}
	r.Status = decision
	r.Response = &Response{
		Decision:     decision,
		Feedback:     feedback,
		ModifiedData: modified,
		RespondedAt:  now,
	}
	return nil
}

// Cancel withdraws a pending request.
func (r *ApprovalRequest) Cancel(now time.Time) error {
	if r.Status != StatusPending {
		return ErrInvalidState
	}
	r.Status = StatusCancelled
	r.Response = &Response{Decision: StatusCancelled, RespondedAt: now}
	return nil
}

// Expire transitions a pending request past its deadline to timeout.
// It is a no-op on non-pending or not-yet-expired requests, which makes
// sweeping idempotent.
func (r *ApprovalRequest) Expire(now time.Time) bool {
	if r.Status != StatusPending || !now.After(r.ExpiresAt) {
		return false
	}
	r.Status = StatusTimeout
	return true
}

// Expired reports whether the deadline has passed, regardless of status.
func (r *ApprovalRequest) Expired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
