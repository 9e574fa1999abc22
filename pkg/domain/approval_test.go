package domain_test

import (
	"testing"
	"time"

	"github.com/parleyhq/parley/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriority_DefaultTimeouts(t *testing.T) {
	cases := []struct {
		priority domain.Priority
		want     time.Duration
	}{
		{domain.PriorityCritical, 5 * time.Minute},
		{domain.PriorityHigh, 30 * time.Minute},
		{domain.PriorityNormal, 4 * time.Hour},
		{domain.PriorityLow, 24 * time.Hour},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, tc.priority.DefaultTimeout(), "priority %s", tc.priority)
	}
}

func TestNewApprovalRequest_ExpiryFromPriority(t *testing.T) {
	req := domain.NewApprovalRequest("r1", domain.RequestApproval, "t", "d", nil, domain.PriorityCritical, 0, t0)

	assert.Equal(t, domain.StatusPending, req.Status)
	assert.Equal(t, 300*time.Second, req.ExpiresAt.Sub(req.CreatedAt))
}

func TestNewApprovalRequest_ExplicitTimeoutWins(t *testing.T) {
	req := domain.NewApprovalRequest("r1", domain.RequestApproval, "t", "d", nil, domain.PriorityLow, 90*time.Second, t0)
	assert.Equal(t, 90*time.Second, req.ExpiresAt.Sub(req.CreatedAt))
}

func TestNewApprovalRequest_EmptyPriorityDefaultsNormal(t *testing.T) {
	req := domain.NewApprovalRequest("r1", domain.RequestConfirmation, "t", "d", nil, "", 0, t0)
	assert.Equal(t, domain.PriorityNormal, req.Priority)
	assert.Equal(t, 4*time.Hour, req.ExpiresAt.Sub(req.CreatedAt))
}

func TestRespond_SetsResponseOnce(t *testing.T) {
	req := domain.NewApprovalRequest("r1", domain.RequestApproval, "t", "d", nil, domain.PriorityNormal, 0, t0)

	require.NoError(t, req.Respond(domain.StatusApproved, "lgtm", nil, t0.Add(time.Minute)))
	assert.Equal(t, domain.StatusApproved, req.Status)
	require.NotNil(t, req.Response)
	assert.Equal(t, "lgtm", req.Response.Feedback)

	err := req.Respond(domain.StatusRejected, "", nil, t0.Add(2*time.Minute))
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	assert.Equal(t, domain.StatusApproved, req.Status, "state must be untouched by the failed call")
	assert.Equal(t, "lgtm", req.Response.Feedback)
}

func TestCancel_OnlyFromPending(t *testing.T) {
	req := domain.NewApprovalRequest("r1", domain.RequestApproval, "t", "d", nil, domain.PriorityNormal, 0, t0)
	require.NoError(t, req.Cancel(t0))
	assert.Equal(t, domain.StatusCancelled, req.Status)

	assert.ErrorIs(t, req.Cancel(t0), domain.ErrInvalidState)
}

func TestExpire_IdempotentAndDeadlineGated(t *testing.T) {
	req := domain.NewApprovalRequest("r1", domain.RequestApproval, "t", "d", nil, domain.PriorityCritical, 0, t0)

	assert.False(t, req.Expire(t0.Add(4*time.Minute)), "not yet past the deadline")
	assert.True(t, req.Expire(t0.Add(6*time.Minute)))
	assert.Equal(t, domain.StatusTimeout, req.Status)
	assert.False(t, req.Expire(t0.Add(7*time.Minute)), "second sweep is a no-op")
}

func TestValidDecision(t *testing.T) {
	assert.True(t, domain.ValidDecision(domain.StatusApproved))
	assert.True(t, domain.ValidDecision(domain.StatusModified))
	assert.True(t, domain.ValidDecision(domain.StatusEscalated))
	assert.False(t, domain.ValidDecision(domain.StatusPending))
	assert.False(t, domain.ValidDecision(domain.StatusTimeout))
	assert.False(t, domain.ValidDecision("yes"))
}
