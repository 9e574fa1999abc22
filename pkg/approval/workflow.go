package approval

import (
	"context"
	"fmt"
	"sort"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/observability"
	"github.com/parleyhq/parley/pkg/domain"
	"github.com/parleyhq/parley/pkg/ports"
	"github.com/parleyhq/parley/pkg/session"
)

// Workflow owns approval requests. Every operation sweeps expired pending
// requests first, so a caller never observes a pending request that is
// already past its deadline.
type Workflow struct {
	store        ports.ApprovalStore
	audit        ports.AuditLog
	locks        *session.Locks
	metrics      *observability.Metrics
	logger       *slog.Logger
	historyLimit int
	now          func() time.Time
	newID        func() string
}

// Option configures the Workflow.
type Option func(*Workflow)

// WithLocks shares a lock manager with other components.
func WithLocks(locks *session.Locks) Option {
	return func(w *Workflow) { w.locks = locks }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(w *Workflow) { w.metrics = m }
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) { w.logger = logger }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(w *Workflow) { w.now = now }
}

// WithIDGenerator overrides request id generation. Used by tests.
func WithIDGenerator(gen func() string) Option {
	return func(w *Workflow) { w.newID = gen }
}

// WithHistoryLimit overrides the default cap on history queries (100).
func WithHistoryLimit(limit int) Option {
	return func(w *Workflow) {
		if limit > 0 {
			w.historyLimit = limit
		}
	}
}

// NewWorkflow creates an approval workflow over the given store and audit log.
func NewWorkflow(store ports.ApprovalStore, audit ports.AuditLog, opts ...Option) *Workflow {
	w := &Workflow{
		store:        store,
		audit:        audit,
		locks:        session.NewLocks(),
		logger:       logging.NewNop(),
		historyLimit: 100,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// CreateParams carries the inputs of request creation.
type CreateParams struct {
	Type        domain.RequestType
	Title       string
	Description string
	Data        map[string]any
	Options     []domain.SelectionOption
	Priority    domain.Priority
	Timeout     time.Duration // zero selects the priority default
	Assignee    string
	SessionID   string
	Metadata    map[string]any
}

// Create registers a new pending request and returns its snapshot.
func (w *Workflow) Create(ctx context.Context, params CreateParams) (*domain.ApprovalRequest, error) {
	w.sweep(ctx)

	id := w.newID()
	req := domain.NewApprovalRequest(id, params.Type, params.Title, params.Description, params.Data, params.Priority, params.Timeout, w.now())
	req.Options = params.Options
	req.Assignee = params.Assignee
	req.SessionID = params.SessionID
	req.Metadata = params.Metadata

	err := w.locks.WithLock(ctx, id, func(ctx context.Context) error {
		return w.store.SaveRequest(ctx, req)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create approval request: %w", err)
	}

	w.record(ctx, id, domain.EventRequestCreated, map[string]any{
		"type":       string(req.Type),
		"priority":   string(req.Priority),
		"session_id": req.SessionID,
		"expires_at": req.ExpiresAt,
	})
	w.logger.Info("Approval request created",
		"request_id", id,
		"type", string(req.Type),
		"priority", string(req.Priority),
		"expires_at", req.ExpiresAt,
	)
	return req, nil
}

// Get returns a snapshot of the request.
func (w *Workflow) Get(ctx context.Context, requestID string) (*domain.ApprovalRequest, error) {
	w.sweep(ctx)
	return w.store.LoadRequest(ctx, requestID)
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Status   domain.RequestStatus
	Type     domain.RequestType
	Assignee string
	Limit    int
}

// List returns matching requests sorted by priority (critical first) and,
// within equal priority, most recent first.
func (w *Workflow) List(ctx context.Context, filter Filter) ([]*domain.ApprovalRequest, error) {
	w.sweep(ctx)

	all, err := w.store.ListRequests(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.ApprovalRequest, 0, len(all))
	for _, r := range all {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.Type != "" && r.Type != filter.Type {
			continue
		}
		if filter.Assignee != "" && r.Assignee != filter.Assignee {
			continue
		}
		out = append(out, r)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank(); ri != rj {
			return ri < rj
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Respond records the reviewer's decision. A request already past its
// deadline is expired on the spot and the call fails with
// domain.ErrRequestExpired; a non-pending request fails with
// domain.ErrInvalidState.
func (w *Workflow) Respond(ctx context.Context, requestID string, decision domain.Decision, feedback string, modified map[string]any) (*domain.ApprovalRequest, error) {
	if !domain.ValidDecision(decision) {
		return nil, fmt.Errorf("%w: unknown decision %q", domain.ErrInvalidState, decision)
	}

	var req *domain.ApprovalRequest
	err := w.locks.WithLock(ctx, requestID, func(ctx context.Context) error {
		var err error
		req, err = w.store.LoadRequest(ctx, requestID)
		if err != nil {
			return err
		}

		if req.Expire(w.now()) {
			if err := w.store.SaveRequest(ctx, req); err != nil {
				return err
			}
			w.record(ctx, requestID, domain.EventRequestTimeout, nil)
			return domain.ErrRequestExpired
		}

		if err := req.Respond(decision, feedback, modified, w.now()); err != nil {
			return err
		}
		if err := w.store.SaveRequest(ctx, req); err != nil {
			return err
		}

		w.record(ctx, requestID, domain.EventRequestResponded, map[string]any{
			"decision": string(decision),
			"feedback": feedback,
		})
		if w.metrics != nil {
			w.metrics.ApprovalDecisions.WithLabelValues(string(decision)).Inc()
			w.metrics.ObserveResponseLatency(req.Response.RespondedAt.Sub(req.CreatedAt))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// Cancel withdraws a pending request.
func (w *Workflow) Cancel(ctx context.Context, requestID, reason string) (*domain.ApprovalRequest, error) {
	var req *domain.ApprovalRequest
	err := w.locks.WithLock(ctx, requestID, func(ctx context.Context) error {
		var err error
		req, err = w.store.LoadRequest(ctx, requestID)
		if err != nil {
			return err
		}

		if req.Expire(w.now()) {
			if err := w.store.SaveRequest(ctx, req); err != nil {
				return err
			}
			w.record(ctx, requestID, domain.EventRequestTimeout, nil)
			return domain.ErrRequestExpired
		}

		if err := req.Cancel(w.now()); err != nil {
			return err
		}
		if err := w.store.SaveRequest(ctx, req); err != nil {
			return err
		}

		w.record(ctx, requestID, domain.EventRequestCancelled, map[string]any{"reason": reason})
		if w.metrics != nil {
			w.metrics.ApprovalDecisions.WithLabelValues(string(domain.StatusCancelled)).Inc()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// BatchItem is the outcome of one id in a batch decision.
type BatchItem struct {
	RequestID string               `json:"request_id"`
	Status    domain.RequestStatus `json:"status,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// BatchResult tallies a batch decision.
type BatchResult struct {
	Processed int         `json:"processed"`
	Failed    int         `json:"failed"`
	Items     []BatchItem `json:"items"`
}

// BatchDecide applies the same decision to each id independently. Missing
// or non-pending ids are reported as failed without aborting the batch.
// Only approved and rejected are accepted as batch decisions.
func (w *Workflow) BatchDecide(ctx context.Context, requestIDs []string, decision domain.Decision, feedback string) (BatchResult, error) {
	if decision != domain.StatusApproved && decision != domain.StatusRejected {
		return BatchResult{}, fmt.Errorf("%w: batch decision must be approved or rejected, got %q", domain.ErrInvalidState, decision)
	}

	result := BatchResult{Items: make([]BatchItem, 0, len(requestIDs))}
	for _, id := range requestIDs {
		req, err := w.Respond(ctx, id, decision, feedback, nil)
		if err != nil {
			result.Failed++
			result.Items = append(result.Items, BatchItem{RequestID: id, Error: err.Error()})
			continue
		}
		result.Processed++
		result.Items = append(result.Items, BatchItem{RequestID: id, Status: req.Status})
	}
	return result, nil
}

// Escalate raises a pending request to a new priority and/or assignee and
// marks it escalated. The deadline is deliberately left untouched:
// escalation is a routing change, not an extension. Escalated is terminal
// for respond and cancel.
func (w *Workflow) Escalate(ctx context.Context, requestID string, newPriority domain.Priority, newAssignee, reason string) (*domain.ApprovalRequest, error) {
	var req *domain.ApprovalRequest
	err := w.locks.WithLock(ctx, requestID, func(ctx context.Context) error {
		var err error
		req, err = w.store.LoadRequest(ctx, requestID)
		if err != nil {
			return err
		}

		if req.Expire(w.now()) {
			if err := w.store.SaveRequest(ctx, req); err != nil {
				return err
			}
			w.record(ctx, requestID, domain.EventRequestTimeout, nil)
			return domain.ErrRequestExpired
		}

		if req.Status != domain.StatusPending {
			return domain.ErrInvalidState
		}

		if newPriority != "" {
			req.Priority = newPriority
		}
		if newAssignee != "" {
			req.Assignee = newAssignee
		}
		req.Status = domain.StatusEscalated
		if err := w.store.SaveRequest(ctx, req); err != nil {
			return err
		}

		w.record(ctx, requestID, domain.EventRequestEscalated, map[string]any{
			"priority": string(req.Priority),
			"assignee": req.Assignee,
			"reason":   reason,
		})
		if w.metrics != nil {
			w.metrics.ApprovalDecisions.WithLabelValues(string(domain.StatusEscalated)).Inc()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return req, nil
}

// History returns the most recent limit audit events of the request, in
// chronological order.
func (w *Workflow) History(ctx context.Context, requestID string, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		limit = w.historyLimit
	}
	return w.audit.Query(ctx, requestID, limit)
}

// Stats aggregates approval activity over a trailing window.
type Stats struct {
	WindowHours     float64        `json:"window_hours"`
	Total           int            `json:"total"`
	ByStatus        map[string]int `json:"by_status"`
	ByType          map[string]int `json:"by_type"`
	ApprovalRate    float64        `json:"approval_rate"`
	AvgResponseSecs float64        `json:"avg_response_seconds"`
}

// GetStats computes counters over requests created within the window.
// The approval rate counts approved and modified against all decided
// (non-pending) requests; response time averages creation-to-decision over
// requests that carry a response.
func (w *Workflow) GetStats(ctx context.Context, window time.Duration) (Stats, error) {
	w.sweep(ctx)

	all, err := w.store.ListRequests(ctx)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		WindowHours: window.Hours(),
		ByStatus:    make(map[string]int),
		ByType:      make(map[string]int),
	}
	cutoff := w.now().Add(-window)

	var decided, favorable int
	var latencySum time.Duration
	var latencyCount int

	for _, r := range all {
		if r.CreatedAt.Before(cutoff) {
			continue
		}
		stats.Total++
		stats.ByStatus[string(r.Status)]++
		stats.ByType[string(r.Type)]++

		if r.Status != domain.StatusPending {
			decided++
		}
		if r.Status == domain.StatusApproved || r.Status == domain.StatusModified {
			favorable++
		}
		if r.Response != nil {
			latencySum += r.Response.RespondedAt.Sub(r.CreatedAt)
			latencyCount++
		}
	}

	if decided > 0 {
		stats.ApprovalRate = float64(favorable) / float64(decided)
	}
	if latencyCount > 0 {
		stats.AvgResponseSecs = (latencySum / time.Duration(latencyCount)).Seconds()
	}
	return stats, nil
}

// Sweep expires every pending request past its deadline, taking the same
// per-record lock as respond and cancel. It is idempotent and returns the
// number of requests transitioned.
func (w *Workflow) Sweep(ctx context.Context) (int, error) {
	ids, err := w.store.ListPending(ctx)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, id := range ids {
		err := w.locks.WithLock(ctx, id, func(ctx context.Context) error {
			req, err := w.store.LoadRequest(ctx, id)
			if err != nil {
				return err
			}
			if !req.Expire(w.now()) {
				return nil
			}
			if err := w.store.SaveRequest(ctx, req); err != nil {
				return err
			}
			w.record(ctx, id, domain.EventRequestTimeout, map[string]any{
				"expires_at": req.ExpiresAt,
			})
			if w.metrics != nil {
				w.metrics.SweptRequests.Inc()
			}
			swept++
			return nil
		})
		if err != nil {
			// A request decided between listing and locking is fine.
			w.logger.Warn("Sweep skipped request", "request_id", id, "err", err)
		}
	}
	return swept, nil
}

// sweep is the inline best-effort variant run before workflow operations.
func (w *Workflow) sweep(ctx context.Context) {
	if _, err := w.Sweep(ctx); err != nil {
		w.logger.Warn("Inline sweep failed", "err", err)
	}
}

// record appends to the audit log, logging failures instead of surfacing
// them.
func (w *Workflow) record(ctx context.Context, ownerID string, kind domain.EventKind, details map[string]any) {
	event := domain.AuditEvent{
		OwnerID:   ownerID,
		Kind:      kind,
		Timestamp: w.now(),
		Details:   details,
	}
	if err := w.audit.Append(ctx, event); err != nil {
		w.logger.Warn("Failed to append audit event", "owner_id", ownerID, "kind", string(kind), "err", err)
	}
}
