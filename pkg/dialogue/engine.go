package dialogue

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/observability"
	"github.com/parleyhq/parley/pkg/domain"
	"github.com/parleyhq/parley/pkg/ports"
	"github.com/parleyhq/parley/pkg/schema"
	"github.com/parleyhq/parley/pkg/session"
)

// Engine advances dialogue sessions through their slot-filling plan.
// All mutation of a session happens under its per-key lock.
type Engine struct {
	store        ports.SessionStore
	audit        ports.AuditLog
	locks        *session.Locks
	metrics      *observability.Metrics
	logger       *slog.Logger
	historyLimit int
	now          func() time.Time
	newID        func() string
}

// Option configures the Engine.
type Option func(*Engine)

// WithLocks shares a lock manager with other components.
func WithLocks(locks *session.Locks) Option {
	return func(e *Engine) { e.locks = locks }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the time source. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides session id generation. Used by tests.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// WithHistoryLimit overrides the default cap on history queries (50).
func WithHistoryLimit(limit int) Option {
	return func(e *Engine) {
		if limit > 0 {
			e.historyLimit = limit
		}
	}
}

// NewEngine creates a dialogue engine over the given store and audit log.
func NewEngine(store ports.SessionStore, audit ports.AuditLog, opts ...Option) *Engine {
	e := &Engine{
		store:        store,
		audit:        audit,
		locks:        session.NewLocks(),
		logger:       logging.NewNop(),
		historyLimit: 50,
		now:          time.Now,
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CreateParams carries the inputs of session creation. Schema is the field
// array produced by the external schema provider; it may be empty, in which
// case the session has nothing to collect.
type CreateParams struct {
	Entity       string
	Schema       []domain.Field
	InitialSlots map[string]any
	Metadata     map[string]any
}

// Create classifies the schema, builds the session and persists it.
// Malformed field records degrade non-fatally: they are skipped by the
// classifier with a warning.
func (e *Engine) Create(ctx context.Context, params CreateParams) (*domain.DialogueSession, error) {
	class := schema.Classify(params.Schema, e.logger)
	fields := schema.WellFormed(params.Schema)

	id := e.newID()
	sess := domain.NewSession(id, params.Entity, fields, class, params.InitialSlots, params.Metadata, e.now())

	err := e.locks.WithLock(ctx, id, func(ctx context.Context) error {
		return e.store.SaveSession(ctx, sess)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	e.record(ctx, id, domain.EventSessionCreated, map[string]any{
		"entity":       sess.Entity,
		"hard_slots":   len(class.Hard),
		"soft_slots":   len(class.Soft),
		"hidden_slots": len(class.Hidden),
	})
	if e.metrics != nil {
		e.metrics.SessionEvents.WithLabelValues("created").Inc()
		if sess.Status == domain.SessionActive {
			e.metrics.ActiveSessions.Inc()
		}
	}
	e.logger.Info("Session created", "session_id", id, "entity", sess.Entity, "current_slot", sess.CurrentSlot)
	return sess, nil
}

// Update applies a collect/modify/clear mutation to one slot and returns
// the updated snapshot plus the completion flag.
func (e *Engine) Update(ctx context.Context, sessionID, slot string, value any, action domain.SlotAction) (*domain.DialogueSession, bool, error) {
	if action == "" {
		action = domain.SlotCollect
	}

	var sess *domain.DialogueSession
	var complete bool
	err := e.locks.WithLock(ctx, sessionID, func(ctx context.Context) error {
		var err error
		sess, err = e.store.LoadSession(ctx, sessionID)
		if err != nil {
			return err
		}

		prev := sess.Status
		complete = sess.ApplySlot(slot, value, action, e.now())
		if err := e.store.SaveSession(ctx, sess); err != nil {
			return err
		}

		e.record(ctx, sessionID, domain.EventSlotUpdated, map[string]any{
			"slot":   slot,
			"action": string(action),
		})
		if sess.Status != prev {
			e.record(ctx, sessionID, domain.EventSessionStatus, map[string]any{
				"from": string(prev),
				"to":   string(sess.Status),
			})
		}
		e.observeTransition(prev, sess.Status)
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if e.metrics != nil {
		e.metrics.SessionEvents.WithLabelValues("slot_" + string(action)).Inc()
	}
	return sess, complete, nil
}

// Get returns a read-only snapshot of the session.
func (e *Engine) Get(ctx context.Context, sessionID string) (*domain.DialogueSession, error) {
	return e.store.LoadSession(ctx, sessionID)
}

// Validate checks the collected slots against the session's schema and
// reports hard errors and soft warnings. It does not mutate the session:
// the caller decides whether a failing record still goes to review.
func (e *Engine) Validate(ctx context.Context, sessionID string) (schema.Report, error) {
	sess, err := e.store.LoadSession(ctx, sessionID)
	if err != nil {
		return schema.Report{}, err
	}
	return schema.ValidateRecord(sess.Fields, sess.CollectedSlots), nil
}

// List returns the ids of all known sessions.
func (e *Engine) List(ctx context.Context) ([]string, error) {
	return e.store.ListSessions(ctx)
}

// History returns the most recent limit audit events of the session, in
// chronological order.
func (e *Engine) History(ctx context.Context, sessionID string, limit int) ([]domain.AuditEvent, error) {
	if limit <= 0 {
		limit = e.historyLimit
	}
	return e.audit.Query(ctx, sessionID, limit)
}

// InterruptAction selects how an interruption invocation treats the session.
type InterruptAction string

const (
	InterruptAnalyze InterruptAction = "analyze"
	InterruptRecover InterruptAction = "recover"
	InterruptAbort   InterruptAction = "abort"
	InterruptPause   InterruptAction = "pause"
)

// InterruptionResult reports the classification plus the session state
// after handling.
type InterruptionResult struct {
	Classification
	SessionStatus     domain.SessionStatus `json:"session_status,omitempty"`
	InterruptionCount int                  `json:"interruption_count"`
	CurrentSlot       string               `json:"current_slot,omitempty"`
}

// HandleInterruption classifies the utterance and applies the requested
// action to the session. The interruption counter is incremented exactly
// once per invocation, analyze included. When the session is unknown the
// classification is still returned alongside ErrSessionNotFound so callers
// can log what the user said.
func (e *Engine) HandleInterruption(ctx context.Context, sessionID, message string, action InterruptAction) (InterruptionResult, error) {
	if action == "" {
		action = InterruptAnalyze
	}
	result := InterruptionResult{Classification: ClassifyUtterance(message)}
	if e.metrics != nil {
		e.metrics.Interruptions.WithLabelValues(string(result.Intent)).Inc()
	}

	err := e.locks.WithLock(ctx, sessionID, func(ctx context.Context) error {
		sess, err := e.store.LoadSession(ctx, sessionID)
		if err != nil {
			return err
		}

		prev := sess.Status
		sess.InterruptionCount++
		sess.LastUpdated = e.now()

		// The counter increments once per invocation even when the
		// transition below is rejected, so the increment is persisted
		// before the transition error surfaces.
		var transErr error
		switch action {
		case InterruptRecover:
			transErr = sess.Transition(domain.SessionActive, e.now())
		case InterruptAbort:
			transErr = sess.Transition(domain.SessionAbandoned, e.now())
		case InterruptPause:
			transErr = sess.Transition(domain.SessionInterrupted, e.now())
		}

		if err := e.store.SaveSession(ctx, sess); err != nil {
			return err
		}
		if transErr != nil {
			result.SessionStatus = sess.Status
			result.InterruptionCount = sess.InterruptionCount
			return transErr
		}

		e.record(ctx, sessionID, domain.EventInterruption, map[string]any{
			"intent":         string(result.Intent),
			"action":         string(action),
			"recommendation": string(result.Recommendation),
		})
		if sess.Status != prev {
			e.record(ctx, sessionID, domain.EventSessionStatus, map[string]any{
				"from": string(prev),
				"to":   string(sess.Status),
			})
		}
		e.observeTransition(prev, sess.Status)

		result.SessionStatus = sess.Status
		result.InterruptionCount = sess.InterruptionCount
		result.CurrentSlot = sess.CurrentSlot
		return nil
	})
	if err != nil {
		return result, err
	}
	return result, nil
}

// record appends to the audit log, logging failures instead of surfacing
// them: audit trouble must not fail the operation it describes.
func (e *Engine) record(ctx context.Context, ownerID string, kind domain.EventKind, details map[string]any) {
	event := domain.AuditEvent{
		OwnerID:   ownerID,
		Kind:      kind,
		Timestamp: e.now(),
		Details:   details,
	}
	if err := e.audit.Append(ctx, event); err != nil {
		e.logger.Warn("Failed to append audit event", "owner_id", ownerID, "kind", string(kind), "err", err)
	}
}

func (e *Engine) observeTransition(prev, next domain.SessionStatus) {
	if e.metrics == nil || prev == next {
		return
	}
	if prev == domain.SessionActive {
		e.metrics.ActiveSessions.Dec()
	}
	if next == domain.SessionActive {
		e.metrics.ActiveSessions.Inc()
	}
}
