package parley

import (
	"context"
	"time"

	"log/slog"

	"github.com/parleyhq/parley/internal/logging"
	"github.com/parleyhq/parley/internal/observability"
	"github.com/parleyhq/parley/pkg/adapters/memory"
	"github.com/parleyhq/parley/pkg/approval"
	"github.com/parleyhq/parley/pkg/dialogue"
	"github.com/parleyhq/parley/pkg/ports"
	"github.com/parleyhq/parley/pkg/session"
)

// Version is the released version of Parley.
const Version = "0.1.0"

// Orchestrator is the high-level entry point for the Parley library. It
// wires the dialogue engine, the approval workflow and the timeout sweeper
// over a shared lock manager and audit log.
type Orchestrator struct {
	Dialogue  *dialogue.Engine
	Approvals *approval.Workflow
	Audit     ports.AuditLog

	sweeper *approval.Sweeper
}

type config struct {
	sessions      ports.SessionStore
	approvals     ports.ApprovalStore
	audit         ports.AuditLog
	locker        ports.DistributedLocker
	metrics       *observability.Metrics
	logger        *slog.Logger
	sweepInterval time.Duration
	auditLimit    int
}

// Option defines a functional option for configuring the Orchestrator.
type Option func(*config)

// WithSessionStore injects a custom session store, bypassing the in-memory default.
func WithSessionStore(store ports.SessionStore) Option {
	return func(c *config) { c.sessions = store }
}

// WithApprovalStore injects a custom approval store.
func WithApprovalStore(store ports.ApprovalStore) Option {
	return func(c *config) { c.approvals = store }
}

// WithAuditLog injects a custom audit log.
func WithAuditLog(audit ports.AuditLog) Option {
	return func(c *config) { c.audit = audit }
}

// WithLocker enables distributed locking for multi-replica deployments.
func WithLocker(locker ports.DistributedLocker) Option {
	return func(c *config) { c.locker = locker }
}

// WithMetrics enables Prometheus instrumentation.
func WithMetrics(m *observability.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithSweepInterval overrides the 60s timeout sweep interval.
func WithSweepInterval(interval time.Duration) Option {
	return func(c *config) { c.sweepInterval = interval }
}

// WithAuditLimit caps how many audit events history queries return when
// the caller does not ask for a specific limit.
func WithAuditLimit(limit int) Option {
	return func(c *config) { c.auditLimit = limit }
}

// New creates an Orchestrator. Without options it is fully in-memory.
func New(opts ...Option) *Orchestrator {
	cfg := &config{
		sessions:  memory.NewStore(),
		approvals: memory.NewApprovalStore(),
		audit:     memory.NewAuditLog(),
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	lockOpts := []session.Option{session.WithLogger(cfg.logger)}
	if cfg.locker != nil {
		lockOpts = append(lockOpts, session.WithLocker(cfg.locker))
	}
	locks := session.NewLocks(lockOpts...)

	dialogueOpts := []dialogue.Option{
		dialogue.WithLocks(locks),
		dialogue.WithLogger(cfg.logger),
	}
	workflowOpts := []approval.Option{
		approval.WithLocks(locks),
		approval.WithLogger(cfg.logger),
	}
	if cfg.metrics != nil {
		dialogueOpts = append(dialogueOpts, dialogue.WithMetrics(cfg.metrics))
		workflowOpts = append(workflowOpts, approval.WithMetrics(cfg.metrics))
	}
	if cfg.auditLimit > 0 {
		dialogueOpts = append(dialogueOpts, dialogue.WithHistoryLimit(cfg.auditLimit))
		workflowOpts = append(workflowOpts, approval.WithHistoryLimit(cfg.auditLimit))
	}

	o := &Orchestrator{
		Dialogue:  dialogue.NewEngine(cfg.sessions, cfg.audit, dialogueOpts...),
		Approvals: approval.NewWorkflow(cfg.approvals, cfg.audit, workflowOpts...),
		Audit:     cfg.audit,
	}
	o.sweeper = approval.NewSweeper(o.Approvals, cfg.sweepInterval, cfg.logger)
	return o
}

// StartSweeper runs the timeout sweeper until the context is cancelled.
// It blocks, so callers usually start it in a goroutine.
func (o *Orchestrator) StartSweeper(ctx context.Context) {
	o.sweeper.Run(ctx)
}
