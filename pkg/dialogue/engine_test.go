package dialogue_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/parleyhq/parley/pkg/adapters/memory"
	"github.com/parleyhq/parley/pkg/dialogue"
	"github.com/parleyhq/parley/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T) (*dialogue.Engine, *memory.AuditLog) {
	t.Helper()
	audit := memory.NewAuditLog()
	counter := 0
	engine := dialogue.NewEngine(memory.NewStore(), audit,
		dialogue.WithIDGenerator(func() string {
			counter++
			return fmt.Sprintf("sess-%d", counter)
		}),
	)
	return engine, audit
}

func ticketSchema() []domain.Field {
	return []domain.Field{
		{Name: "serial", Required: true},
		{Name: "issue", Required: true},
		{Name: "urgency", Required: true, Enum: []string{"low", "medium", "high", "critical"}},
	}
}

func TestEngine_CreateClassifiesSchema(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	sess, err := engine.Create(ctx, dialogue.CreateParams{
		Entity: "support_ticket",
		Schema: ticketSchema(),
	})
	require.NoError(t, err)

	assert.Equal(t, "sess-1", sess.SessionID)
	assert.Len(t, sess.Classification.Hard, 3)
	assert.Empty(t, sess.Classification.Soft)
	assert.Empty(t, sess.Classification.Hidden)
	assert.Equal(t, "serial", sess.CurrentSlot)
}

func TestEngine_SlotFillingEndToEnd(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	sess, err := engine.Create(ctx, dialogue.CreateParams{Entity: "support_ticket", Schema: ticketSchema()})
	require.NoError(t, err)

	sess, complete, err := engine.Update(ctx, sess.SessionID, "serial", "SN-1", domain.SlotCollect)
	require.NoError(t, err)
	assert.False(t, complete)
	assert.Equal(t, "issue", sess.CurrentSlot)

	_, _, err = engine.Update(ctx, sess.SessionID, "issue", "will not boot", domain.SlotCollect)
	require.NoError(t, err)

	sess, complete, err = engine.Update(ctx, sess.SessionID, "urgency", "high", domain.SlotCollect)
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Empty(t, sess.CurrentSlot)
	assert.Equal(t, domain.SessionPendingApproval, sess.Status)
}

func TestEngine_UpdateUnknownSession(t *testing.T) {
	engine, _ := newTestEngine(t)

	_, _, err := engine.Update(context.Background(), "nope", "serial", "x", domain.SlotCollect)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEngine_GetReturnsSnapshot(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	created, err := engine.Create(ctx, dialogue.CreateParams{Entity: "t", Schema: ticketSchema()})
	require.NoError(t, err)

	got, err := engine.Get(ctx, created.SessionID)
	require.NoError(t, err)
	assert.Equal(t, created.SessionID, got.SessionID)

	// Mutating the snapshot must not leak into the store.
	got.CollectedSlots["serial"] = "tampered"
	clean, err := engine.Get(ctx, created.SessionID)
	require.NoError(t, err)
	assert.NotContains(t, clean.CollectedSlots, "serial")

	_, err = engine.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEngine_InterruptionCountsEveryInvocation(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	sess, err := engine.Create(ctx, dialogue.CreateParams{Entity: "t", Schema: ticketSchema()})
	require.NoError(t, err)

	for i := 1; i <= 3; i++ {
		result, err := engine.HandleInterruption(ctx, sess.SessionID, "hold on", dialogue.InterruptAnalyze)
		require.NoError(t, err)
		assert.Equal(t, i, result.InterruptionCount)
		assert.Equal(t, domain.SessionActive, result.SessionStatus, "analyze never mutates status")
	}
}

func TestEngine_InterruptionActions(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	sess, err := engine.Create(ctx, dialogue.CreateParams{Entity: "t", Schema: ticketSchema()})
	require.NoError(t, err)

	result, err := engine.HandleInterruption(ctx, sess.SessionID, "hold on a sec", dialogue.InterruptPause)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionInterrupted, result.SessionStatus)
	assert.Equal(t, dialogue.IntentPause, result.Intent)

	result, err = engine.HandleInterruption(ctx, sess.SessionID, "ok go on", dialogue.InterruptRecover)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionActive, result.SessionStatus)
	assert.Equal(t, "serial", result.CurrentSlot)

	result, err = engine.HandleInterruption(ctx, sess.SessionID, "forget it", dialogue.InterruptAbort)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionAbandoned, result.SessionStatus)
	assert.Equal(t, 3, result.InterruptionCount)
}

func TestEngine_InterruptionUnknownSessionStillClassifies(t *testing.T) {
	engine, _ := newTestEngine(t)

	result, err := engine.HandleInterruption(context.Background(), "missing", "cancel this", dialogue.InterruptAnalyze)
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.Equal(t, dialogue.IntentCancel, result.Intent)
	assert.Equal(t, dialogue.RecommendAbort, result.Recommendation)
}

func TestEngine_AbortedSessionRejectsRecovery(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	sess, err := engine.Create(ctx, dialogue.CreateParams{Entity: "t", Schema: ticketSchema()})
	require.NoError(t, err)

	_, err = engine.HandleInterruption(ctx, sess.SessionID, "forget it", dialogue.InterruptAbort)
	require.NoError(t, err)

	result, err := engine.HandleInterruption(ctx, sess.SessionID, "go on", dialogue.InterruptRecover)
	assert.ErrorIs(t, err, domain.ErrInvalidState)
	// The counter still advanced: every invocation counts.
	assert.Equal(t, 2, result.InterruptionCount)

	got, err := engine.Get(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Equal(t, domain.SessionAbandoned, got.Status)
	assert.Equal(t, 2, got.InterruptionCount)
}

func TestEngine_HistoryRecordsMutations(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	sess, err := engine.Create(ctx, dialogue.CreateParams{Entity: "t", Schema: ticketSchema()})
	require.NoError(t, err)

	_, _, err = engine.Update(ctx, sess.SessionID, "serial", "SN-1", domain.SlotCollect)
	require.NoError(t, err)
	_, err = engine.HandleInterruption(ctx, sess.SessionID, "hold on", dialogue.InterruptPause)
	require.NoError(t, err)

	events, err := engine.History(ctx, sess.SessionID, 50)
	require.NoError(t, err)

	kinds := make([]domain.EventKind, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	assert.Contains(t, kinds, domain.EventSessionCreated)
	assert.Contains(t, kinds, domain.EventSlotUpdated)
	assert.Contains(t, kinds, domain.EventInterruption)
	assert.Contains(t, kinds, domain.EventSessionStatus)
	assert.Equal(t, domain.EventSessionCreated, kinds[0], "events arrive in chronological order")
}

func TestEngine_MalformedSchemaDegradesGracefully(t *testing.T) {
	engine, _ := newTestEngine(t)

	sess, err := engine.Create(context.Background(), dialogue.CreateParams{
		Entity: "t",
		Schema: []domain.Field{{Name: ""}, {Name: "only", Required: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"only"}, sess.Classification.Hard)
	assert.Equal(t, "only", sess.CurrentSlot)
}

func TestEngine_ClockIsInjectable(t *testing.T) {
	frozen := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	engine := dialogue.NewEngine(memory.NewStore(), memory.NewAuditLog(),
		dialogue.WithClock(func() time.Time { return frozen }),
	)

	sess, err := engine.Create(context.Background(), dialogue.CreateParams{Entity: "t", Schema: ticketSchema()})
	require.NoError(t, err)
	assert.True(t, sess.CreatedAt.Equal(frozen))
	assert.True(t, sess.LastUpdated.Equal(frozen))
}

func TestEngine_ValidateReportsErrorsAndWarnings(t *testing.T) {
	engine, _ := newTestEngine(t)
	ctx := context.Background()

	sess, err := engine.Create(ctx, dialogue.CreateParams{
		Entity: "support_ticket",
		Schema: []domain.Field{
			{Name: "serial", Required: true},
			{Name: "urgency", Required: true, Enum: []string{"low", "high"}},
			{Name: "channel", Default: "web"},
		},
	})
	require.NoError(t, err)

	report, err := engine.Validate(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.False(t, report.ReadyForWrite)
	assert.Len(t, report.Errors, 2, "both required slots missing")
	assert.Len(t, report.Warnings, 1, "defaulted slot missing is only a warning")

	_, _, err = engine.Update(ctx, sess.SessionID, "serial", "ab-123", domain.SlotCollect)
	require.NoError(t, err)
	_, _, err = engine.Update(ctx, sess.SessionID, "urgency", "medium", domain.SlotCollect)
	require.NoError(t, err)

	report, err = engine.Validate(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.False(t, report.ReadyForWrite, "value outside the enum is a hard error")
	require.Len(t, report.Errors, 1)

	_, _, err = engine.Update(ctx, sess.SessionID, "urgency", "high", domain.SlotModify)
	require.NoError(t, err)

	report, err = engine.Validate(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.True(t, report.ReadyForWrite)
	assert.Empty(t, report.Errors)
}

func TestEngine_ValidateUnknownSession(t *testing.T) {
	engine, _ := newTestEngine(t)
	_, err := engine.Validate(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEngine_HistoryDefaultLimitConfigurable(t *testing.T) {
	engine := dialogue.NewEngine(memory.NewStore(), memory.NewAuditLog(),
		dialogue.WithHistoryLimit(2),
	)
	ctx := context.Background()

	sess, err := engine.Create(ctx, dialogue.CreateParams{Entity: "t", Schema: ticketSchema()})
	require.NoError(t, err)
	for _, slot := range []string{"serial", "issue", "urgency"} {
		_, _, err = engine.Update(ctx, sess.SessionID, slot, "v", domain.SlotCollect)
		require.NoError(t, err)
	}

	events, err := engine.History(ctx, sess.SessionID, 0)
	require.NoError(t, err)
	assert.Len(t, events, 2, "zero limit falls back to the configured cap")

	all, err := engine.History(ctx, sess.SessionID, 50)
	require.NoError(t, err)
	assert.Greater(t, len(all), 2, "an explicit limit still wins")
}
