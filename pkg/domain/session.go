package domain

import "time"

// SessionStatus is the lifecycle state of a dialogue session.
type SessionStatus string

const (
	SessionActive          SessionStatus = "active"
	SessionPendingApproval SessionStatus = "pending_approval"
	SessionInterrupted     SessionStatus = "interrupted"
	SessionAbandoned       SessionStatus = "abandoned"
	SessionCompleted       SessionStatus = "completed"
)

// Terminal reports whether no further transition may leave the status.
func (s SessionStatus) Terminal() bool {
	return s == SessionAbandoned || s == SessionCompleted
}

// SlotAction is the kind of mutation applied by a slot update.
type SlotAction string

const (
	SlotCollect SlotAction = "collect"
	SlotModify  SlotAction = "modify"
	SlotClear   SlotAction = "clear"
)

// DialogueSession is one slot-collection conversation. All mutation goes
// through the dialogue engine, which holds the per-session lock; the type
// itself only enforces the state machine.
type DialogueSession struct {
	SessionID string `json:"session_id"`
	Entity    string `json:"entity"`

	// Fields is the ordered schema the session was created with. Order is
	// significant: it breaks priority ties for current-slot selection.
	Fields         []Field            `json:"fields,omitempty"`
	Classification SlotClassification `json:"slot_classification"`

	CollectedSlots map[string]any `json:"collected_slots"`
	PendingSlots   []string       `json:"pending_slots"`
	CompletedSlots []string       `json:"completed_slots"`

	// CurrentSlot is the next slot to elicit, empty when none remains.
	CurrentSlot string `json:"current_slot,omitempty"`

	Status            SessionStatus `json:"status"`
	InterruptionCount int           `json:"interruption_count"`

	CreatedAt   time.Time      `json:"created_at"`
	LastUpdated time.Time      `json:"last_updated"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// NewSession builds an active session over the classified schema. Slots
// already present in initial are recorded as collected and completed.
func NewSession(id, entity string, fields []Field, class SlotClassification, initial map[string]any, metadata map[string]any, now time.Time) *DialogueSession {
	s := &DialogueSession{
		SessionID:      id,
		Entity:         entity,
		Fields:         fields,
		Classification: class,
		CollectedSlots: make(map[string]any),
		PendingSlots:   class.Askable(),
		CompletedSlots: []string{},
		Status:         SessionActive,
		CreatedAt:      now,
		LastUpdated:    now,
		Metadata:       metadata,
	}
	for name, value := range initial {
		s.CollectedSlots[name] = value
		s.markCompleted(name)
	}
	s.Recompute()
	return s
}

// ApplySlot performs a collect/modify/clear mutation and recomputes the
// derived state. When the last askable slot completes while the session is
// active, the session transitions to pending_approval. The returned flag
// reports whether slot filling is complete.
func (s *DialogueSession) ApplySlot(name string, value any, action SlotAction, now time.Time) bool {
	switch action {
	case SlotClear:
		delete(s.CollectedSlots, name)
		s.markPending(name)
	default: // collect and modify write identically
		s.CollectedSlots[name] = value
		s.markCompleted(name)
	}
	s.LastUpdated = now
	s.Recompute()

	complete := s.CurrentSlot == ""
	if complete && s.Status == SessionActive {
		s.Status = SessionPendingApproval
	}
	return complete
}

// Recompute re-derives CurrentSlot as the minimum-priority pending slot.
// Ties keep schema declaration order; fields without a declared priority
// sort last.
func (s *DialogueSession) Recompute() {
	pending := make(map[string]bool, len(s.PendingSlots))
	for _, name := range s.PendingSlots {
		pending[name] = true
	}

	s.CurrentSlot = ""
	best := DefaultPriority + 1
	for _, f := range s.Fields {
		if !pending[f.Name] {
			continue
		}
		if p := f.EffectivePriority(); p < best {
			best = p
			s.CurrentSlot = f.Name
		}
	}
	if s.CurrentSlot != "" {
		return
	}
	// Slots can be pending without a backing field when the schema was
	// malformed or absent; fall back to declaration order of the sets.
	for _, name := range s.Classification.Askable() {
		if pending[name] {
			s.CurrentSlot = name
			return
		}
	}
}

// Transition moves the session to the target status. Transitions out of a
// terminal status are rejected with ErrInvalidState.
func (s *DialogueSession) Transition(to SessionStatus, now time.Time) error {
	if s.Status.Terminal() && to != s.Status {
		return ErrInvalidState
	}
	s.Status = to
	s.LastUpdated = now
	if to == SessionActive {
		s.Recompute()
	}
	return nil
}

// IsComplete reports whether every askable slot has been completed.
func (s *DialogueSession) IsComplete() bool {
	return len(s.PendingSlots) == 0
}

func (s *DialogueSession) markCompleted(name string) {
	if !s.askable(name) {
		return
	}
	s.PendingSlots = remove(s.PendingSlots, name)
	if !contains(s.CompletedSlots, name) {
		s.CompletedSlots = append(s.CompletedSlots, name)
	}
}

func (s *DialogueSession) markPending(name string) {
	if !s.askable(name) {
		return
	}
	s.CompletedSlots = remove(s.CompletedSlots, name)
	if !contains(s.PendingSlots, name) {
		s.PendingSlots = append(s.PendingSlots, name)
	}
}

func (s *DialogueSession) askable(name string) bool {
	return contains(s.Classification.Hard, name) || contains(s.Classification.Soft, name)
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

func remove(names []string, name string) []string {
	out := names[:0]
	for _, n := range names {
		if n != name {
			out = append(out, n)
		}
	}
	return out
}
