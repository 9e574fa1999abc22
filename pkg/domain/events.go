package domain

import "time"

// EventKind labels an audit event.
type EventKind string

const (
	EventSessionCreated   EventKind = "session_created"
	EventSlotUpdated      EventKind = "slot_updated"
	EventSessionStatus    EventKind = "session_status_changed"
	EventInterruption     EventKind = "interruption"
	EventRequestCreated   EventKind = "request_created"
	EventRequestResponded EventKind = "request_responded"
	EventRequestCancelled EventKind = "request_cancelled"
	EventRequestEscalated EventKind = "request_escalated"
	EventRequestTimeout   EventKind = "request_timeout"
)

// AuditEvent is one append-only record in the audit stream. OwnerID is the
// session or request the event belongs to.
type AuditEvent struct {
	OwnerID   string         `json:"owner_id"`
	Kind      EventKind      `json:"kind"`
	Timestamp time.Time      `json:"timestamp"`
	Details   map[string]any `json:"details,omitempty"`
}
