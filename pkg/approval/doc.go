// Package approval owns the human-in-the-loop workflow: priority-tiered
// approval requests, decision recording, batch decisions, escalation, the
// timeout sweeper, and windowed statistics.
package approval
