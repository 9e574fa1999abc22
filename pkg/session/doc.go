// Package session provides per-key mutual exclusion for record mutation.
// Dialogue sessions and approval requests share the same discipline: one
// writer at a time per individual record, with an optional distributed
// locker layered on top for multi-replica deployments.
package session
