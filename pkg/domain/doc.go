// Package domain contains the core types of the Parley engine: dialogue
// sessions, approval requests, audit events, and the state machines that
// govern them. It is pure computation over in-memory values; persistence
// and transports live in adapters.
package domain
