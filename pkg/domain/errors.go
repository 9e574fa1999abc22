package domain

import "errors"

// ErrSessionNotFound is returned when a session ID cannot be found in the store.
var ErrSessionNotFound = errors.New("session not found")

// ErrRequestNotFound is returned when an approval request ID cannot be found in the store.
var ErrRequestNotFound = errors.New("approval request not found")

// ErrInvalidState is returned when an operation is attempted against a record
// whose status does not permit it (e.g. responding to a non-pending request).
var ErrInvalidState = errors.New("invalid state for operation")

// ErrRequestExpired is returned when a decision arrives after the request
// already transitioned to timeout.
var ErrRequestExpired = errors.New("approval request expired")
