// Package repository defines error values shared by the repositories.
// These sentinels let handlers and the booking service distinguish
// failure scenarios without inspecting SQL errors directly: unknown
// rows map to 404 responses, while ErrTicketFinalized and
// ErrCapacityExceeded drive the idempotency and oversell rules of the
// payment reconciliation flow.
package repository

import "errors"

// ErrEventNotFound is returned when no event exists for the given id.
var ErrEventNotFound = errors.New("event not found")

// ErrTicketNotFound is returned when no ticket exists for the given id.
var ErrTicketNotFound = errors.New("ticket not found")

// ErrPushRequestNotFound is returned when no push request matches a
// checkout request identifier. Callbacks carrying unknown identifiers
// must not fabricate state.
var ErrPushRequestNotFound = errors.New("push request not found")

// ErrTicketFinalized is returned when a status transition is attempted
// on a ticket that already reached PAID or FAILED. Terminal states are
// never overwritten; callers treat this as an idempotent no-op.
var ErrTicketFinalized = errors.New("ticket already finalized")

// ErrCapacityExceeded is returned when marking a ticket PAID would push
// the sum of paid quantities past the event capacity. The payment did
// go through on the provider side, so callers must log this oversell
// condition loudly instead of dropping it.
var ErrCapacityExceeded = errors.New("event capacity exceeded")
