package model

import "time"

// PushRequest maps a provider-issued checkout request identifier back to
// the ticket it was initiated for. The provider's asynchronous callback
// carries only this identifier, so the row is the sole link between an
// STK push result and a reservation. Exactly one exists per accepted
// push; a ticket whose push was rejected has none.
//
// Fields:
//  ID                – primary key identifier.
//  TicketID          – ticket the push was initiated for.
//  CheckoutRequestID – opaque correlation token from the provider.
//  CreatedAt         – creation timestamp.
type PushRequest struct {
	ID                uint64    `json:"id"`                  // push_requests.id
	TicketID          uint64    `json:"ticket_id"`           // push_requests.ticket_id
	CheckoutRequestID string    `json:"checkout_request_id"` // push_requests.checkout_request_id
	CreatedAt         time.Time `json:"created_at"`          // push_requests.created_at
}
