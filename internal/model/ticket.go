package model

import "time"

// Ticket statuses. PENDING is the only non-terminal state: a ticket moves
// to PAID or FAILED exactly once and never leaves either.
const (
	TicketPending = "PENDING"
	TicketPaid    = "PAID"
	TicketFailed  = "FAILED"
)

// Ticket records one purchase attempt for an event. The total amount is
// frozen at creation time (quantity × event price) so later price edits
// never change what the buyer was charged. ReceiptNumber and SettledAt
// are populated only when the ticket reaches PAID.
//
// Fields:
//  ID            – primary key identifier.
//  Reference     – public UUID handed to the buyer.
//  EventID       – event the ticket belongs to.
//  CustomerName  – buyer name as entered.
//  PhoneNumber   – normalized phone number (2547XXXXXXXX).
//  Quantity      – number of seats purchased (≥ 1).
//  TotalCents    – frozen total in cents.
//  Status        – PENDING, PAID or FAILED.
//  ReceiptNumber – provider receipt, set on PAID.
//  SettledAt     – provider settlement time, set on PAID.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Ticket struct {
	ID            uint64     `json:"id"`             // tickets.id
	Reference     string     `json:"reference"`      // tickets.reference
	EventID       uint64     `json:"event_id"`       // tickets.event_id
	CustomerName  string     `json:"customer_name"`  // tickets.customer_name
	PhoneNumber   string     `json:"phone_number"`   // tickets.phone_number
	Quantity      uint32     `json:"quantity"`       // tickets.quantity
	TotalCents    uint64     `json:"total_cents"`    // tickets.total_cents
	Status        string     `json:"status"`         // tickets.status
	ReceiptNumber *string    `json:"receipt_number"` // tickets.receipt_number (nullable)
	SettledAt     *time.Time `json:"settled_at"`     // tickets.settled_at (nullable)
	CreatedAt     time.Time  `json:"created_at"`     // tickets.created_at
	UpdatedAt     time.Time  `json:"updated_at"`     // tickets.updated_at
}

// Final reports whether the ticket is in a terminal state.
func (t *Ticket) Final() bool {
	return t.Status == TicketPaid || t.Status == TicketFailed
}
