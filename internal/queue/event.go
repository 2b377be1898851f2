// Package queue defines message payloads exchanged over the message broker.
package queue

// PaymentSettledEvent is published when a ticket transitions to PAID.
// It carries enough information for downstream consumers to log, notify
// or reconcile without querying the primary database.
type PaymentSettledEvent struct {
	TicketID      uint64 `json:"ticket_id"`
	Reference     string `json:"reference"`
	EventID       uint64 `json:"event_id"`
	EventTitle    string `json:"event_title"`
	PhoneNumber   string `json:"phone_number"`
	Quantity      uint32 `json:"quantity"`
	AmountCents   uint64 `json:"amount_cents"`
	ReceiptNumber string `json:"receipt_number"`
	SettledAt     string `json:"settled_at"`
}
