package model

import "time"

// Event represents a screening that tickets are sold for. Capacity is the
// hard limit on the number of tickets that may ever reach the PAID state.
// Events are created by catalog administrators and are read-only to the
// payment core.
//
// Fields:
//  ID          – primary key identifier.
//  Title       – movie title shown to buyers.
//  Description – optional longer text.
//  ShowTime    – when the screening starts.
//  PriceCents  – unit ticket price in cents.
//  Capacity    – maximum number of tickets that can be sold.
//  ImageURL    – optional poster image.
//  CreatedAt   – creation timestamp.
//  UpdatedAt   – last update timestamp.
type Event struct {
	ID          uint64    `json:"id"`           // events.id
	Title       string    `json:"title"`        // events.title
	Description *string   `json:"description"`  // events.description (nullable)
	ShowTime    time.Time `json:"show_time"`    // events.show_time
	PriceCents  uint32    `json:"price_cents"`  // events.price_cents
	Capacity    uint32    `json:"capacity"`     // events.capacity
	ImageURL    *string   `json:"image_url"`    // events.image_url (nullable)
	CreatedAt   time.Time `json:"created_at"`   // events.created_at
	UpdatedAt   time.Time `json:"updated_at"`   // events.updated_at
}
