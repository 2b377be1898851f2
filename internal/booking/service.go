// Package booking implements the payment core: creating reservations
// against a hard capacity limit, driving the STK push flow, and merging
// the provider's asynchronous result back onto the reservation exactly
// once. Storage and provider access are consumed through small
// interfaces so the flow can be exercised without a database.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/movie-ticket-booking/internal/daraja"
	"github.com/iliyamo/movie-ticket-booking/internal/model"
	"github.com/iliyamo/movie-ticket-booking/internal/phone"
	"github.com/iliyamo/movie-ticket-booking/internal/queue"
	"github.com/iliyamo/movie-ticket-booking/internal/repository"
)

// EventStore reads catalog events. The payment core never writes them.
type EventStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Event, error)
}

// TicketStore persists tickets. MarkFailed and SettlePaid must be
// conditional on the PENDING state so that terminal states are never
// overwritten, and SettlePaid must re-apply the capacity check
// atomically before committing.
type TicketStore interface {
	Create(ctx context.Context, t *model.Ticket) error
	GetByID(ctx context.Context, id uint64) (*model.Ticket, error)
	SoldQuantity(ctx context.Context, eventID uint64) (uint32, error)
	MarkFailed(ctx context.Context, ticketID uint64) error
	SettlePaid(ctx context.Context, ticketID uint64, receipt string, settledAt time.Time) error
}

// PushStore persists the mapping from provider checkout request
// identifiers to tickets.
type PushStore interface {
	Create(ctx context.Context, pr *model.PushRequest) error
	GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*model.PushRequest, error)
}

// PaymentClient initiates STK pushes. Implemented by *daraja.Client.
type PaymentClient interface {
	InitiateSTKPush(ctx context.Context, pr daraja.PushRequest) (*daraja.PushResponse, error)
}

// SettlementPublisher emits a payment.settled event after a ticket is
// marked PAID. Publishing is best effort; failures never roll back the
// settlement.
type SettlementPublisher interface {
	PublishPaymentSettled(ctx context.Context, ev queue.PaymentSettledEvent) error
}

// Service is the reservation manager and reconciliation engine. All
// methods are safe for concurrent use; the store is the only shared
// mutable resource and every terminal transition goes through a
// conditional update there.
type Service struct {
	events    EventStore
	tickets   TicketStore
	pushes    PushStore
	payments  PaymentClient
	publisher SettlementPublisher // optional, may be nil
}

// NewService constructs the booking service. The publisher may be nil
// when no broker is configured; all other dependencies must be non-nil.
func NewService(events EventStore, tickets TicketStore, pushes PushStore, payments PaymentClient, publisher SettlementPublisher) *Service {
	if events == nil || tickets == nil || pushes == nil || payments == nil {
		panic("nil dependency passed to booking.NewService")
	}
	return &Service{
		events:    events,
		tickets:   tickets,
		pushes:    pushes,
		payments:  payments,
		publisher: publisher,
	}
}

// CreateReservationInput is the buyer's reservation request.
type CreateReservationInput struct {
	EventID      uint64
	CustomerName string
	PhoneNumber  string
	Quantity     uint32
}

// CreateReservationResult is returned after the provider accepted the
// push. The ticket is still PENDING at this point; the outcome arrives
// asynchronously.
type CreateReservationResult struct {
	Ticket            *model.Ticket
	CheckoutRequestID string
	CustomerMessage   string
}

// CreateReservation validates the request, checks capacity, persists a
// PENDING ticket with the frozen total and initiates the STK push. The
// ticket row is created before the provider call on purpose: a crash or
// timeout mid-call leaves an auditable PENDING record instead of a
// silently lost attempt. Any synchronous provider failure marks the
// ticket FAILED before the error is surfaced, so only asynchronous
// uncertainty ever leaves a ticket PENDING.
func (s *Service) CreateReservation(ctx context.Context, in CreateReservationInput) (*CreateReservationResult, error) {
	if in.EventID == 0 {
		return nil, validationf("event_id is required")
	}
	if strings.TrimSpace(in.CustomerName) == "" {
		return nil, validationf("customer_name is required")
	}
	if strings.TrimSpace(in.PhoneNumber) == "" {
		return nil, validationf("phone_number is required")
	}
	if in.Quantity < 1 {
		return nil, validationf("quantity must be at least 1")
	}

	ev, err := s.events.GetByID(ctx, in.EventID)
	if err != nil {
		return nil, err
	}

	// Request-time capacity check. Only PAID tickets count, so two
	// concurrent requests may both pass here for the same remaining
	// seats; SettlePaid re-applies the check before any PAID commit.
	sold, err := s.tickets.SoldQuantity(ctx, ev.ID)
	if err != nil {
		return nil, fmt.Errorf("count sold tickets: %w", err)
	}
	if sold+in.Quantity > ev.Capacity {
		return nil, &SoldOutError{Available: ev.Capacity - sold}
	}

	ticket := &model.Ticket{
		Reference:    uuid.NewString(),
		EventID:      ev.ID,
		CustomerName: strings.TrimSpace(in.CustomerName),
		PhoneNumber:  phone.Normalize(in.PhoneNumber),
		Quantity:     in.Quantity,
		TotalCents:   uint64(in.Quantity) * uint64(ev.PriceCents),
		Status:       model.TicketPending,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}

	resp, err := s.payments.InitiateSTKPush(ctx, daraja.PushRequest{
		PhoneNumber:      ticket.PhoneNumber,
		AmountCents:      ticket.TotalCents,
		AccountReference: "Movie Ticket " + ev.Title,
		Description:      "Movie Ticket Purchase",
	})
	if err != nil {
		// Token failures, provider rejections and transport errors all
		// end the attempt here: mark FAILED so the buyer is never left
		// with an ambiguous PENDING row from a synchronous failure.
		if ferr := s.tickets.MarkFailed(ctx, ticket.ID); ferr != nil && !errors.Is(ferr, repository.ErrTicketFinalized) {
			log.Printf("booking: mark ticket %d failed after push error: %v", ticket.ID, ferr)
		}
		ticket.Status = model.TicketFailed
		return nil, err
	}

	if err := s.pushes.Create(ctx, &model.PushRequest{
		TicketID:          ticket.ID,
		CheckoutRequestID: resp.CheckoutRequestID,
	}); err != nil {
		// The push is in flight but we lost the correlation record. The
		// ticket stays PENDING for manual reconciliation.
		return nil, fmt.Errorf("record push request for ticket %d: %w", ticket.ID, err)
	}

	return &CreateReservationResult{
		Ticket:            ticket,
		CheckoutRequestID: resp.CheckoutRequestID,
		CustomerMessage:   resp.CustomerMessage,
	}, nil
}

// Outcome is a parsed provider result, produced either from the
// asynchronous callback or from a status query.
type Outcome struct {
	Success     bool
	Receipt     string    // provider receipt number, success only
	SettledAt   time.Time // zero value means "now"
	AmountCents uint64    // amount reported by the provider, 0 if absent
	FailureCode string    // provider result code, failure only
	FailureDesc string
}

// Finalize applies a provider outcome to the ticket behind the given
// checkout request identifier, transitioning it to PAID or FAILED
// exactly once. If the ticket already reached a terminal state the call
// is a silent no-op: the provider retries callback deliveries and a
// poll may race a callback, and whichever resolution commits first
// wins. Unknown identifiers yield repository.ErrPushRequestNotFound.
func (s *Service) Finalize(ctx context.Context, checkoutRequestID string, out Outcome) error {
	pr, err := s.pushes.GetByCheckoutRequestID(ctx, checkoutRequestID)
	if err != nil {
		return err
	}
	ticket, err := s.tickets.GetByID(ctx, pr.TicketID)
	if err != nil {
		return err
	}
	if ticket.Final() {
		return nil
	}

	if !out.Success {
		if err := s.tickets.MarkFailed(ctx, ticket.ID); err != nil {
			if errors.Is(err, repository.ErrTicketFinalized) {
				return nil
			}
			return fmt.Errorf("mark ticket %d failed: %w", ticket.ID, err)
		}
		log.Printf("booking: ticket %d failed (code=%s): %s", ticket.ID, out.FailureCode, out.FailureDesc)
		return nil
	}

	settledAt := out.SettledAt
	if settledAt.IsZero() {
		settledAt = time.Now().UTC()
	}
	if out.AmountCents != 0 && out.AmountCents != ticket.TotalCents {
		log.Printf("booking: ticket %d amount mismatch: provider reported %d cents, expected %d",
			ticket.ID, out.AmountCents, ticket.TotalCents)
	}
	if err := s.tickets.SettlePaid(ctx, ticket.ID, out.Receipt, settledAt); err != nil {
		if errors.Is(err, repository.ErrTicketFinalized) {
			return nil
		}
		if errors.Is(err, repository.ErrCapacityExceeded) {
			// The provider took the money but the seats are gone. This
			// needs manual reconciliation; the ticket stays PENDING and
			// the condition must never be dropped silently.
			log.Printf("booking: OVERSELL on event %d: ticket %d (qty %d, receipt %q) settled past capacity, manual reconciliation required",
				ticket.EventID, ticket.ID, ticket.Quantity, out.Receipt)
			return fmt.Errorf("settle ticket %d: %w", ticket.ID, err)
		}
		return fmt.Errorf("settle ticket %d: %w", ticket.ID, err)
	}

	s.publishSettled(ctx, ticket, out.Receipt, settledAt)
	return nil
}

// publishSettled emits the payment.settled event. Failures are logged
// and swallowed so a broker outage never blocks reconciliation.
func (s *Service) publishSettled(ctx context.Context, ticket *model.Ticket, receipt string, settledAt time.Time) {
	if s.publisher == nil {
		return
	}
	title := ""
	if ev, err := s.events.GetByID(ctx, ticket.EventID); err == nil {
		title = ev.Title
	}
	ev := queue.PaymentSettledEvent{
		TicketID:      ticket.ID,
		Reference:     ticket.Reference,
		EventID:       ticket.EventID,
		EventTitle:    title,
		PhoneNumber:   ticket.PhoneNumber,
		Quantity:      ticket.Quantity,
		AmountCents:   ticket.TotalCents,
		ReceiptNumber: receipt,
		SettledAt:     settledAt.UTC().Format(time.RFC3339),
	}
	if err := s.publisher.PublishPaymentSettled(ctx, ev); err != nil {
		log.Printf("booking: publish payment.settled for ticket %d: %v", ticket.ID, err)
	}
}

// TicketStatus returns the stored ticket for a checkout request
// identifier, used by the status-query path to report local state.
func (s *Service) TicketStatus(ctx context.Context, checkoutRequestID string) (*model.Ticket, error) {
	pr, err := s.pushes.GetByCheckoutRequestID(ctx, checkoutRequestID)
	if err != nil {
		return nil, err
	}
	return s.tickets.GetByID(ctx, pr.TicketID)
}
