package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// TicketRepo provides access to the tickets table. Status transitions
// are implemented as conditional updates (… WHERE status = 'PENDING')
// so that concurrent finalizations of the same ticket can never both
// succeed; whichever commits first wins and the loser observes
// ErrTicketFinalized.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo returns a new TicketRepo bound to the given database.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

const ticketColumns = `id, reference, event_id, customer_name, phone_number, quantity,
	total_cents, status, receipt_number, settled_at, created_at, updated_at`

func scanTicket(row interface{ Scan(...any) error }) (*model.Ticket, error) {
	var t model.Ticket
	var receipt sql.NullString
	var settled sql.NullTime
	if err := row.Scan(
		&t.ID, &t.Reference, &t.EventID, &t.CustomerName, &t.PhoneNumber, &t.Quantity,
		&t.TotalCents, &t.Status, &receipt, &settled, &t.CreatedAt, &t.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if receipt.Valid {
		ref := receipt.String
		t.ReceiptNumber = &ref
	}
	if settled.Valid {
		ts := settled.Time
		t.SettledAt = &ts
	}
	return &t, nil
}

// Create inserts a ticket in the PENDING state and populates the
// generated id and timestamps on the provided record.
func (r *TicketRepo) Create(ctx context.Context, t *model.Ticket) error {
	const q = `INSERT INTO tickets (reference, event_id, customer_name, phone_number, quantity, total_cents, status)
	           VALUES (?, ?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q,
		t.Reference, t.EventID, t.CustomerName, t.PhoneNumber, t.Quantity, t.TotalCents, t.Status,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	const sel = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ?`
	created, err := scanTicket(r.db.QueryRowContext(ctx, sel, t.ID))
	if err != nil {
		return err
	}
	*t = *created
	return nil
}

// GetByID returns the ticket with the given id or ErrTicketNotFound.
func (r *TicketRepo) GetByID(ctx context.Context, id uint64) (*model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE id = ?`
	t, err := scanTicket(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	return t, nil
}

// TicketDetail is a ticket joined with a snapshot of its event, returned
// for buyer-facing lookups.
type TicketDetail struct {
	Ticket model.Ticket `json:"ticket"`
	Event  model.Event  `json:"event"`
}

// GetDetail returns the ticket together with its event snapshot or
// ErrTicketNotFound.
func (r *TicketRepo) GetDetail(ctx context.Context, id uint64) (*TicketDetail, error) {
	const q = `SELECT t.id, t.reference, t.event_id, t.customer_name, t.phone_number, t.quantity,
	                  t.total_cents, t.status, t.receipt_number, t.settled_at, t.created_at, t.updated_at,
	                  e.id, e.title, e.description, e.show_time, e.price_cents, e.capacity, e.image_url,
	                  e.created_at, e.updated_at
	           FROM tickets t
	           JOIN events e ON e.id = t.event_id
	           WHERE t.id = ?`
	var det TicketDetail
	var receipt sql.NullString
	var settled sql.NullTime
	var desc, img sql.NullString
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&det.Ticket.ID, &det.Ticket.Reference, &det.Ticket.EventID, &det.Ticket.CustomerName,
		&det.Ticket.PhoneNumber, &det.Ticket.Quantity, &det.Ticket.TotalCents, &det.Ticket.Status,
		&receipt, &settled, &det.Ticket.CreatedAt, &det.Ticket.UpdatedAt,
		&det.Event.ID, &det.Event.Title, &desc, &det.Event.ShowTime, &det.Event.PriceCents,
		&det.Event.Capacity, &img, &det.Event.CreatedAt, &det.Event.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	if receipt.Valid {
		ref := receipt.String
		det.Ticket.ReceiptNumber = &ref
	}
	if settled.Valid {
		ts := settled.Time
		det.Ticket.SettledAt = &ts
	}
	if desc.Valid {
		d := desc.String
		det.Event.Description = &d
	}
	if img.Valid {
		u := img.String
		det.Event.ImageURL = &u
	}
	return &det, nil
}

// SoldQuantity returns the sum of quantities over PAID tickets for an
// event. Pending tickets are provisional and do not count.
func (r *TicketRepo) SoldQuantity(ctx context.Context, eventID uint64) (uint32, error) {
	const q = `SELECT COALESCE(SUM(quantity), 0) FROM tickets WHERE event_id = ? AND status = 'PAID'`
	var sold uint32
	if err := r.db.QueryRowContext(ctx, q, eventID).Scan(&sold); err != nil {
		return 0, err
	}
	return sold, nil
}

// MarkFailed transitions a PENDING ticket to FAILED. It returns
// ErrTicketNotFound when the ticket does not exist and
// ErrTicketFinalized when the ticket already reached a terminal state,
// so a late failure can never overwrite a completed payment.
func (r *TicketRepo) MarkFailed(ctx context.Context, ticketID uint64) error {
	const q = `UPDATE tickets SET status = 'FAILED' WHERE id = ? AND status = 'PENDING'`
	result, err := r.db.ExecContext(ctx, q, ticketID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return r.classifyNoop(ctx, ticketID)
	}
	return nil
}

// SettlePaid transitions a PENDING ticket to PAID, storing the provider
// receipt and settlement time. The whole operation runs in one
// transaction that:
//
//  1. locks the event row (FOR UPDATE) to serialize settlements per event,
//  2. re-counts paid quantities and rejects the transition with
//     ErrCapacityExceeded if it would overbook the event,
//  3. applies the conditional status update, failing with
//     ErrTicketFinalized if another finalize got there first.
//
// No provider I/O happens inside this transaction.
func (r *TicketRepo) SettlePaid(ctx context.Context, ticketID uint64, receipt string, settledAt time.Time) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	const loadQ = `SELECT t.event_id, t.quantity, t.status, e.capacity
	               FROM tickets t
	               JOIN events e ON e.id = t.event_id
	               WHERE t.id = ?
	               FOR UPDATE`
	var eventID uint64
	var quantity, capacity uint32
	var status string
	if err := tx.QueryRowContext(ctx, loadQ, ticketID).Scan(&eventID, &quantity, &status, &capacity); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTicketNotFound
		}
		return err
	}
	if status != model.TicketPending {
		return ErrTicketFinalized
	}

	const soldQ = `SELECT COALESCE(SUM(quantity), 0) FROM tickets WHERE event_id = ? AND status = 'PAID'`
	var sold uint32
	if err := tx.QueryRowContext(ctx, soldQ, eventID).Scan(&sold); err != nil {
		return err
	}
	if sold+quantity > capacity {
		return ErrCapacityExceeded
	}

	const upd = `UPDATE tickets SET status = 'PAID', receipt_number = ?, settled_at = ?
	             WHERE id = ? AND status = 'PENDING'`
	var receiptArg any
	if receipt != "" {
		receiptArg = receipt
	}
	result, err := tx.ExecContext(ctx, upd, receiptArg, settledAt.UTC(), ticketID)
	if err != nil {
		return err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrTicketFinalized
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// classifyNoop resolves why a conditional update touched zero rows:
// either the ticket is gone or it already reached a terminal state.
func (r *TicketRepo) classifyNoop(ctx context.Context, ticketID uint64) error {
	const q = `SELECT status FROM tickets WHERE id = ?`
	var status string
	if err := r.db.QueryRowContext(ctx, q, ticketID).Scan(&status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTicketNotFound
		}
		return err
	}
	return ErrTicketFinalized
}
