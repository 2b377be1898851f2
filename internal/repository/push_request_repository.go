package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// PushRequestRepo provides access to the push_requests table, the link
// between provider checkout request identifiers and tickets. Rows are
// written once after a push is accepted and read back when the
// asynchronous result arrives.
type PushRequestRepo struct {
	db *sql.DB
}

// NewPushRequestRepo returns a new PushRequestRepo bound to the given database.
func NewPushRequestRepo(db *sql.DB) *PushRequestRepo { return &PushRequestRepo{db: db} }

// Create inserts a push request record and populates the generated id
// and creation timestamp on the provided record.
func (r *PushRequestRepo) Create(ctx context.Context, pr *model.PushRequest) error {
	const q = `INSERT INTO push_requests (ticket_id, checkout_request_id) VALUES (?, ?)`
	result, err := r.db.ExecContext(ctx, q, pr.TicketID, pr.CheckoutRequestID)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	pr.ID = uint64(id)
	const sel = `SELECT created_at FROM push_requests WHERE id = ?`
	return r.db.QueryRowContext(ctx, sel, pr.ID).Scan(&pr.CreatedAt)
}

// GetByCheckoutRequestID returns the push request carrying the given
// provider identifier or ErrPushRequestNotFound.
func (r *PushRequestRepo) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*model.PushRequest, error) {
	const q = `SELECT id, ticket_id, checkout_request_id, created_at
	           FROM push_requests WHERE checkout_request_id = ?`
	var pr model.PushRequest
	err := r.db.QueryRowContext(ctx, q, checkoutRequestID).Scan(
		&pr.ID, &pr.TicketID, &pr.CheckoutRequestID, &pr.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPushRequestNotFound
		}
		return nil, err
	}
	return &pr, nil
}
