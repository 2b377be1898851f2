package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/movie-ticket-booking/internal/model"
)

// EventRepo provides access to the events table. Events are owned by the
// catalog side of the system; the payment core only ever reads them.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `id, title, description, show_time, price_cents, capacity, image_url, created_at, updated_at`

// scanEvent reads one event row from a row scanner, converting nullable
// columns to pointers.
func scanEvent(row interface{ Scan(...any) error }) (*model.Event, error) {
	var ev model.Event
	var desc, img sql.NullString
	if err := row.Scan(
		&ev.ID, &ev.Title, &desc, &ev.ShowTime, &ev.PriceCents,
		&ev.Capacity, &img, &ev.CreatedAt, &ev.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if desc.Valid {
		d := desc.String
		ev.Description = &d
	}
	if img.Valid {
		u := img.String
		ev.ImageURL = &u
	}
	return &ev, nil
}

// GetByID returns the event with the given id or ErrEventNotFound.
func (r *EventRepo) GetByID(ctx context.Context, id uint64) (*model.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	ev, err := scanEvent(r.db.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	return ev, nil
}

// List returns all events ordered by show time ascending.
func (r *EventRepo) List(ctx context.Context) ([]model.Event, error) {
	const q = `SELECT ` + eventColumns + ` FROM events ORDER BY show_time ASC`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	events := make([]model.Event, 0)
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// Create inserts a new event and populates the generated id and
// timestamps on the provided record.
func (r *EventRepo) Create(ctx context.Context, ev *model.Event) error {
	const q = `INSERT INTO events (title, description, show_time, price_cents, capacity, image_url)
	           VALUES (?, ?, ?, ?, ?, ?)`
	result, err := r.db.ExecContext(ctx, q,
		ev.Title, ev.Description, ev.ShowTime, ev.PriceCents, ev.Capacity, ev.ImageURL,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	// Query back the full row to pick up database-side defaults.
	const sel = `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	created, err := scanEvent(r.db.QueryRowContext(ctx, sel, uint64(id)))
	if err != nil {
		return err
	}
	*ev = *created
	return nil
}
