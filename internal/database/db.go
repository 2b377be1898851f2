package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Open connects to MySQL and verifies the connection.
func Open(user, pass, host, port, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC",
		auth, host, port, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the events, tickets and push_requests tables when
// they do not exist and seeds sample events into an empty catalog. It is
// run once at startup; a failure here is fatal to the process.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			title VARCHAR(255) NOT NULL,
			description TEXT,
			show_time DATETIME NOT NULL,
			price_cents INT UNSIGNED NOT NULL,
			capacity INT UNSIGNED NOT NULL DEFAULT 100,
			image_url VARCHAR(255),
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS tickets (
			id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			reference CHAR(36) NOT NULL,
			event_id BIGINT UNSIGNED NOT NULL,
			customer_name VARCHAR(255) NOT NULL,
			phone_number VARCHAR(20) NOT NULL,
			quantity INT UNSIGNED NOT NULL,
			total_cents BIGINT UNSIGNED NOT NULL,
			status ENUM('PENDING','PAID','FAILED') NOT NULL DEFAULT 'PENDING',
			receipt_number VARCHAR(100),
			settled_at DATETIME,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
			UNIQUE KEY uq_tickets_reference (reference),
			CONSTRAINT fk_tickets_event FOREIGN KEY (event_id) REFERENCES events(id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS push_requests (
			id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
			ticket_id BIGINT UNSIGNED NOT NULL,
			checkout_request_id VARCHAR(255) NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
			UNIQUE KEY uq_push_requests_checkout (checkout_request_id),
			CONSTRAINT fk_push_requests_ticket FOREIGN KEY (ticket_id) REFERENCES tickets(id) ON DELETE CASCADE
		)`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return seedEvents(ctx, db)
}

// seedEvents inserts sample screenings when the catalog is empty so a
// fresh deployment has something to sell.
func seedEvents(ctx context.Context, db *sql.DB) error {
	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM events`).Scan(&count); err != nil {
		return fmt.Errorf("count events: %w", err)
	}
	if count > 0 {
		return nil
	}
	const q = `INSERT INTO events (title, description, show_time, price_cents, capacity, image_url) VALUES
		('The Matrix Resurrections', 'A new chapter in the sci-fi franchise.', '2025-06-15 18:30:00', 50000, 200, 'https://example.com/matrix.jpg'),
		('Dune: Part Two', 'The epic saga continues.', '2025-06-16 20:00:00', 45000, 150, 'https://example.com/dune.jpg'),
		('The Avengers: New Age', 'Marvel heroes unite again.', '2025-06-17 19:00:00', 55000, 250, 'https://example.com/avengers.jpg')`
	if _, err := db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("seed events: %w", err)
	}
	log.Println("sample event data added")
	return nil
}
