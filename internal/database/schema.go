package database

import (
	"context"
	"database/sql"
	"fmt"
)

// schema is applied statement by statement; the DSN does not enable
// multiStatements.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS shows (
		id         VARCHAR(64)     NOT NULL PRIMARY KEY,
		version    BIGINT UNSIGNED NOT NULL DEFAULT 0,
		created_at DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME        NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS show_seats (
		show_id     VARCHAR(64)   NOT NULL,
		seat_number VARCHAR(16)   NOT NULL,
		seat_type   VARCHAR(32)   NOT NULL,
		price       DECIMAL(10,2) NOT NULL,
		PRIMARY KEY (show_id, seat_number),
		CONSTRAINT fk_show_seats_show FOREIGN KEY (show_id) REFERENCES shows (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS booked_seats (
		show_id     VARCHAR(64) NOT NULL,
		seat_number VARCHAR(16) NOT NULL,
		booking_id  VARCHAR(64) NOT NULL,
		PRIMARY KEY (show_id, seat_number),
		KEY idx_booked_seats_booking (booking_id),
		CONSTRAINT fk_booked_seats_show FOREIGN KEY (show_id) REFERENCES shows (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS bookings (
		id                  VARCHAR(64)   NOT NULL PRIMARY KEY,
		user_id             VARCHAR(64)   NOT NULL,
		show_id             VARCHAR(64)   NOT NULL,
		total_amount        DECIMAL(10,2) NOT NULL,
		payment_status      VARCHAR(16)   NOT NULL,
		booking_status      VARCHAR(16)   NOT NULL,
		payment_id          VARCHAR(64)   NULL,
		ticket_id           VARCHAR(64)   NOT NULL,
		created_at          DATETIME(6)   NOT NULL,
		cancelled_at        DATETIME(6)   NULL,
		cancellation_reason VARCHAR(255)  NULL,
		UNIQUE KEY uq_bookings_ticket (ticket_id),
		KEY idx_bookings_user (user_id, created_at),
		KEY idx_bookings_pending (payment_status, booking_status, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS booking_seats (
		booking_id  VARCHAR(64)   NOT NULL,
		position    INT           NOT NULL,
		seat_number VARCHAR(16)   NOT NULL,
		seat_type   VARCHAR(32)   NOT NULL,
		price       DECIMAL(10,2) NOT NULL,
		PRIMARY KEY (booking_id, position),
		CONSTRAINT fk_booking_seats_booking FOREIGN KEY (booking_id) REFERENCES bookings (id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id         VARCHAR(64)  NOT NULL PRIMARY KEY,
		user_id    VARCHAR(64)  NOT NULL,
		type       VARCHAR(32)  NOT NULL,
		booking_id VARCHAR(64)  NOT NULL DEFAULT '',
		ticket_id  VARCHAR(64)  NOT NULL DEFAULT '',
		message    VARCHAR(512) NOT NULL,
		created_at DATETIME(6)  NOT NULL,
		KEY idx_notifications_user (user_id, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the booking and notification tables when they do not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate step %d: %w", i+1, err)
		}
	}
	return nil
}
