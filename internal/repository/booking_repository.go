package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/seat-booking/internal/model"
)

// BookingRepo is the MySQL implementation of BookingStore. Line items are
// kept in booking_seats ordered by position so the request order survives
// a round trip.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to db.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, user_id, show_id, total_amount, payment_status, booking_status,
       payment_id, ticket_id, created_at, cancelled_at, cancellation_reason`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(s rowScanner) (*model.Booking, error) {
	var (
		b           model.Booking
		paymentID   sql.NullString
		cancelledAt sql.NullTime
		reason      sql.NullString
	)
	if err := s.Scan(
		&b.ID, &b.UserID, &b.ShowID, &b.TotalAmount, &b.PaymentStatus, &b.BookingStatus,
		&paymentID, &b.TicketID, &b.CreatedAt, &cancelledAt, &reason,
	); err != nil {
		return nil, err
	}
	b.PaymentID = paymentID.String
	b.CancellationReason = reason.String
	if cancelledAt.Valid {
		t := cancelledAt.Time.UTC()
		b.CancelledAt = &t
	}
	b.CreatedAt = b.CreatedAt.UTC()
	b.Seats = []model.BookedSeat{}
	return &b, nil
}

func (r *BookingRepo) CreateBooking(ctx context.Context, b *model.Booking) error {
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

	const q = `INSERT INTO bookings (id, user_id, show_id, total_amount, payment_status, booking_status,
                      payment_id, ticket_id, created_at, cancelled_at, cancellation_reason)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if _, err := tx.ExecContext(ctx, q,
		b.ID, b.UserID, b.ShowID, b.TotalAmount, string(b.PaymentStatus), string(b.BookingStatus),
		nullString(b.PaymentID), b.TicketID, b.CreatedAt, nullTime(b.CancelledAt), nullString(b.CancellationReason),
	); err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}

	if len(b.Seats) > 0 {
		query := `INSERT INTO booking_seats (booking_id, position, seat_number, seat_type, price) VALUES `
		args := make([]any, 0, len(b.Seats)*5)
		for i, s := range b.Seats {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?)"
			args = append(args, b.ID, i, s.SeatNumber, s.SeatType, s.Price)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

func (r *BookingRepo) FindBooking(ctx context.Context, id string) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := attachSeats(ctx, r.db, []*model.Booking{b}); err != nil {
		return nil, err
	}
	return b, nil
}

// UpdateBooking locks the booking row for the duration of the mutator so
// concurrent settlement and cancellation observe each other's outcome.
func (r *BookingRepo) UpdateBooking(ctx context.Context, id string, mutate BookingMutator) (*model.Booking, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	cur, err := scanBooking(tx.QueryRowContext(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = ? FOR UPDATE`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBookingNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := attachSeats(ctx, tx, []*model.Booking{cur}); err != nil {
		return nil, err
	}

	next := cur.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}

	const q = `UPDATE bookings
               SET payment_status = ?, booking_status = ?, payment_id = ?, cancelled_at = ?, cancellation_reason = ?
               WHERE id = ?`
	if _, err := tx.ExecContext(ctx, q,
		string(next.PaymentStatus), string(next.BookingStatus), nullString(next.PaymentID),
		nullTime(next.CancelledAt), nullString(next.CancellationReason), id,
	); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	next.ID, next.UserID, next.ShowID = cur.ID, cur.UserID, cur.ShowID
	next.Seats, next.TotalAmount, next.TicketID = cur.Seats, cur.TotalAmount, cur.TicketID
	return next, nil
}

func (r *BookingRepo) FindBookingsByUser(ctx context.Context, userID string) ([]*model.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

func (r *BookingRepo) FindPendingBookings(ctx context.Context, createdBefore time.Time, limit int) ([]*model.Booking, error) {
	const where = ` FROM bookings
               WHERE payment_status = ? AND booking_status = ? AND created_at < ?
               ORDER BY created_at
               LIMIT ?`
	return r.list(ctx, `SELECT `+bookingColumns+where,
		string(model.PaymentPending), string(model.BookingConfirmed), createdBefore.UTC(), limit)
}

func (r *BookingRepo) list(ctx context.Context, query string, args ...any) ([]*model.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	out := make([]*model.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		out = append(out, b)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := attachSeats(ctx, r.db, out); err != nil {
		return nil, err
	}
	return out, nil
}

// attachSeats loads line items for all given bookings in one query.
func attachSeats(ctx context.Context, q queryer, bookings []*model.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	index := make(map[string]*model.Booking, len(bookings))
	ids := make([]any, 0, len(bookings))
	for _, b := range bookings {
		index[b.ID] = b
		ids = append(ids, b.ID)
	}
	query := `SELECT booking_id, seat_number, seat_type, price
              FROM booking_seats
              WHERE booking_id IN (` + placeholders(len(ids)) + `)
              ORDER BY booking_id, position`
	rows, err := q.QueryContext(ctx, query, ids...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var bookingID string
		var seat model.BookedSeat
		var price decimal.Decimal
		if err := rows.Scan(&bookingID, &seat.SeatNumber, &seat.SeatType, &price); err != nil {
			return err
		}
		seat.Price = price
		if b, ok := index[bookingID]; ok {
			b.Seats = append(b.Seats, seat)
		}
	}
	return rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}
