package repository

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/seat-booking/internal/model"
)

// ShowRepo is the MySQL implementation of ShowStore. The seat catalog
// lives in show_seats and committed seats in booked_seats, whose primary
// key (show_id, seat_number) makes the database itself refuse a second
// claim on a seat. shows.version carries the optimistic concurrency token.
type ShowRepo struct {
	db *sql.DB
}

// NewShowRepo returns a ShowRepo bound to db.
func NewShowRepo(db *sql.DB) *ShowRepo { return &ShowRepo{db: db} }

// queryer is satisfied by both *sql.DB and *sql.Tx so loaders can run
// inside or outside a transaction.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CreateShow inserts a show with its seat catalog. Shows are normally
// provisioned by the catalog service; this is used for seeding.
func (r *ShowRepo) CreateShow(ctx context.Context, s *model.Show) error {
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

	if _, err := tx.ExecContext(ctx, `INSERT INTO shows (id, version) VALUES (?, ?)`, s.ID, s.Version); err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	seats := s.CatalogSeats()
	if len(seats) > 0 {
		query := `INSERT INTO show_seats (show_id, seat_number, seat_type, price) VALUES `
		args := make([]any, 0, len(seats)*4)
		for i, seat := range seats {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?)"
			info := s.SeatCatalog[seat]
			args = append(args, s.ID, seat, info.SeatType, info.Price)
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

func (r *ShowRepo) FindShow(ctx context.Context, id string) (*model.Show, error) {
	var version uint64
	err := r.db.QueryRowContext(ctx, `SELECT version FROM shows WHERE id = ?`, id).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShowNotFound
	}
	if err != nil {
		return nil, err
	}
	return loadShowSeats(ctx, r.db, id, version)
}

// ConditionalUpdateShow locks the show row, checks the version, applies the
// mutator to a copy and writes back only the booked_seats rows that
// changed. The version bump is itself guarded by the expected version so
// the update stays correct even without the row lock.
func (r *ShowRepo) ConditionalUpdateShow(ctx context.Context, id string, expectedVersion uint64, mutate ShowMutator) (*model.Show, error) {
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

	var version uint64
	err = tx.QueryRowContext(ctx, `SELECT version FROM shows WHERE id = ? FOR UPDATE`, id).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShowNotFound
	}
	if err != nil {
		return nil, err
	}
	if version != expectedVersion {
		return nil, ErrVersionConflict
	}

	cur, err := loadShowSeats(ctx, tx, id, version)
	if err != nil {
		return nil, err
	}
	next := cur.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}

	removed, added := diffBookedSeats(cur.BookedSeats, next.BookedSeats)
	if len(removed) > 0 {
		query := `DELETE FROM booked_seats WHERE show_id = ? AND seat_number IN (` + placeholders(len(removed)) + `)`
		args := make([]any, 0, len(removed)+1)
		args = append(args, id)
		for _, seat := range removed {
			args = append(args, seat)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return nil, err
		}
	}
	if len(added) > 0 {
		query := `INSERT INTO booked_seats (show_id, seat_number, booking_id) VALUES `
		args := make([]any, 0, len(added)*3)
		for i, seat := range added {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?)"
			args = append(args, id, seat, next.BookedSeats[seat])
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isDuplicateKey(err) {
				return nil, ErrVersionConflict
			}
			return nil, err
		}
	}

	res, err := tx.ExecContext(ctx, `UPDATE shows SET version = version + 1 WHERE id = ? AND version = ?`, id, expectedVersion)
	if err != nil {
		return nil, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, err
	} else if n != 1 {
		return nil, ErrVersionConflict
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true

	next.ID = id
	next.Version = version + 1
	return next, nil
}

// ListBookedShows reads the distinct shows referenced by booked_seats.
func (r *ShowRepo) ListBookedShows(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT DISTINCT show_id FROM booked_seats ORDER BY show_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func loadShowSeats(ctx context.Context, q queryer, id string, version uint64) (*model.Show, error) {
	show := &model.Show{
		ID:          id,
		Version:     version,
		SeatCatalog: make(map[string]model.SeatInfo),
		BookedSeats: make(map[string]string),
	}

	rows, err := q.QueryContext(ctx, `SELECT seat_number, seat_type, price FROM show_seats WHERE show_id = ?`, id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var seat, seatType string
		var price decimal.Decimal
		if err := rows.Scan(&seat, &seatType, &price); err != nil {
			rows.Close()
			return nil, err
		}
		show.SeatCatalog[seat] = model.SeatInfo{SeatType: seatType, Price: price}
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = q.QueryContext(ctx, `SELECT seat_number, booking_id FROM booked_seats WHERE show_id = ?`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var seat, bookingID string
		if err := rows.Scan(&seat, &bookingID); err != nil {
			return nil, err
		}
		show.BookedSeats[seat] = bookingID
	}
	return show, rows.Err()
}

// diffBookedSeats returns, sorted, the seats whose binding disappeared or
// changed (removed) and the seats whose binding is new or changed (added).
func diffBookedSeats(before, after map[string]string) (removed, added []string) {
	for seat, id := range before {
		if after[seat] != id {
			removed = append(removed, seat)
		}
	}
	for seat, id := range after {
		if before[seat] != id {
			added = append(added, seat)
		}
	}
	sort.Strings(removed)
	sort.Strings(added)
	return removed, added
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// isDuplicateKey reports a MySQL unique/primary key violation (1062).
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
