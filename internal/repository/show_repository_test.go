package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-booking/internal/model"
)

func newShowRepoMock(t *testing.T) (*ShowRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewShowRepo(db), mock
}

func expectSeatRows(mock sqlmock.Sqlmock, showID string, booked map[string]string) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT seat_number, seat_type, price FROM show_seats WHERE show_id = ?")).
		WithArgs(showID).
		WillReturnRows(sqlmock.NewRows([]string{"seat_number", "seat_type", "price"}).
			AddRow("A1", "standard", "12.50").
			AddRow("A2", "vip", "20.00"))
	rows := sqlmock.NewRows([]string{"seat_number", "booking_id"})
	for seat, id := range booked {
		rows.AddRow(seat, id)
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT seat_number, booking_id FROM booked_seats WHERE show_id = ?")).
		WithArgs(showID).
		WillReturnRows(rows)
}

func TestShowRepo_FindShow(t *testing.T) {
	repo, mock := newShowRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM shows WHERE id = ?")).
		WithArgs("show-1").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(7)))
	expectSeatRows(mock, "show-1", map[string]string{"A2": "b-0"})

	show, err := repo.FindShow(context.Background(), "show-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), show.Version)
	assert.Len(t, show.SeatCatalog, 2)
	assert.True(t, show.SeatCatalog["A1"].Price.Equal(decimal.RequireFromString("12.50")))
	assert.Equal(t, "vip", show.SeatCatalog["A2"].SeatType)
	assert.Equal(t, map[string]string{"A2": "b-0"}, show.BookedSeats)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShowRepo_FindShow_NotFound(t *testing.T) {
	repo, mock := newShowRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM shows WHERE id = ?")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"version"}))

	_, err := repo.FindShow(context.Background(), "missing")
	require.ErrorIs(t, err, ErrShowNotFound)
	require.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShowRepo_ConditionalUpdateShow_WritesChangedSeats(t *testing.T) {
	repo, mock := newShowRepoMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM shows WHERE id = ? FOR UPDATE")).
		WithArgs("show-1").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(3)))
	expectSeatRows(mock, "show-1", map[string]string{"A2": "b-0"})
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM booked_seats WHERE show_id = ? AND seat_number IN (?)")).
		WithArgs("show-1", "A2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO booked_seats (show_id, seat_number, booking_id) VALUES (?, ?, ?)")).
		WithArgs("show-1", "A1", "b-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE shows SET version = version + 1 WHERE id = ? AND version = ?")).
		WithArgs("show-1", uint64(3)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	show, err := repo.ConditionalUpdateShow(context.Background(), "show-1", 3, func(s *model.Show) error {
		delete(s.BookedSeats, "A2")
		s.BookedSeats["A1"] = "b-1"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(4), show.Version)
	assert.Equal(t, map[string]string{"A1": "b-1"}, show.BookedSeats)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShowRepo_ConditionalUpdateShow_StaleVersion(t *testing.T) {
	repo, mock := newShowRepoMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM shows WHERE id = ? FOR UPDATE")).
		WithArgs("show-1").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(4)))
	mock.ExpectRollback()

	called := false
	_, err := repo.ConditionalUpdateShow(context.Background(), "show-1", 3, func(*model.Show) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrVersionConflict)
	assert.False(t, called)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShowRepo_ConditionalUpdateShow_DuplicateSeatIsVersionConflict(t *testing.T) {
	repo, mock := newShowRepoMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM shows WHERE id = ? FOR UPDATE")).
		WithArgs("show-1").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(3)))
	expectSeatRows(mock, "show-1", nil)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO booked_seats")).
		WillReturnError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry"})
	mock.ExpectRollback()

	_, err := repo.ConditionalUpdateShow(context.Background(), "show-1", 3, func(s *model.Show) error {
		s.BookedSeats["A1"] = "b-1"
		return nil
	})
	require.ErrorIs(t, err, ErrVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShowRepo_ConditionalUpdateShow_LostVersionBump(t *testing.T) {
	repo, mock := newShowRepoMock(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM shows WHERE id = ? FOR UPDATE")).
		WithArgs("show-1").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(3)))
	expectSeatRows(mock, "show-1", nil)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO booked_seats")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE shows SET version = version + 1")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.ConditionalUpdateShow(context.Background(), "show-1", 3, func(s *model.Show) error {
		s.BookedSeats["A1"] = "b-1"
		return nil
	})
	require.ErrorIs(t, err, ErrVersionConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShowRepo_ConditionalUpdateShow_MutatorErrorAborts(t *testing.T) {
	repo, mock := newShowRepoMock(t)
	boom := errors.New("seat taken")

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM shows WHERE id = ? FOR UPDATE")).
		WithArgs("show-1").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(3)))
	expectSeatRows(mock, "show-1", nil)
	mock.ExpectRollback()

	_, err := repo.ConditionalUpdateShow(context.Background(), "show-1", 3, func(*model.Show) error { return boom })
	require.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShowRepo_CreateShow(t *testing.T) {
	repo, mock := newShowRepoMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO shows (id, version) VALUES (?, ?)")).
		WithArgs("show-1", uint64(0)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO show_seats (show_id, seat_number, seat_type, price) VALUES (?, ?, ?, ?),(?, ?, ?, ?)")).
		WithArgs("show-1", "A1", "standard", sqlmock.AnyArg(), "show-1", "A2", "standard", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := repo.CreateShow(context.Background(), &model.Show{
		ID: "show-1",
		SeatCatalog: map[string]model.SeatInfo{
			"A2": {SeatType: "standard", Price: decimal.NewFromInt(10)},
			"A1": {SeatType: "standard", Price: decimal.NewFromInt(10)},
		},
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShowRepo_ListBookedShows(t *testing.T) {
	repo, mock := newShowRepoMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT show_id FROM booked_seats ORDER BY show_id")).
		WillReturnRows(sqlmock.NewRows([]string{"show_id"}).AddRow("show-1").AddRow("show-7"))

	ids, err := repo.ListBookedShows(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"show-1", "show-7"}, ids)
	require.NoError(t, mock.ExpectationsWereMet())
}
