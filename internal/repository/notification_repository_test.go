package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-booking/internal/model"
)

func newNotificationRepoMock(t *testing.T) (*NotificationRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewNotificationRepo(db), mock
}

func TestNotificationRepo_AddNotification(t *testing.T) {
	repo, mock := newNotificationRepoMock(t)
	at := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO notifications")).
		WithArgs("n-1", "u-1", "payment_failed", "b-1", "TKT1", "Payment failed", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.AddNotification(context.Background(), &model.Notification{
		ID: "n-1", UserID: "u-1", Type: "payment_failed", BookingID: "b-1", TicketID: "TKT1",
		Message: "Payment failed", CreatedAt: at,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepo_FindNotificationsByUser(t *testing.T) {
	repo, mock := newNotificationRepoMock(t)
	at := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM notifications")).
		WithArgs("u-1", 50).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "type", "booking_id", "ticket_id", "message", "created_at"}).
			AddRow("n-2", "u-1", "booking_cancelled", "b-2", "TKT2", "Cancelled", at.Add(time.Minute)).
			AddRow("n-1", "u-1", "booking_confirmed", "b-1", "TKT1", "Confirmed", at))

	list, err := repo.FindNotificationsByUser(context.Background(), "u-1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "n-2", list[0].ID)
	assert.Equal(t, "Confirmed", list[1].Message)
	require.NoError(t, mock.ExpectationsWereMet())
}
