package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-booking/internal/model"
)

func seededStore() *MemoryStore {
	s := NewMemoryStore()
	s.PutShow(&model.Show{
		ID: "show-1",
		SeatCatalog: map[string]model.SeatInfo{
			"A1": {SeatType: "standard", Price: decimal.NewFromInt(10)},
		},
	})
	return s
}

func TestMemoryStore_ConditionalUpdateShow(t *testing.T) {
	ctx := context.Background()
	s := seededStore()

	show, err := s.FindShow(ctx, "show-1")
	require.NoError(t, err)
	require.Equal(t, uint64(0), show.Version)

	updated, err := s.ConditionalUpdateShow(ctx, "show-1", 0, func(sh *model.Show) error {
		sh.BookedSeats["A1"] = "b-1"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), updated.Version)

	_, err = s.ConditionalUpdateShow(ctx, "show-1", 0, func(*model.Show) error {
		t.Fatal("mutator must not run on a stale version")
		return nil
	})
	require.ErrorIs(t, err, ErrVersionConflict)

	_, err = s.ConditionalUpdateShow(ctx, "nope", 0, func(*model.Show) error { return nil })
	require.ErrorIs(t, err, ErrShowNotFound)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := seededStore()

	show, err := s.FindShow(ctx, "show-1")
	require.NoError(t, err)
	show.BookedSeats["A1"] = "sneaky"

	again, err := s.FindShow(ctx, "show-1")
	require.NoError(t, err)
	assert.Empty(t, again.BookedSeats)
}

func TestMemoryStore_Bookings(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now().UTC()

	older := &model.Booking{ID: "b-1", UserID: "u-1", TicketID: "T1", CreatedAt: now.Add(-time.Hour),
		PaymentStatus: model.PaymentPending, BookingStatus: model.BookingConfirmed}
	newer := &model.Booking{ID: "b-2", UserID: "u-1", TicketID: "T2", CreatedAt: now,
		PaymentStatus: model.PaymentCompleted, BookingStatus: model.BookingConfirmed}
	require.NoError(t, s.CreateBooking(ctx, older))
	require.NoError(t, s.CreateBooking(ctx, newer))
	require.ErrorIs(t, s.CreateBooking(ctx, &model.Booking{ID: "b-3", TicketID: "T1"}), ErrDuplicate)

	list, err := s.FindBookingsByUser(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b-2", list[0].ID)

	pending, err := s.FindPendingBookings(ctx, now.Add(-time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "b-1", pending[0].ID)

	updated, err := s.UpdateBooking(ctx, "b-1", func(b *model.Booking) error {
		b.PaymentStatus = model.PaymentFailed
		b.TicketID = "changed"
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentFailed, updated.PaymentStatus)
	assert.Equal(t, "T1", updated.TicketID)

	_, err = s.FindBooking(ctx, "missing")
	require.ErrorIs(t, err, ErrBookingNotFound)
}

func TestMemoryStore_CreateShowRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	s := seededStore()

	require.ErrorIs(t, s.CreateShow(ctx, &model.Show{ID: "show-1"}), ErrDuplicate)
	require.NoError(t, s.CreateShow(ctx, &model.Show{ID: "show-2"}))

	show, err := s.FindShow(ctx, "show-2")
	require.NoError(t, err)
	assert.NotNil(t, show.BookedSeats)
}

func TestMemoryStore_ListBookedShows(t *testing.T) {
	ctx := context.Background()
	s := seededStore()
	s.PutShow(&model.Show{ID: "show-0"})

	ids, err := s.ListBookedShows(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	_, err = s.ConditionalUpdateShow(ctx, "show-1", 0, func(sh *model.Show) error {
		sh.BookedSeats["A1"] = "b-1"
		return nil
	})
	require.NoError(t, err)

	ids, err = s.ListBookedShows(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"show-1"}, ids)
}

func TestMemoryStore_Notifications(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	at := time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)

	require.NoError(t, s.AddNotification(ctx, &model.Notification{ID: "n-1", UserID: "u-1", Message: "first", CreatedAt: at}))
	require.NoError(t, s.AddNotification(ctx, &model.Notification{ID: "n-2", UserID: "u-1", Message: "second", CreatedAt: at.Add(time.Minute)}))
	require.NoError(t, s.AddNotification(ctx, &model.Notification{ID: "n-2", UserID: "u-1", Message: "second"}))
	require.NoError(t, s.AddNotification(ctx, &model.Notification{ID: "n-3", UserID: "u-2", Message: "other"}))

	list, err := s.FindNotificationsByUser(ctx, "u-1", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "second", list[0].Message)
	assert.Equal(t, "first", list[1].Message)

	list, err = s.FindNotificationsByUser(ctx, "u-1", 1)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = s.FindNotificationsByUser(ctx, "nobody", 10)
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}
