package repository

import (
	"context"
	"time"

	"github.com/iliyamo/seat-booking/internal/model"
)

// ShowMutator edits a private copy of a show inside a conditional update.
// Returning an error aborts the update and is passed back to the caller
// unchanged.
type ShowMutator func(*model.Show) error

// BookingMutator edits a private copy of a booking inside UpdateBooking.
type BookingMutator func(*model.Booking) error

// ShowStore persists the seat-relevant part of shows.
type ShowStore interface {
	// FindShow returns the show or ErrShowNotFound.
	FindShow(ctx context.Context, id string) (*model.Show, error)
	// ConditionalUpdateShow applies mutate and bumps the version only when
	// the stored version equals expectedVersion; otherwise it returns
	// ErrVersionConflict without calling mutate.
	ConditionalUpdateShow(ctx context.Context, id string, expectedVersion uint64, mutate ShowMutator) (*model.Show, error)
	// ListBookedShows returns the IDs of shows with at least one booked
	// seat, in ID order.
	ListBookedShows(ctx context.Context) ([]string, error)
}

// BookingStore persists bookings. Seats and amounts are immutable after
// creation; UpdateBooking only persists status, payment and cancellation
// fields.
type BookingStore interface {
	CreateBooking(ctx context.Context, b *model.Booking) error
	FindBooking(ctx context.Context, id string) (*model.Booking, error)
	UpdateBooking(ctx context.Context, id string, mutate BookingMutator) (*model.Booking, error)
	// FindBookingsByUser returns the user's bookings, newest first.
	FindBookingsByUser(ctx context.Context, userID string) ([]*model.Booking, error)
	// FindPendingBookings returns up to limit bookings still awaiting
	// payment that were created before createdBefore, oldest first.
	FindPendingBookings(ctx context.Context, createdBefore time.Time, limit int) ([]*model.Booking, error)
}

// NotificationStore keeps each user's notification inbox.
type NotificationStore interface {
	// AddNotification stores n; an existing ID is ignored so redelivered
	// messages are not duplicated.
	AddNotification(ctx context.Context, n *model.Notification) error
	// FindNotificationsByUser returns up to limit notifications, newest
	// first.
	FindNotificationsByUser(ctx context.Context, userID string, limit int) ([]*model.Notification, error)
}
