package service

import (
	"context"

	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/repository"
)

// BookingQueries serves read access to bookings.
type BookingQueries struct {
	bookings repository.BookingStore
}

func NewBookingQueries(bookings repository.BookingStore) *BookingQueries {
	return &BookingQueries{bookings: bookings}
}

// Get returns a booking visible to the requester: its owner or an admin.
func (q *BookingQueries) Get(ctx context.Context, bookingID string, requester Requester) (*model.Booking, error) {
	b, err := q.bookings.FindBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !requester.owns(b) && !requester.IsAdmin() {
		return nil, ErrForbidden
	}
	return b, nil
}

// ListForUser returns the user's bookings, newest first.
func (q *BookingQueries) ListForUser(ctx context.Context, userID string) ([]*model.Booking, error) {
	out, err := q.bookings.FindBookingsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*model.Booking{}
	}
	return out, nil
}
