package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/seat-booking/internal/logging"
	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/queue"
	"github.com/iliyamo/seat-booking/internal/repository"
)

// DefaultCancellationReason is recorded when the caller gives none.
const DefaultCancellationReason = "Cancelled by user"

// Canceller cancels bookings on behalf of their owner or an admin.
type Canceller struct {
	bookings repository.BookingStore
	notifier Notifier
	releaser *seatReleaser
	now      func() time.Time
}

// NewCanceller wires a canceller. notifier may be nil.
func NewCanceller(bookings repository.BookingStore, shows repository.ShowStore, events EventPublisher, notifier Notifier) *Canceller {
	return &Canceller{
		bookings: bookings,
		notifier: notifier,
		releaser: newSeatReleaser(shows, events),
		now:      time.Now,
	}
}

// Cancel marks the booking cancelled and refunded, then returns its seats.
// A second cancel returns ErrAlreadyCancelled and changes nothing.
func (c *Canceller) Cancel(ctx context.Context, bookingID string, requester Requester, reason string) (*model.Booking, error) {
	b, err := c.bookings.FindBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !requester.owns(b) && !requester.IsAdmin() {
		return nil, ErrForbidden
	}
	if reason == "" {
		reason = DefaultCancellationReason
	}

	now := c.now().UTC()
	updated, err := c.bookings.UpdateBooking(ctx, bookingID, func(bk *model.Booking) error {
		switch {
		case bk.BookingStatus == model.BookingCancelled:
			return ErrAlreadyCancelled
		case bk.BookingStatus == model.BookingExpired, bk.PaymentStatus == model.PaymentFailed:
			return fmt.Errorf("%w: booking is %s with payment %s", ErrAlreadyProcessed, bk.BookingStatus, bk.PaymentStatus)
		}
		bk.BookingStatus = model.BookingCancelled
		bk.PaymentStatus = model.PaymentRefunded
		bk.CancelledAt = &now
		bk.CancellationReason = reason
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger := logging.FromContext(ctx).WithFields(logrus.Fields{"booking_id": updated.ID, "by": requester.UserID})
	rctx, cancel := detached(ctx)
	defer cancel()
	if _, err := c.releaser.release(rctx, updated.ShowID, updated.ID, "cancelled"); err != nil {
		logger.WithError(err).Error("returning seats of a cancelled booking failed")
		return nil, fmt.Errorf("release seats: %w", err)
	}
	logger.Info("booking cancelled")
	notify(rctx, c.notifier, updated, queue.NotifyBookingCancelled,
		fmt.Sprintf("Your booking %s has been cancelled and refunded.", updated.TicketID))
	return updated, nil
}
