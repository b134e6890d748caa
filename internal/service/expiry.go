package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/seat-booking/internal/logging"
	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/queue"
	"github.com/iliyamo/seat-booking/internal/repository"
)

const (
	DefaultPaymentTimeout = 15 * time.Minute
	DefaultExpiryInterval = time.Minute
	expiryBatch           = 100
)

var errNotPending = errors.New("booking no longer pending")

// Expirer fails bookings that were never paid and returns their seats, so
// an abandoned checkout cannot hold seats forever.
type Expirer struct {
	bookings repository.BookingStore
	notifier Notifier
	releaser *seatReleaser
	timeout  time.Duration
	now      func() time.Time
}

// NewExpirer wires an expirer. timeout <= 0 selects DefaultPaymentTimeout.
func NewExpirer(bookings repository.BookingStore, shows repository.ShowStore, events EventPublisher, notifier Notifier, timeout time.Duration) *Expirer {
	if timeout <= 0 {
		timeout = DefaultPaymentTimeout
	}
	return &Expirer{
		bookings: bookings,
		notifier: notifier,
		releaser: newSeatReleaser(shows, events),
		timeout:  timeout,
		now:      time.Now,
	}
}

// ExpireStale expires every pending booking older than the payment
// timeout and returns how many it expired.
func (e *Expirer) ExpireStale(ctx context.Context) (int, error) {
	logger := logging.FromContext(ctx)
	cutoff := e.now().Add(-e.timeout)
	expired := 0
	for {
		pending, err := e.bookings.FindPendingBookings(ctx, cutoff, expiryBatch)
		if err != nil {
			return expired, fmt.Errorf("find pending bookings: %w", err)
		}
		progressed := false
		for _, b := range pending {
			updated, err := e.bookings.UpdateBooking(ctx, b.ID, func(bk *model.Booking) error {
				if !bk.IsAwaitingPayment() {
					return errNotPending
				}
				bk.BookingStatus = model.BookingExpired
				bk.PaymentStatus = model.PaymentFailed
				return nil
			})
			if errors.Is(err, errNotPending) {
				continue
			}
			if err != nil {
				logger.WithError(err).WithField("booking_id", b.ID).Warn("expiring booking failed")
				continue
			}
			progressed = true
			expired++
			if _, err := e.releaser.release(ctx, updated.ShowID, updated.ID, "expired"); err != nil {
				logger.WithError(err).WithField("booking_id", updated.ID).Error("returning seats of an expired booking failed")
				continue
			}
			notify(ctx, e.notifier, updated, queue.NotifyBookingExpired,
				fmt.Sprintf("Booking %s expired before payment. Your seats have been released.", updated.TicketID))
		}
		if len(pending) < expiryBatch || !progressed {
			return expired, nil
		}
	}
}

// Run calls ExpireStale every interval until ctx is cancelled.
func (e *Expirer) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultExpiryInterval
	}
	logger := logging.FromContext(ctx).WithField("component", "booking-expirer")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := e.ExpireStale(ctx)
			if err != nil {
				logger.WithError(err).Warn("expiry pass failed")
				continue
			}
			if n > 0 {
				logger.WithField("expired", n).Info("expired unpaid bookings")
			}
		}
	}
}
