package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/seat-booking/internal/logging"
	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/monitoring"
	"github.com/iliyamo/seat-booking/internal/payment"
	"github.com/iliyamo/seat-booking/internal/queue"
	"github.com/iliyamo/seat-booking/internal/repository"
)

// Outcome is the result of a settlement attempt.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
)

// Settlement reports how a payment attempt ended.
type Settlement struct {
	Outcome Outcome        `json:"outcome"`
	Booking *model.Booking `json:"booking"`
	Reason  string         `json:"reason,omitempty"`
}

// Settler drives a pending booking to completed or failed. No lock is held
// while the gateway is called; the booking row's own status is the guard
// against a concurrent cancel or expiry.
type Settler struct {
	bookings repository.BookingStore
	gateway  payment.Gateway
	notifier Notifier
	releaser *seatReleaser
}

// NewSettler wires a settler. notifier may be nil.
func NewSettler(bookings repository.BookingStore, shows repository.ShowStore, events EventPublisher, gateway payment.Gateway, notifier Notifier) *Settler {
	return &Settler{
		bookings: bookings,
		gateway:  gateway,
		notifier: notifier,
		releaser: newSeatReleaser(shows, events),
	}
}

// Settle charges the booking once. A decline or gateway error marks the
// booking failed and returns its seats; a gateway error is additionally
// reported as ErrUpstreamPayment alongside the settled result.
func (s *Settler) Settle(ctx context.Context, bookingID string, requester Requester, method string) (*Settlement, error) {
	b, err := s.bookings.FindBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if !requester.owns(b) {
		return nil, ErrForbidden
	}
	if !b.IsAwaitingPayment() {
		return nil, fmt.Errorf("%w: payment is %s, booking is %s", ErrAlreadyProcessed, b.PaymentStatus, b.BookingStatus)
	}

	logger := logging.FromContext(ctx).WithFields(logrus.Fields{"booking_id": b.ID, "user_id": b.UserID})
	res, chargeErr := s.gateway.Charge(ctx, payment.ChargeRequest{BookingID: b.ID, Amount: b.TotalAmount, Method: method})

	// The charge has happened; record it even if the caller has gone.
	wctx, cancel := detached(ctx)
	defer cancel()

	if chargeErr == nil && res.Decision == payment.Approved {
		updated, err := s.bookings.UpdateBooking(wctx, b.ID, func(bk *model.Booking) error {
			if !bk.IsAwaitingPayment() {
				return fmt.Errorf("%w: booking is %s", ErrAlreadyProcessed, bk.BookingStatus)
			}
			bk.PaymentStatus = model.PaymentCompleted
			bk.PaymentID = res.PaymentID
			return nil
		})
		if err != nil {
			logger.WithError(err).WithField("payment_id", res.PaymentID).Error("charge approved but booking could not be completed; refund required")
			monitoring.Settlement("error")
			return nil, err
		}
		monitoring.Settlement(string(OutcomeCompleted))
		logger.WithField("payment_id", res.PaymentID).Info("payment completed")
		notify(wctx, s.notifier, updated, queue.NotifyBookingConfirmed,
			fmt.Sprintf("Payment received. Your booking %s is confirmed.", updated.TicketID))
		return &Settlement{Outcome: OutcomeCompleted, Booking: updated}, nil
	}

	reason := res.Reason
	if chargeErr != nil {
		reason = "payment gateway unavailable"
		logger.WithError(chargeErr).Warn("payment gateway call failed")
	}
	updated, err := s.fail(wctx, logger, b, reason)
	if err != nil {
		monitoring.Settlement("error")
		return nil, err
	}
	monitoring.Settlement(string(OutcomeFailed))
	st := &Settlement{Outcome: OutcomeFailed, Booking: updated, Reason: reason}
	if chargeErr != nil {
		return st, fmt.Errorf("%w: %v", ErrUpstreamPayment, chargeErr)
	}
	return st, nil
}

// fail marks the booking failed, then returns its seats. The status is
// written first so a seat can never be free while its booking still looks
// payable.
func (s *Settler) fail(ctx context.Context, logger *logrus.Entry, b *model.Booking, reason string) (*model.Booking, error) {
	updated, err := s.bookings.UpdateBooking(ctx, b.ID, func(bk *model.Booking) error {
		if !bk.IsAwaitingPayment() {
			return fmt.Errorf("%w: booking is %s", ErrAlreadyProcessed, bk.BookingStatus)
		}
		bk.PaymentStatus = model.PaymentFailed
		return nil
	})
	if err != nil {
		return nil, err
	}
	if _, err := s.releaser.release(ctx, b.ShowID, b.ID, "payment_failed"); err != nil {
		logger.WithError(err).Error("returning seats after failed payment failed")
		return nil, fmt.Errorf("release seats: %w", err)
	}
	logger.WithField("reason", reason).Info("payment failed, seats returned")
	notify(ctx, s.notifier, updated, queue.NotifyPaymentFailed,
		fmt.Sprintf("Payment for booking %s failed: %s. Your seats have been released.", updated.TicketID, reason))
	return updated, nil
}
