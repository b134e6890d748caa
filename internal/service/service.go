// Package service implements the seat reservation core: seat selection on
// top of the lock table, the reservation coordinator, payment settlement,
// cancellation and expiry of unpaid bookings.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/google/uuid"
	"github.com/lithammer/shortuuid/v3"

	"github.com/iliyamo/seat-booking/internal/logging"
	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/monitoring"
	"github.com/iliyamo/seat-booking/internal/queue"
	"github.com/iliyamo/seat-booking/internal/repository"
)

// Roles carried in the access token.
const (
	RoleAdmin    = "ADMIN"
	RoleCustomer = "CUSTOMER"
)

// Requester is the authenticated caller of an operation.
type Requester struct {
	UserID string
	Role   string
}

func (r Requester) IsAdmin() bool { return r.Role == RoleAdmin }

func (r Requester) owns(b *model.Booking) bool { return r.UserID != "" && r.UserID == b.UserID }

// EventPublisher receives seat events; the broadcast hub implements it.
type EventPublisher interface {
	Publish(ctx context.Context, ev model.SeatEvent)
}

// Notifier enqueues user-facing notifications.
type Notifier interface {
	Notify(ctx context.Context, ev queue.NotificationEvent) error
}

// writeTimeout bounds store writes that must finish even when the caller
// has gone away, such as recording a charge outcome or returning seats.
const writeTimeout = 30 * time.Second

// detached returns a context that survives cancellation of ctx but keeps
// its values (logger, correlation id).
func detached(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
}

func newTicketID() string {
	return "TKT" + strings.ToUpper(shortuuid.New())
}

// seatReleaser returns a booking's seats to the pool with a
// compare-and-swap loop and announces each released seat.
type seatReleaser struct {
	shows      repository.ShowStore
	events     EventPublisher
	maxRetries uint64
}

func newSeatReleaser(shows repository.ShowStore, events EventPublisher) *seatReleaser {
	return &seatReleaser{shows: shows, events: events, maxRetries: 10}
}

// release removes every booked_seats entry bound to bookingID. Version
// conflicts and transient store errors are retried; a missing show is not.
func (r *seatReleaser) release(ctx context.Context, showID, bookingID, reason string) ([]string, error) {
	var released []string
	op := func() error {
		show, err := r.shows.FindShow(ctx, showID)
		if errors.Is(err, repository.ErrNotFound) {
			return backoff.Permanent(err)
		}
		if err != nil {
			return err
		}
		seats := show.SeatsOf(bookingID)
		if len(seats) == 0 {
			released = nil
			return nil
		}
		_, err = r.shows.ConditionalUpdateShow(ctx, showID, show.Version, func(s *model.Show) error {
			for _, seat := range seats {
				if s.BookedSeats[seat] == bookingID {
					delete(s.BookedSeats, seat)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		released = seats
		return nil
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 10 * time.Millisecond
	eb.MaxInterval = 500 * time.Millisecond
	if err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(eb, r.maxRetries), ctx)); err != nil {
		return nil, err
	}

	for _, seat := range released {
		r.events.Publish(ctx, model.Released(model.SeatKey{ShowID: showID, SeatNumber: seat}))
	}
	if len(released) > 0 {
		monitoring.SeatsReleased(reason, len(released))
	}
	return released, nil
}

// notify enqueues a notification about b. Failures are logged only.
func notify(ctx context.Context, n Notifier, b *model.Booking, typ queue.NotificationType, message string) {
	if n == nil {
		return
	}
	ev := queue.NotificationEvent{
		ID:          uuid.NewString(),
		Type:        typ,
		UserID:      b.UserID,
		BookingID:   b.ID,
		TicketID:    b.TicketID,
		ShowID:      b.ShowID,
		Seats:       b.SeatNumbers(),
		TotalAmount: b.TotalAmount.StringFixed(2),
		Message:     message,
		CreatedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := n.Notify(ctx, ev); err != nil {
		logging.FromContext(ctx).WithError(err).WithField("booking_id", b.ID).Warn("enqueue notification failed")
	}
}
