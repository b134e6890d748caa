package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v3"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/seat-booking/internal/locktable"
	"github.com/iliyamo/seat-booking/internal/logging"
	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/monitoring"
	"github.com/iliyamo/seat-booking/internal/repository"
)

// DefaultReserveRetries bounds how often a reservation re-reads the show
// after losing the version race.
const DefaultReserveRetries = 5

// SeatRequest is one seat of a reservation request. SeatType and Price
// are only used for catalog entries that carry no price of their own.
type SeatRequest struct {
	SeatNumber string          `json:"seat_number"`
	SeatType   string          `json:"seat_type,omitempty"`
	Price      decimal.Decimal `json:"price"`
}

// Coordinator turns a set of selected seats into a pending booking. The
// show's version is the only commit point: seats are written with a
// conditional update and the booking row follows, with compensation if
// the insert fails.
type Coordinator struct {
	shows    repository.ShowStore
	bookings repository.BookingStore
	locks    locktable.Table
	events   EventPublisher
	releaser *seatReleaser

	maxRetries    int
	retryInterval time.Duration
	now           func() time.Time
}

// NewCoordinator wires a coordinator. maxRetries <= 0 selects
// DefaultReserveRetries.
func NewCoordinator(shows repository.ShowStore, bookings repository.BookingStore, locks locktable.Table, events EventPublisher, maxRetries int) *Coordinator {
	if maxRetries <= 0 {
		maxRetries = DefaultReserveRetries
	}
	return &Coordinator{
		shows:         shows,
		bookings:      bookings,
		locks:         locks,
		events:        events,
		releaser:      newSeatReleaser(shows, events),
		maxRetries:    maxRetries,
		retryInterval: 5 * time.Millisecond,
		now:           time.Now,
	}
}

// Reserve books seats of showID for userID. Seats locked by another user
// or already booked fail the whole request with a *ConflictError; nothing
// is partially reserved.
func (c *Coordinator) Reserve(ctx context.Context, showID, userID string, seats []SeatRequest) (*model.Booking, error) {
	logger := logging.FromContext(ctx).WithFields(logrus.Fields{"show_id": showID, "user_id": userID})

	numbers, err := validateSeats(seats)
	if err != nil {
		monitoring.Reservation("invalid")
		return nil, err
	}

	bookingID := uuid.NewString()
	var booking *model.Booking
	op := func() error {
		show, err := c.shows.FindShow(ctx, showID)
		if err != nil {
			return backoff.Permanent(err)
		}
		lines, total, err := c.check(ctx, show, userID, seats)
		if err != nil {
			return backoff.Permanent(err)
		}
		_, err = c.shows.ConditionalUpdateShow(ctx, showID, show.Version, func(s *model.Show) error {
			var taken []string
			for _, n := range numbers {
				if s.IsBooked(n) {
					taken = append(taken, n)
				}
			}
			if len(taken) > 0 {
				return &ConflictError{Seats: taken}
			}
			for _, n := range numbers {
				s.BookedSeats[n] = bookingID
			}
			return nil
		})
		if errors.Is(err, repository.ErrVersionConflict) {
			monitoring.ReservationVersionConflict()
			return err
		}
		if err != nil {
			return backoff.Permanent(err)
		}
		booking = &model.Booking{
			ID:            bookingID,
			UserID:        userID,
			ShowID:        showID,
			Seats:         lines,
			TotalAmount:   total,
			PaymentStatus: model.PaymentPending,
			BookingStatus: model.BookingConfirmed,
			TicketID:      newTicketID(),
			CreatedAt:     c.now().UTC(),
		}
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(c.retryInterval), uint64(c.maxRetries)), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		switch {
		case errors.Is(err, repository.ErrVersionConflict):
			monitoring.Reservation("write_conflict")
			logger.Warn("reservation lost the version race too many times")
			return nil, &ConflictError{Seats: numbers, Cause: ErrStoreWriteConflict}
		case errors.Is(err, ErrConflict):
			monitoring.Reservation("conflict")
		case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrNotFound):
			monitoring.Reservation("invalid")
		default:
			monitoring.Reservation("error")
		}
		return nil, err
	}

	if err := c.bookings.CreateBooking(ctx, booking); err != nil {
		logger.WithError(err).Error("persisting booking failed, returning its seats")
		rctx, cancel := detached(ctx)
		defer cancel()
		if _, rerr := c.releaser.release(rctx, showID, bookingID, "compensation"); rerr != nil {
			logger.WithError(rerr).Error("returning seats of an unpersisted booking failed")
		}
		monitoring.Reservation("error")
		return nil, fmt.Errorf("create booking: %w", err)
	}

	c.dropLocks(ctx, logger, showID, userID, numbers)
	monitoring.Reservation("reserved")
	logger.WithFields(logrus.Fields{"booking_id": booking.ID, "seats": len(numbers)}).Info("seats reserved")
	return booking, nil
}

// check validates the request against a snapshot of the show and prices
// the line items from the catalog.
func (c *Coordinator) check(ctx context.Context, show *model.Show, userID string, seats []SeatRequest) ([]model.BookedSeat, decimal.Decimal, error) {
	var unknown, taken []string
	lines := make([]model.BookedSeat, 0, len(seats))
	total := decimal.Zero

	for _, req := range seats {
		info, ok := show.SeatCatalog[req.SeatNumber]
		if !ok {
			unknown = append(unknown, req.SeatNumber)
			continue
		}
		if show.IsBooked(req.SeatNumber) {
			taken = append(taken, req.SeatNumber)
			continue
		}
		lock, err := c.locks.Get(ctx, show.ID, req.SeatNumber)
		if err != nil {
			logging.FromContext(ctx).WithError(err).WithField("seat", req.SeatNumber).Warn("lock lookup failed, treating seat as unlocked")
		} else if lock != nil && lock.UserID != userID {
			taken = append(taken, req.SeatNumber)
			continue
		}

		line := model.BookedSeat{SeatNumber: req.SeatNumber, SeatType: info.SeatType, Price: info.Price}
		if line.SeatType == "" {
			line.SeatType = req.SeatType
		}
		if line.Price.IsZero() {
			if req.Price.IsNegative() {
				return nil, decimal.Zero, fmt.Errorf("%w: negative price for seat %s", ErrInvalidRequest, req.SeatNumber)
			}
			line.Price = req.Price
		}
		lines = append(lines, line)
		total = total.Add(line.Price)
	}

	if len(unknown) > 0 {
		return nil, decimal.Zero, fmt.Errorf("%w: unknown seats %s", ErrInvalidRequest, strings.Join(unknown, ", "))
	}
	if len(taken) > 0 {
		return nil, decimal.Zero, &ConflictError{Seats: taken}
	}
	return lines, total, nil
}

// dropLocks clears the requester's locks on the reserved seats. Seats with
// no lock of theirs still get a seat-released event so viewers re-fetch.
func (c *Coordinator) dropLocks(ctx context.Context, logger *logrus.Entry, showID, userID string, seats []string) {
	for _, seat := range seats {
		lock, err := c.locks.Get(ctx, showID, seat)
		if err != nil {
			logger.WithError(err).WithField("seat", seat).Warn("lock lookup after reservation failed")
			continue
		}
		if lock != nil && lock.UserID != userID {
			continue
		}
		if lock != nil {
			if _, err := c.locks.Release(ctx, showID, seat); err == nil {
				continue
			}
		}
		c.events.Publish(ctx, model.Released(model.SeatKey{ShowID: showID, SeatNumber: seat}))
	}
}

func validateSeats(seats []SeatRequest) ([]string, error) {
	if len(seats) == 0 {
		return nil, fmt.Errorf("%w: no seats selected", ErrInvalidRequest)
	}
	seen := make(map[string]bool, len(seats))
	numbers := make([]string, 0, len(seats))
	for _, s := range seats {
		if s.SeatNumber == "" {
			return nil, fmt.Errorf("%w: empty seat number", ErrInvalidRequest)
		}
		if seen[s.SeatNumber] {
			return nil, fmt.Errorf("%w: seat %s requested twice", ErrInvalidRequest, s.SeatNumber)
		}
		seen[s.SeatNumber] = true
		numbers = append(numbers, s.SeatNumber)
	}
	return numbers, nil
}
