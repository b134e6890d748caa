package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/seat-booking/internal/logging"
	"github.com/iliyamo/seat-booking/internal/repository"
)

const (
	DefaultReconcileInterval = time.Minute
	// DefaultOrphanGrace is how long a seat may point at a booking that
	// does not exist yet. Reserve writes seats before the booking row, so
	// a young orphan is usually a reservation still in flight.
	DefaultOrphanGrace = 5 * time.Minute
)

// Reconciler returns seats whose release was lost: seats still bound to a
// cancelled, expired or failed booking after the release gave up, and
// seats bound to a booking that was never persisted.
type Reconciler struct {
	shows    repository.ShowStore
	bookings repository.BookingStore
	releaser *seatReleaser
	grace    time.Duration
	now      func() time.Time

	mu       sync.Mutex
	orphaned map[string]time.Time // booking id -> first seen missing
}

// NewReconciler wires a reconciler. grace <= 0 selects DefaultOrphanGrace.
func NewReconciler(shows repository.ShowStore, bookings repository.BookingStore, events EventPublisher, grace time.Duration) *Reconciler {
	if grace <= 0 {
		grace = DefaultOrphanGrace
	}
	return &Reconciler{
		shows:    shows,
		bookings: bookings,
		releaser: newSeatReleaser(shows, events),
		grace:    grace,
		now:      time.Now,
		orphaned: make(map[string]time.Time),
	}
}

// ReconcileOnce scans every show with booked seats and returns how many
// seats it gave back.
func (r *Reconciler) ReconcileOnce(ctx context.Context) (int, error) {
	ids, err := r.shows.ListBookedShows(ctx)
	if err != nil {
		return 0, fmt.Errorf("list booked shows: %w", err)
	}
	now := r.now()
	seen := make(map[string]bool)
	freed := 0
	for _, showID := range ids {
		n, err := r.reconcileShow(ctx, showID, now, seen)
		freed += n
		if err != nil {
			logging.FromContext(ctx).WithError(err).WithField("show_id", showID).Warn("reconciling show failed")
		}
	}

	r.mu.Lock()
	for id := range r.orphaned {
		if !seen[id] {
			delete(r.orphaned, id)
		}
	}
	r.mu.Unlock()
	return freed, nil
}

func (r *Reconciler) reconcileShow(ctx context.Context, showID string, now time.Time, seen map[string]bool) (int, error) {
	show, err := r.shows.FindShow(ctx, showID)
	if err != nil {
		return 0, err
	}
	bookingIDs := make(map[string]struct{})
	for _, id := range show.BookedSeats {
		bookingIDs[id] = struct{}{}
	}

	freed := 0
	for id := range bookingIDs {
		reason, ok, err := r.stale(ctx, id, now, seen)
		if err != nil {
			return freed, err
		}
		if !ok {
			continue
		}
		released, err := r.releaser.release(ctx, showID, id, reason)
		if err != nil {
			return freed, err
		}
		if len(released) > 0 {
			logging.FromContext(ctx).WithFields(logrus.Fields{
				"show_id":    showID,
				"booking_id": id,
				"seats":      released,
				"reason":     reason,
			}).Warn("returned seats of a settled booking")
		}
		freed += len(released)
		r.mu.Lock()
		delete(r.orphaned, id)
		r.mu.Unlock()
	}
	return freed, nil
}

// stale reports whether the seats bound to bookingID should go back to
// the pool, and why.
func (r *Reconciler) stale(ctx context.Context, bookingID string, now time.Time, seen map[string]bool) (string, bool, error) {
	b, err := r.bookings.FindBooking(ctx, bookingID)
	if errors.Is(err, repository.ErrNotFound) {
		seen[bookingID] = true
		r.mu.Lock()
		first, ok := r.orphaned[bookingID]
		if !ok {
			first = now
			r.orphaned[bookingID] = now
		}
		r.mu.Unlock()
		return "orphaned", now.Sub(first) >= r.grace, nil
	}
	if err != nil {
		return "", false, err
	}
	if b.HoldsSeats() {
		return "", false, nil
	}
	return "reconciled", true, nil
}

// Run calls ReconcileOnce every interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	logger := logging.FromContext(ctx).WithField("component", "seat-reconciler")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := r.ReconcileOnce(ctx)
			if err != nil {
				logger.WithError(err).Warn("reconcile pass failed")
				continue
			}
			if n > 0 {
				logger.WithField("released", n).Info("returned stranded seats")
			}
		}
	}
}
