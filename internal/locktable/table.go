// Package locktable holds the short-lived, advisory seat locks taken while
// a user is choosing seats. Locks never block a durable write; the booked
// seat set in the store stays the authority on who owns a seat.
package locktable

import (
	"context"
	"time"

	"github.com/iliyamo/seat-booking/internal/model"
)

// DefaultTTL is how long a lock lives unless re-acquired.
const DefaultTTL = 5 * time.Minute

// LockResult is the outcome of Acquire.
type LockResult int

const (
	Granted LockResult = iota
	HeldByOther
)

func (r LockResult) String() string {
	if r == Granted {
		return "granted"
	}
	return "heldByOther"
}

// Publisher receives seat events for every lock change.
type Publisher interface {
	Publish(ctx context.Context, ev model.SeatEvent)
}

// Table is the seat lock contract shared by the in-memory and Redis
// implementations.
type Table interface {
	// Acquire grants the lock when the seat is free, the current lock has
	// expired, or the same user and session already hold it (in which case
	// the expiry is pushed out).
	Acquire(ctx context.Context, showID, seatNumber, userID, sessionID string) (LockResult, error)
	// Release removes the lock if present and reports whether it did.
	Release(ctx context.Context, showID, seatNumber string) (bool, error)
	// ReleaseAllFor removes every lock held by sessionID.
	ReleaseAllFor(ctx context.Context, sessionID string) ([]model.SeatKey, error)
	// SweepExpired removes locks whose expiry has passed.
	SweepExpired(ctx context.Context) ([]model.SeatKey, error)
	// Get returns the live lock on a seat, or nil.
	Get(ctx context.Context, showID, seatNumber string) (*model.SeatLock, error)
	// Locks returns the live locks among seats, keyed by seat number.
	Locks(ctx context.Context, showID string, seats []string) (map[string]model.SeatLock, error)
	// SessionLocks returns the live locks held by sessionID.
	SessionLocks(ctx context.Context, sessionID string) ([]model.SeatLock, error)
}

// Option configures a table.
type Option func(*options)

type options struct {
	ttl time.Duration
	now func() time.Time
}

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{ttl: DefaultTTL, now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, model.SeatEvent) {}

func publishReleased(ctx context.Context, pub Publisher, keys []model.SeatKey) {
	for _, k := range keys {
		pub.Publish(ctx, model.Released(k))
	}
}
