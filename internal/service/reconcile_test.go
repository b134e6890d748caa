package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-booking/internal/locktable"
	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/payment"
	"github.com/iliyamo/seat-booking/internal/repository"
)

// flakyShows lets a set number of seat writes through and then fails the
// rest until healed.
type flakyShows struct {
	*repository.MemoryStore
	limited atomic.Bool
	writes  atomic.Int32
}

func (f *flakyShows) goDownAfter(n int32) {
	f.writes.Store(n)
	f.limited.Store(true)
}

func (f *flakyShows) heal() { f.limited.Store(false) }

func (f *flakyShows) ConditionalUpdateShow(ctx context.Context, id string, version uint64, mutate repository.ShowMutator) (*model.Show, error) {
	if f.limited.Load() && f.writes.Add(-1) < 0 {
		return nil, errors.New("connection reset")
	}
	return f.MemoryStore.ConditionalUpdateShow(ctx, id, version, mutate)
}

func newTestReconciler(f *fixture, shows repository.ShowStore) *Reconciler {
	r := NewReconciler(shows, f.store, f.events, time.Minute)
	r.now = f.clock.Now
	r.releaser.maxRetries = 1
	return r
}

func TestReconcile_FreesSeatsOfFailedBookingAfterLostRelease(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	flaky := &flakyShows{MemoryStore: f.store}

	b, err := f.coord.Reserve(ctx, testShow, "u-1", seats("A1"))
	require.NoError(t, err)

	settler := NewSettler(f.store, flaky, f.events, payment.NewSimulator("declined-card"), f.notifier)
	settler.releaser.maxRetries = 1
	flaky.goDownAfter(0)

	_, err = settler.Settle(ctx, b.ID, customer("u-1"), "declined-card")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "release seats")

	stored, err := f.store.FindBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentFailed, stored.PaymentStatus)
	assert.Equal(t, map[string]string{"A1": b.ID}, f.bookedSeats(t), "the seat is stranded")

	rec := newTestReconciler(f, flaky)
	n, err := rec.ReconcileOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing is freed while the store is down")

	flaky.heal()
	n, err = rec.ReconcileOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Empty(t, f.bookedSeats(t))
	assert.Contains(t, f.events.Released(), "A1")

	res, err := f.selection.Select(ctx, testShow, "A1", "u-2", "s-2")
	require.NoError(t, err)
	require.Equal(t, locktable.Granted, res)
	second, err := f.coord.Reserve(ctx, testShow, "u-2", seats("A1"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"A1": second.ID}, f.bookedSeats(t))
}

func TestReconcile_FreesOrphanedSeatsAfterGrace(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	flaky := &flakyShows{MemoryStore: f.store}

	coord := NewCoordinator(flaky, failingBookings{f.store}, f.locks, f.events, 0)
	coord.releaser.maxRetries = 1
	flaky.goDownAfter(1)

	_, err := coord.Reserve(ctx, testShow, "u-1", seats("A1", "A2"))
	require.Error(t, err)
	require.Len(t, f.bookedSeats(t), 2, "compensation could not run")
	flaky.heal()

	rec := newTestReconciler(f, flaky)
	n, err := rec.ReconcileOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "a young orphan may be a reservation in flight")

	f.clock.Advance(30 * time.Second)
	n, err = rec.ReconcileOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	f.clock.Advance(31 * time.Second)
	n, err = rec.ReconcileOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Empty(t, f.bookedSeats(t))

	_, err = f.coord.Reserve(ctx, testShow, "u-2", seats("A1", "A2"))
	require.NoError(t, err)
}

func TestReconcile_LeavesLiveBookingsAlone(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	pending, err := f.coord.Reserve(ctx, testShow, "u-1", seats("A1"))
	require.NoError(t, err)
	paid, err := f.coord.Reserve(ctx, testShow, "u-2", seats("A2"))
	require.NoError(t, err)
	_, err = f.settler.Settle(ctx, paid.ID, customer("u-2"), "card")
	require.NoError(t, err)

	// seats written, booking row not yet visible
	show, err := f.store.FindShow(ctx, testShow)
	require.NoError(t, err)
	_, err = f.store.ConditionalUpdateShow(ctx, testShow, show.Version, func(s *model.Show) error {
		s.BookedSeats["A3"] = "late"
		return nil
	})
	require.NoError(t, err)

	rec := newTestReconciler(f, f.store)
	n, err := rec.ReconcileOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, f.store.CreateBooking(ctx, &model.Booking{
		ID:            "late",
		UserID:        "u-3",
		ShowID:        testShow,
		Seats:         []model.BookedSeat{{SeatNumber: "A3"}},
		PaymentStatus: model.PaymentPending,
		BookingStatus: model.BookingConfirmed,
		CreatedAt:     f.clock.Now(),
	}))
	f.clock.Advance(2 * time.Minute)

	n, err = rec.ReconcileOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, map[string]string{"A1": pending.ID, "A2": paid.ID, "A3": "late"}, f.bookedSeats(t))
}

func TestReconciler_RunStopsWithContext(t *testing.T) {
	f := newFixture(t, nil)
	rec := newTestReconciler(f, f.store)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rec.Run(ctx, 5*time.Millisecond) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop")
	}
}
