package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/queue"
)

func TestExpireStale_FailsUnpaidBookings(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	stale, err := f.coord.Reserve(ctx, testShow, "u-1", seats("A1"))
	require.NoError(t, err)
	paid, err := f.coord.Reserve(ctx, testShow, "u-2", seats("A2"))
	require.NoError(t, err)
	_, err = f.settler.Settle(ctx, paid.ID, customer("u-2"), "card")
	require.NoError(t, err)

	f.clock.Advance(10 * time.Minute)
	fresh, err := f.coord.Reserve(ctx, testShow, "u-3", seats("A3"))
	require.NoError(t, err)

	f.clock.Advance(6 * time.Minute)
	n, err := f.expirer.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := f.store.FindBooking(ctx, stale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BookingExpired, got.BookingStatus)
	assert.Equal(t, model.PaymentFailed, got.PaymentStatus)
	assert.Equal(t, map[string]string{"A2": paid.ID, "A3": fresh.ID}, f.bookedSeats(t))
	assert.Contains(t, f.notifier.Types(), queue.NotifyBookingExpired)

	_, err = f.settler.Settle(ctx, stale.ID, customer("u-1"), "card")
	assert.ErrorIs(t, err, ErrAlreadyProcessed)

	n, err = f.expirer.ExpireStale(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestExpirer_RunStopsWithContext(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.expirer.Run(ctx, 5*time.Millisecond) }()

	time.Sleep(20 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("expirer did not stop")
	}
}
