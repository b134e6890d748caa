package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/seat-booking/internal/locktable"
	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/payment"
	"github.com/iliyamo/seat-booking/internal/queue"
	"github.com/iliyamo/seat-booking/internal/repository"
)

type recordingEvents struct {
	mu     sync.Mutex
	events []model.SeatEvent
}

func (r *recordingEvents) Publish(_ context.Context, ev model.SeatEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recordingEvents) Released() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, ev := range r.events {
		if ev.Type == model.SeatReleased {
			out = append(out, ev.SeatNumber)
		}
	}
	return out
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []queue.NotificationEvent
}

func (n *recordingNotifier) Notify(_ context.Context, ev queue.NotificationEvent) error {
	n.mu.Lock()
	n.events = append(n.events, ev)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) Types() []queue.NotificationType {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []queue.NotificationType
	for _, ev := range n.events {
		out = append(out, ev.Type)
	}
	return out
}

type fakeGateway struct {
	result payment.ChargeResult
	err    error
	calls  atomic.Int32
}

func (g *fakeGateway) Charge(context.Context, payment.ChargeRequest) (payment.ChargeResult, error) {
	g.calls.Add(1)
	return g.result, g.err
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// failingBookings refuses to create bookings.
type failingBookings struct {
	*repository.MemoryStore
}

func (failingBookings) CreateBooking(context.Context, *model.Booking) error {
	return errors.New("disk full")
}

// contendedShows loses every conditional update.
type contendedShows struct {
	*repository.MemoryStore
	attempts atomic.Int32
}

func (c *contendedShows) ConditionalUpdateShow(context.Context, string, uint64, repository.ShowMutator) (*model.Show, error) {
	c.attempts.Add(1)
	return nil, repository.ErrVersionConflict
}

const testShow = "show-1"

func newTestStore() *repository.MemoryStore {
	s := repository.NewMemoryStore()
	ten := decimal.NewFromInt(10)
	s.PutShow(&model.Show{
		ID: testShow,
		SeatCatalog: map[string]model.SeatInfo{
			"A1": {SeatType: "standard", Price: ten},
			"A2": {SeatType: "standard", Price: ten},
			"A3": {SeatType: "standard", Price: ten},
			"A4": {SeatType: "standard", Price: ten},
			"V1": {SeatType: "vip", Price: decimal.NewFromInt(25)},
			"X1": {},
		},
	})
	return s
}

type fixture struct {
	store    *repository.MemoryStore
	clock    *fakeClock
	events   *recordingEvents
	notifier *recordingNotifier
	locks    *locktable.MemoryTable

	selection *SeatSelection
	coord     *Coordinator
	settler   *Settler
	canceller *Canceller
	expirer   *Expirer
	queries   *BookingQueries
}

func newFixture(t *testing.T, gateway payment.Gateway) *fixture {
	t.Helper()
	f := &fixture{
		store:    newTestStore(),
		clock:    &fakeClock{now: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)},
		events:   &recordingEvents{},
		notifier: &recordingNotifier{},
	}
	if gateway == nil {
		gateway = payment.NewSimulator("declined-card")
	}
	f.locks = locktable.NewMemoryTable(f.events, locktable.WithClock(f.clock.Now))
	f.selection = NewSeatSelection(f.store, f.locks, nil)
	f.coord = NewCoordinator(f.store, f.store, f.locks, f.events, 0)
	f.coord.now = f.clock.Now
	f.settler = NewSettler(f.store, f.store, f.events, gateway, f.notifier)
	f.canceller = NewCanceller(f.store, f.store, f.events, f.notifier)
	f.canceller.now = f.clock.Now
	f.expirer = NewExpirer(f.store, f.store, f.events, f.notifier, 15*time.Minute)
	f.expirer.now = f.clock.Now
	f.queries = NewBookingQueries(f.store)
	return f
}

func seats(numbers ...string) []SeatRequest {
	out := make([]SeatRequest, len(numbers))
	for i, n := range numbers {
		out[i] = SeatRequest{SeatNumber: n}
	}
	return out
}

func (f *fixture) bookedSeats(t *testing.T) map[string]string {
	t.Helper()
	show, err := f.store.FindShow(context.Background(), testShow)
	if err != nil {
		t.Fatalf("find show: %v", err)
	}
	return show.BookedSeats
}

func customer(id string) Requester { return Requester{UserID: id, Role: RoleCustomer} }
