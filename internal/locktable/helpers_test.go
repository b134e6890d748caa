package locktable

import (
	"context"
	"sync"
	"time"

	"github.com/iliyamo/seat-booking/internal/model"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.SeatEvent
}

func (p *recordingPublisher) Publish(_ context.Context, ev model.SeatEvent) {
	p.mu.Lock()
	p.events = append(p.events, ev)
	p.mu.Unlock()
}

func (p *recordingPublisher) Events() []model.SeatEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]model.SeatEvent(nil), p.events...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 18, 0, 0, 0, time.UTC)}
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
