package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/seat-booking/internal/model"
)

// MemoryStore is an in-process implementation of ShowStore, BookingStore
// and NotificationStore. It backs tests and single-node development runs. Every
// value handed out is a copy, so callers can never mutate stored state
// outside of the conditional update paths.
type MemoryStore struct {
	mu       sync.Mutex
	shows    map[string]*model.Show
	bookings map[string]*model.Booking
	tickets  map[string]string // ticket id -> booking id

	inbox map[string][]model.Notification // user id -> notifications, oldest first
	notes map[string]bool                 // notification ids already stored
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		shows:    make(map[string]*model.Show),
		bookings: make(map[string]*model.Booking),
		tickets:  make(map[string]string),
		inbox:    make(map[string][]model.Notification),
		notes:    make(map[string]bool),
	}
}

// PutShow inserts or replaces a show. Catalog management lives outside the
// booking core; this is how tests and the demo seed get shows in.
func (s *MemoryStore) PutShow(show *model.Show) {
	c := show.Clone()
	if c.BookedSeats == nil {
		c.BookedSeats = map[string]string{}
	}
	s.mu.Lock()
	s.shows[c.ID] = c
	s.mu.Unlock()
}

// CreateShow inserts a new show; an existing ID yields ErrDuplicate.
func (s *MemoryStore) CreateShow(_ context.Context, show *model.Show) error {
	s.mu.Lock()
	_, exists := s.shows[show.ID]
	s.mu.Unlock()
	if exists {
		return ErrDuplicate
	}
	s.PutShow(show)
	return nil
}

func (s *MemoryStore) FindShow(_ context.Context, id string) (*model.Show, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	show, ok := s.shows[id]
	if !ok {
		return nil, ErrShowNotFound
	}
	return show.Clone(), nil
}

func (s *MemoryStore) ConditionalUpdateShow(_ context.Context, id string, expectedVersion uint64, mutate ShowMutator) (*model.Show, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.shows[id]
	if !ok {
		return nil, ErrShowNotFound
	}
	if cur.Version != expectedVersion {
		return nil, ErrVersionConflict
	}
	next := cur.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	next.ID = cur.ID
	next.Version = cur.Version + 1
	s.shows[id] = next
	return next.Clone(), nil
}

func (s *MemoryStore) ListBookedShows(_ context.Context) ([]string, error) {
	s.mu.Lock()
	out := make([]string, 0)
	for id, show := range s.shows {
		if len(show.BookedSeats) > 0 {
			out = append(out, id)
		}
	}
	s.mu.Unlock()
	sort.Strings(out)
	return out, nil
}

func (s *MemoryStore) CreateBooking(_ context.Context, b *model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[b.ID]; ok {
		return ErrDuplicate
	}
	if _, ok := s.tickets[b.TicketID]; ok {
		return ErrDuplicate
	}
	s.bookings[b.ID] = b.Clone()
	s.tickets[b.TicketID] = b.ID
	return nil
}

func (s *MemoryStore) FindBooking(_ context.Context, id string) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	return b.Clone(), nil
}

func (s *MemoryStore) UpdateBooking(_ context.Context, id string, mutate BookingMutator) (*model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	next := cur.Clone()
	if err := mutate(next); err != nil {
		return nil, err
	}
	// identity, seats and amount are immutable
	next.ID, next.UserID, next.ShowID = cur.ID, cur.UserID, cur.ShowID
	next.Seats, next.TotalAmount, next.TicketID = cur.Seats, cur.TotalAmount, cur.TicketID
	s.bookings[id] = next
	return next.Clone(), nil
}

func (s *MemoryStore) FindBookingsByUser(_ context.Context, userID string) ([]*model.Booking, error) {
	s.mu.Lock()
	out := make([]*model.Booking, 0)
	for _, b := range s.bookings {
		if b.UserID == userID {
			out = append(out, b.Clone())
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) FindPendingBookings(_ context.Context, createdBefore time.Time, limit int) ([]*model.Booking, error) {
	s.mu.Lock()
	out := make([]*model.Booking, 0)
	for _, b := range s.bookings {
		if b.IsAwaitingPayment() && b.CreatedAt.Before(createdBefore) {
			out = append(out, b.Clone())
		}
	}
	s.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) AddNotification(_ context.Context, n *model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.notes[n.ID] {
		return nil
	}
	s.notes[n.ID] = true
	s.inbox[n.UserID] = append(s.inbox[n.UserID], *n)
	return nil
}

func (s *MemoryStore) FindNotificationsByUser(_ context.Context, userID string, limit int) ([]*model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.inbox[userID]
	out := make([]*model.Notification, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		if limit > 0 && len(out) == limit {
			break
		}
		n := list[i]
		out = append(out, &n)
	}
	return out, nil
}
