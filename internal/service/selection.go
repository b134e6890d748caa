package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/seat-booking/internal/locktable"
	"github.com/iliyamo/seat-booking/internal/logging"
	"github.com/iliyamo/seat-booking/internal/model"
	"github.com/iliyamo/seat-booking/internal/repository"
)

// SeatState is the state of one seat as shown on the seat map.
type SeatState string

const (
	SeatAvailable SeatState = "available"
	SeatLocked    SeatState = "locked"
	SeatBooked    SeatState = "booked"
)

// SeatView is one seat of a seat map.
type SeatView struct {
	SeatNumber  string          `json:"seat_number"`
	SeatType    string          `json:"seat_type"`
	Price       decimal.Decimal `json:"price"`
	State       SeatState       `json:"state"`
	LockedByYou bool            `json:"locked_by_you,omitempty"`
}

// SeatMap is the authoritative snapshot clients resync from.
type SeatMap struct {
	ShowID  string     `json:"show_id"`
	Version uint64     `json:"version"`
	Seats   []SeatView `json:"seats"`
}

// Unsubscriber drops a session's live event stream.
type Unsubscriber interface {
	Unsubscribe(sessionID string)
}

// SeatSelection is the interactive, pre-booking side of the system: seats
// being picked, dropped and abandoned by viewers of a show.
type SeatSelection struct {
	shows repository.ShowStore
	locks locktable.Table
	subs  Unsubscriber
}

// NewSeatSelection wires the selection service. subs may be nil.
func NewSeatSelection(shows repository.ShowStore, locks locktable.Table, subs Unsubscriber) *SeatSelection {
	return &SeatSelection{shows: shows, locks: locks, subs: subs}
}

// Select places an advisory lock on a seat. Seats that are unknown or
// already booked are rejected before the lock table is consulted.
func (s *SeatSelection) Select(ctx context.Context, showID, seatNumber, userID, sessionID string) (locktable.LockResult, error) {
	if seatNumber == "" || sessionID == "" {
		return locktable.HeldByOther, fmt.Errorf("%w: seat number and session are required", ErrInvalidRequest)
	}
	show, err := s.shows.FindShow(ctx, showID)
	if err != nil {
		return locktable.HeldByOther, err
	}
	if !show.HasSeat(seatNumber) {
		return locktable.HeldByOther, fmt.Errorf("%w: unknown seat %s", ErrInvalidRequest, seatNumber)
	}
	if show.IsBooked(seatNumber) {
		return locktable.HeldByOther, &ConflictError{Seats: []string{seatNumber}}
	}
	return s.locks.Acquire(ctx, showID, seatNumber, userID, sessionID)
}

// Release drops the lock on a seat if the caller holds it. Releasing a
// seat that is free, or held by someone else, is a no-op.
func (s *SeatSelection) Release(ctx context.Context, showID, seatNumber, userID, sessionID string) (bool, error) {
	lock, err := s.locks.Get(ctx, showID, seatNumber)
	if err != nil {
		return false, err
	}
	if lock == nil || !lock.HeldBy(userID, sessionID) {
		return false, nil
	}
	return s.locks.Release(ctx, showID, seatNumber)
}

// Disconnect ends a session on behalf of userID: its event stream is closed
// and every lock it holds is released. A session holding another user's
// locks is left untouched and ErrForbidden is returned.
func (s *SeatSelection) Disconnect(ctx context.Context, sessionID, userID string) ([]model.SeatKey, error) {
	held, err := s.locks.SessionLocks(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for _, l := range held {
		if l.UserID != userID {
			return nil, ErrForbidden
		}
	}
	if s.subs != nil {
		s.subs.Unsubscribe(sessionID)
	}
	keys, err := s.locks.ReleaseAllFor(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(keys) > 0 {
		logging.FromContext(ctx).WithFields(logrus.Fields{
			"session_id": sessionID,
			"released":   len(keys),
		}).Info("session disconnected, seat locks released")
	}
	return keys, nil
}

// SeatMap merges the show's catalog, its booked seats and the live locks.
// Lock table errors degrade to "no locks": the map stays usable.
func (s *SeatSelection) SeatMap(ctx context.Context, showID, userID string) (*SeatMap, error) {
	show, err := s.shows.FindShow(ctx, showID)
	if err != nil {
		return nil, err
	}
	seats := show.CatalogSeats()
	locks, err := s.locks.Locks(ctx, showID, seats)
	if err != nil {
		logging.FromContext(ctx).WithError(err).WithField("show_id", showID).Warn("reading seat locks failed")
		locks = nil
	}

	out := &SeatMap{ShowID: show.ID, Version: show.Version, Seats: make([]SeatView, 0, len(seats))}
	for _, seat := range seats {
		info := show.SeatCatalog[seat]
		v := SeatView{SeatNumber: seat, SeatType: info.SeatType, Price: info.Price, State: SeatAvailable}
		if show.IsBooked(seat) {
			v.State = SeatBooked
		} else if l, ok := locks[seat]; ok {
			v.State = SeatLocked
			v.LockedByYou = userID != "" && l.UserID == userID
		}
		out.Seats = append(out.Seats, v)
	}
	return out, nil
}
