package model

import (
    "sort"

    "github.com/shopspring/decimal"
)

// SeatInfo is one entry of a show's seat catalog.
type SeatInfo struct {
    SeatType string          `json:"seat_type"`
    Price    decimal.Decimal `json:"price"`
}

// Show is the part of a scheduled screening that seat booking needs.
// The seat catalog lists every valid seat number; BookedSeats is the
// authoritative record of seats committed to a booking (pending or
// confirmed), keyed by seat number with the owning booking ID as value.
//
// Fields:
//  ID          – shows.id
//  SeatCatalog – show_seats rows keyed by seat number.
//  BookedSeats – booked_seats rows: seat number → booking id.
//  Version     – shows.version; incremented by every conditional update.
type Show struct {
    ID          string              `json:"id"`
    SeatCatalog map[string]SeatInfo `json:"seat_catalog"`
    BookedSeats map[string]string   `json:"booked_seats"`
    Version     uint64              `json:"version"`
}

// Clone returns a deep copy so mutators can work on a private value.
func (s *Show) Clone() *Show {
    out := &Show{
        ID:          s.ID,
        Version:     s.Version,
        SeatCatalog: make(map[string]SeatInfo, len(s.SeatCatalog)),
        BookedSeats: make(map[string]string, len(s.BookedSeats)),
    }
    for k, v := range s.SeatCatalog {
        out.SeatCatalog[k] = v
    }
    for k, v := range s.BookedSeats {
        out.BookedSeats[k] = v
    }
    return out
}

// HasSeat reports whether seatNumber exists in the catalog.
func (s *Show) HasSeat(seatNumber string) bool {
    _, ok := s.SeatCatalog[seatNumber]
    return ok
}

// IsBooked reports whether seatNumber is committed to any booking.
func (s *Show) IsBooked(seatNumber string) bool {
    _, ok := s.BookedSeats[seatNumber]
    return ok
}

// SeatsOf returns the seats bound to bookingID, sorted.
func (s *Show) SeatsOf(bookingID string) []string {
    var seats []string
    for seat, id := range s.BookedSeats {
        if id == bookingID {
            seats = append(seats, seat)
        }
    }
    sort.Strings(seats)
    return seats
}

// CatalogSeats returns every seat number of the catalog, sorted.
func (s *Show) CatalogSeats() []string {
    seats := make([]string, 0, len(s.SeatCatalog))
    for seat := range s.SeatCatalog {
        seats = append(seats, seat)
    }
    sort.Strings(seats)
    return seats
}
