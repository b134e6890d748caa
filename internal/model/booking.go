package model

import (
    "time"

    "github.com/shopspring/decimal"
)

// PaymentStatus is the settlement state of a booking.
type PaymentStatus string

const (
    PaymentPending   PaymentStatus = "pending"
    PaymentCompleted PaymentStatus = "completed"
    PaymentFailed    PaymentStatus = "failed"
    PaymentRefunded  PaymentStatus = "refunded"
)

// BookingStatus is the lifecycle state of a booking. A freshly reserved
// booking is "confirmed" tentatively until payment settles.
type BookingStatus string

const (
    BookingConfirmed BookingStatus = "confirmed"
    BookingCancelled BookingStatus = "cancelled"
    BookingExpired   BookingStatus = "expired"
)

// BookedSeat is one line item of a booking.
type BookedSeat struct {
    SeatNumber string          `json:"seat_number"`
    SeatType   string          `json:"seat_type"`
    Price      decimal.Decimal `json:"price"`
}

// Booking records a user's claim on one or more seats of a show. Bookings
// are never deleted; cancellation, expiry and payment failure are terminal
// states.
//
// Fields:
//  ID                 – bookings.id (UUID).
//  UserID             – owner of the booking.
//  ShowID             – show the seats belong to.
//  Seats              – booking_seats rows in request order.
//  TotalAmount        – sum of the seat prices.
//  PaymentStatus      – pending, completed, failed or refunded.
//  BookingStatus      – confirmed, cancelled or expired.
//  PaymentID          – gateway reference, set once payment completes.
//  TicketID           – unique ticket token handed to the customer.
//  CreatedAt          – creation timestamp.
//  CancelledAt        – set when the booking is cancelled.
//  CancellationReason – free text supplied on cancellation.
type Booking struct {
    ID                 string          `json:"id"`
    UserID             string          `json:"user_id"`
    ShowID             string          `json:"show_id"`
    Seats              []BookedSeat    `json:"seats"`
    TotalAmount        decimal.Decimal `json:"total_amount"`
    PaymentStatus      PaymentStatus   `json:"payment_status"`
    BookingStatus      BookingStatus   `json:"booking_status"`
    PaymentID          string          `json:"payment_id,omitempty"`
    TicketID           string          `json:"ticket_id"`
    CreatedAt          time.Time       `json:"created_at"`
    CancelledAt        *time.Time      `json:"cancelled_at,omitempty"`
    CancellationReason string          `json:"cancellation_reason,omitempty"`
}

// Clone returns a deep copy of the booking.
func (b *Booking) Clone() *Booking {
    out := *b
    out.Seats = append([]BookedSeat(nil), b.Seats...)
    if b.CancelledAt != nil {
        t := *b.CancelledAt
        out.CancelledAt = &t
    }
    return &out
}

// SeatNumbers returns the seat numbers of the booking in line-item order.
func (b *Booking) SeatNumbers() []string {
    out := make([]string, len(b.Seats))
    for i, s := range b.Seats {
        out[i] = s.SeatNumber
    }
    return out
}

// IsAwaitingPayment reports whether the booking still waits for settlement.
func (b *Booking) IsAwaitingPayment() bool {
    return b.PaymentStatus == PaymentPending && b.BookingStatus == BookingConfirmed
}

// HoldsSeats reports whether the booking is still entitled to its seats.
// Cancelled, expired and unpaid-failed bookings are not.
func (b *Booking) HoldsSeats() bool {
    if b.BookingStatus != BookingConfirmed {
        return false
    }
    return b.PaymentStatus == PaymentPending || b.PaymentStatus == PaymentCompleted
}
