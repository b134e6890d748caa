// Package queue defines user notification payloads and moves them through
// RabbitMQ.
package queue

import (
    "context"
    "time"

    "github.com/google/uuid"

    "github.com/iliyamo/seat-booking/internal/model"
)

// NotificationType names what happened to a booking.
type NotificationType string

const (
    NotifyBookingConfirmed NotificationType = "booking_confirmed"
    NotifyPaymentFailed    NotificationType = "payment_failed"
    NotifyBookingCancelled NotificationType = "booking_cancelled"
    NotifyBookingExpired   NotificationType = "booking_expired"
)

// NotificationEvent is enqueued whenever a user should hear about a booking
// change. It carries enough context for the consumer to render a message
// without querying the store.
type NotificationEvent struct {
    ID          string           `json:"id"`
    Type        NotificationType `json:"type"`
    UserID      string           `json:"user_id"`
    BookingID   string           `json:"booking_id"`
    TicketID    string           `json:"ticket_id"`
    ShowID      string           `json:"show_id"`
    Seats       []string         `json:"seats"`
    TotalAmount string           `json:"total_amount"`
    Message     string           `json:"message"`
    CreatedAt   string           `json:"created_at"` // RFC3339, UTC
}

// Inbox stores notifications where their user can read them.
type Inbox interface {
    AddNotification(ctx context.Context, n *model.Notification) error
}

// Notification converts the event into an inbox entry. Events without an
// ID get a fresh one; an unparsable timestamp becomes now.
func (ev NotificationEvent) Notification() *model.Notification {
    id := ev.ID
    if id == "" {
        id = uuid.NewString()
    }
    at, err := time.Parse(time.RFC3339, ev.CreatedAt)
    if err != nil {
        at = time.Now()
    }
    return &model.Notification{
        ID:        id,
        UserID:    ev.UserID,
        Type:      string(ev.Type),
        BookingID: ev.BookingID,
        TicketID:  ev.TicketID,
        Message:   ev.Message,
        CreatedAt: at.UTC(),
    }
}
