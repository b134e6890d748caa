package model

import "time"

// Notification is a message kept in a user's inbox, e.g. "payment failed,
// your seats have been released".
type Notification struct {
    ID        string    `json:"id"`
    UserID    string    `json:"user_id"`
    Type      string    `json:"type"`
    BookingID string    `json:"booking_id,omitempty"`
    TicketID  string    `json:"ticket_id,omitempty"`
    Message   string    `json:"message"`
    CreatedAt time.Time `json:"created_at"`
}
