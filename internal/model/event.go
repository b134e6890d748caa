package model

// SeatEventType names a seat state change pushed to viewers of a show.
type SeatEventType string

const (
    SeatSelected SeatEventType = "seat-selected"
    SeatReleased SeatEventType = "seat-released"
)

// SeatEvent is a hint about a seat's state. Viewers must not treat it as
// ground truth; the seat map endpoint is authoritative.
type SeatEvent struct {
    Type       SeatEventType `json:"type"`
    ShowID     string        `json:"showId"`
    SeatNumber string        `json:"seatNumber"`
    UserID     string        `json:"userId,omitempty"`
}

// Selected builds a seat-selected event.
func Selected(key SeatKey, userID string) SeatEvent {
    return SeatEvent{Type: SeatSelected, ShowID: key.ShowID, SeatNumber: key.SeatNumber, UserID: userID}
}

// Released builds a seat-released event.
func Released(key SeatKey) SeatEvent {
    return SeatEvent{Type: SeatReleased, ShowID: key.ShowID, SeatNumber: key.SeatNumber}
}
