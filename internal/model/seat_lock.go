package model

import "time"

// SeatKey identifies a seat within a show.
type SeatKey struct {
    ShowID     string `json:"show_id"`
    SeatNumber string `json:"seat_number"`
}

func (k SeatKey) String() string { return k.ShowID + "|" + k.SeatNumber }

// SeatLock is an ephemeral, advisory claim on a seat held by a selecting
// user's session. Locks are never persisted and expire at ExpiresAt.
type SeatLock struct {
    Key        SeatKey   `json:"key"`
    UserID     string    `json:"user_id"`
    SessionID  string    `json:"-"`
    AcquiredAt time.Time `json:"acquired_at"`
    ExpiresAt  time.Time `json:"expires_at"`
}

// Expired reports whether the lock is no longer valid at now.
func (l SeatLock) Expired(now time.Time) bool {
    return !now.Before(l.ExpiresAt)
}

// HeldBy reports whether the lock belongs to the given user and session.
func (l SeatLock) HeldBy(userID, sessionID string) bool {
    return l.UserID == userID && l.SessionID == sessionID
}
