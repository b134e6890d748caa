// Package repository defines the durable store used by the booking core and
// the error values shared by its implementations. These sentinel values
// allow higher layers such as services and handlers to distinguish between
// different failure scenarios with errors.Is.
package repository

import (
	"errors"
	"fmt"
)

// ErrNotFound is the root of every "record does not exist" error.
// Handlers should translate it into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

var (
	// ErrShowNotFound indicates that a show was not located in the store.
	ErrShowNotFound = fmt.Errorf("show %w", ErrNotFound)
	// ErrBookingNotFound indicates that a booking was not located in the store.
	ErrBookingNotFound = fmt.Errorf("booking %w", ErrNotFound)
)

// ErrVersionConflict is returned by ConditionalUpdateShow when the stored
// version no longer matches the expected one, i.e. another writer committed
// first. Callers re-read and retry.
var ErrVersionConflict = errors.New("version conflict")

// ErrDuplicate is returned when an insert collides with an existing unique
// key (booking id or ticket id).
var ErrDuplicate = errors.New("duplicate record")
