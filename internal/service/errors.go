package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/seat-booking/internal/repository"
)

var (
	// ErrNotFound and its two specialisations come straight from the store.
	ErrNotFound        = repository.ErrNotFound
	ErrShowNotFound    = repository.ErrShowNotFound
	ErrBookingNotFound = repository.ErrBookingNotFound

	// ErrInvalidRequest covers malformed input: no seats, duplicate or
	// unknown seat numbers.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrConflict means a seat is taken; the client should re-fetch the
	// seat map and choose again. Returned as *ConflictError.
	ErrConflict = errors.New("seat conflict")
	// ErrForbidden means the ownership or role check failed.
	ErrForbidden = errors.New("forbidden")
	// ErrAlreadyProcessed is the idempotency short-circuit for settled,
	// cancelled or expired bookings.
	ErrAlreadyProcessed = errors.New("already processed")
	// ErrAlreadyCancelled is returned by a repeated cancellation.
	ErrAlreadyCancelled = fmt.Errorf("booking already cancelled: %w", ErrAlreadyProcessed)
	// ErrStoreWriteConflict means concurrent writers kept winning the
	// show's version race until retries ran out.
	ErrStoreWriteConflict = errors.New("store write conflict")
	// ErrUpstreamPayment means the payment collaborator failed; the
	// booking has been rolled back to failed.
	ErrUpstreamPayment = errors.New("upstream payment failure")
)

// ConflictError lists the seats that could not be reserved.
type ConflictError struct {
	Seats []string
	Cause error
}

func (e *ConflictError) Error() string {
	msg := "seats unavailable: " + strings.Join(e.Seats, ", ")
	if e.Cause != nil {
		msg += " (" + e.Cause.Error() + ")"
	}
	return msg
}

func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

func (e *ConflictError) Unwrap() error { return e.Cause }
