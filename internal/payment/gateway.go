// Package payment wraps the external payment collaborator. The booking ID
// is the idempotency token for every charge.
package payment

import (
	"context"
	"strings"
	"sync"

	"github.com/lithammer/shortuuid/v3"
	"github.com/shopspring/decimal"
)

// Decision is the gateway's verdict on a charge.
type Decision string

const (
	Approved Decision = "approved"
	Declined Decision = "declined"
)

// ChargeRequest asks the gateway to collect Amount for a booking.
type ChargeRequest struct {
	BookingID string
	Amount    decimal.Decimal
	Method    string
}

// ChargeResult is the gateway's answer. PaymentID is set when approved.
type ChargeResult struct {
	Decision  Decision
	PaymentID string
	Reason    string
}

// Gateway charges bookings. A transport or upstream error is returned as
// err; a clean refusal is a Declined result with a nil error.
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error)
}

// NewPaymentID returns a gateway-style payment reference.
func NewPaymentID() string {
	return "PAY" + strings.ToUpper(shortuuid.New())
}

// Simulator is a deterministic in-process gateway: it declines the
// configured methods and non-positive amounts, and approves everything
// else. Repeated charges for the same booking return the first result.
type Simulator struct {
	decline map[string]bool

	mu      sync.Mutex
	results map[string]ChargeResult
}

// NewSimulator returns a simulator that declines the given methods.
func NewSimulator(declineMethods ...string) *Simulator {
	s := &Simulator{decline: make(map[string]bool), results: make(map[string]ChargeResult)}
	for _, m := range declineMethods {
		if m = strings.ToLower(strings.TrimSpace(m)); m != "" {
			s.decline[m] = true
		}
	}
	return s
}

func (s *Simulator) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return ChargeResult{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if res, ok := s.results[req.BookingID]; ok {
		return res, nil
	}

	var res ChargeResult
	switch {
	case s.decline[strings.ToLower(req.Method)]:
		res = ChargeResult{Decision: Declined, Reason: "payment method declined"}
	case !req.Amount.IsPositive():
		res = ChargeResult{Decision: Declined, Reason: "invalid amount"}
	default:
		res = ChargeResult{Decision: Approved, PaymentID: NewPaymentID()}
	}
	s.results[req.BookingID] = res
	return res, nil
}
