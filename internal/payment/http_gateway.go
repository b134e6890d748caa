package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iliyamo/seat-booking/internal/logging"
)

// HTTPGateway calls a remote payment service:
//
//	POST <baseURL>/charges
//	Idempotency-Key: <booking id>
//	{"booking_id": "...", "amount": "12.50", "method": "card"}
//
// and expects {"status": "approved"|"declined", "payment_id": "...", "reason": "..."}.
// 402 is read as a decline; other non-2xx answers are errors.
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

// NewHTTPGateway returns a gateway client with the given request timeout.
func NewHTTPGateway(baseURL string, timeout time.Duration) *HTTPGateway {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

type chargeBody struct {
	BookingID string          `json:"booking_id"`
	Amount    decimal.Decimal `json:"amount"`
	Method    string          `json:"method"`
}

type chargeReply struct {
	Status    string `json:"status"`
	PaymentID string `json:"payment_id"`
	Reason    string `json:"reason"`
}

func (g *HTTPGateway) Charge(ctx context.Context, req ChargeRequest) (ChargeResult, error) {
	body, err := json.Marshal(chargeBody{BookingID: req.BookingID, Amount: req.Amount, Method: req.Method})
	if err != nil {
		return ChargeResult{}, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/charges", bytes.NewReader(body))
	if err != nil {
		return ChargeResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Idempotency-Key", req.BookingID)
	if id := logging.CorrelationIDFromContext(ctx); id != "" {
		httpReq.Header.Set("Correlation-ID", id)
	}

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return ChargeResult{}, fmt.Errorf("payment gateway: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return ChargeResult{}, fmt.Errorf("payment gateway: read body: %w", err)
	}
	var reply chargeReply
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &reply); err != nil && resp.StatusCode < 300 {
			return ChargeResult{}, fmt.Errorf("payment gateway: decode reply: %w", err)
		}
	}

	switch {
	case resp.StatusCode == http.StatusPaymentRequired:
		return ChargeResult{Decision: Declined, Reason: reasonOr(reply.Reason, "payment declined")}, nil
	case resp.StatusCode >= 300:
		return ChargeResult{}, fmt.Errorf("payment gateway: unexpected status %d", resp.StatusCode)
	}

	switch Decision(strings.ToLower(reply.Status)) {
	case Approved:
		id := reply.PaymentID
		if id == "" {
			id = NewPaymentID()
		}
		return ChargeResult{Decision: Approved, PaymentID: id}, nil
	case Declined:
		return ChargeResult{Decision: Declined, Reason: reasonOr(reply.Reason, "payment declined")}, nil
	default:
		return ChargeResult{}, fmt.Errorf("payment gateway: unknown status %q", reply.Status)
	}
}

func reasonOr(reason, def string) string {
	if reason == "" {
		return def
	}
	return reason
}
