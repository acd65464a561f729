package payment

import (
	"context"
	"errors"
	"time"
)

var (
	ErrPaymentInProgress = errors.New("payment with this idempotency key is already being processed")
	ErrInvalidMethod     = errors.New("unsupported payment method")
	ErrInvalidAmount     = errors.New("payment amount must be positive")
)

// ChargeRequest is one attempt to settle a booking.
type ChargeRequest struct {
	BookingID       int64
	Amount          float64
	Method          string
	SimulateSuccess bool
	IdempotencyKey  string
}

// ChargeResult is what the gateway reports back. A declined charge is a
// result with Status failed, not an error.
type ChargeResult struct {
	TransactionID string    `json:"transaction_id"`
	BookingID     int64     `json:"booking_id"`
	Status        string    `json:"status"`
	Method        string    `json:"method"`
	Amount        float64   `json:"amount"`
	ProcessedAt   time.Time `json:"processed_at"`
}

type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
}

// IdempotencyStore remembers the outcome of a charge per client key.
type IdempotencyStore interface {
	// Reserve claims the key. It returns the stored result when the key
	// already completed and ErrPaymentInProgress while another attempt runs.
	Reserve(ctx context.Context, key string) (*ChargeResult, error)
	MarkSuccess(ctx context.Context, key string, result *ChargeResult) error
	MarkFailure(ctx context.Context, key string) error
}
