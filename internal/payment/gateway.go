package payment

import (
	"context"
	"fmt"
	"math"
	"time"

	"agrirent/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// SimulatedGateway stands in for a real processor. The outcome is chosen by
// the caller and reported after an opaque delay.
type SimulatedGateway struct {
	delay  time.Duration
	now    func() time.Time
	logger *zerolog.Logger
}

func NewSimulatedGateway(delay time.Duration, logger *zerolog.Logger) *SimulatedGateway {
	return &SimulatedGateway{delay: delay, now: time.Now, logger: logger}
}

func (g *SimulatedGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if !models.IsValidPaymentMethod(req.Method) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidMethod, req.Method)
	}
	if req.Amount <= 0 || math.IsNaN(req.Amount) || math.IsInf(req.Amount, 0) {
		return nil, ErrInvalidAmount
	}

	if g.delay > 0 {
		timer := time.NewTimer(g.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	status := models.PaymentFailed
	if req.SimulateSuccess {
		status = models.PaymentSucceeded
	}

	result := &ChargeResult{
		TransactionID: uuid.NewString(),
		BookingID:     req.BookingID,
		Status:        status,
		Method:        req.Method,
		Amount:        req.Amount,
		ProcessedAt:   g.now(),
	}

	g.logger.Info().
		Str("transaction_id", result.TransactionID).
		Int64("booking_id", req.BookingID).
		Str("method", req.Method).
		Float64("amount", req.Amount).
		Str("status", status).
		Msg("simulated charge processed")

	return result, nil
}
