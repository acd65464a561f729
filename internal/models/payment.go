package models

import "time"

// Payment records one attempt against the simulated gateway.
type Payment struct {
	ID             int64     `json:"id"`
	BookingID      int64     `json:"booking_id"`
	TransactionID  string    `json:"transaction_id"`
	IdempotencyKey string    `json:"idempotency_key"`
	Method         string    `json:"method"`
	Amount         float64   `json:"amount"`
	Status         string    `json:"status"` // succeeded, failed
	Simulated      bool      `json:"simulated"`
	CreatedAt      time.Time `json:"created_at"`
}

// PaymentRequest is what a renter submits to pay for a booking.
type PaymentRequest struct {
	Method          string `json:"method"`
	TermMonths      int    `json:"term_months,omitempty"`
	SimulateSuccess bool   `json:"simulate_success"`
	IdempotencyKey  string `json:"idempotency_key,omitempty"`
}
