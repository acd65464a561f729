package database

import (
	"context"
	"fmt"
	"time"

	"agrirent/internal/models"
)

func (db *DB) CreatePayment(ctx context.Context, p *models.Payment) error {
	query := `INSERT INTO payments (booking_id, transaction_id, idempotency_key, method, amount, status, simulated, created_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	result, err := db.ExecContext(ctx, query,
		p.BookingID, p.TransactionID, p.IdempotencyKey, p.Method, p.Amount, p.Status, p.Simulated, p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	p.ID = id
	return nil
}

func (db *DB) GetPaymentsByBooking(ctx context.Context, bookingID int64) ([]*models.Payment, error) {
	query := `SELECT id, booking_id, transaction_id, idempotency_key, method, amount, status, simulated, created_at
              FROM payments WHERE booking_id = ? ORDER BY created_at ASC, id ASC`
	rows, err := db.QueryContext(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payments: %w", err)
	}
	defer rows.Close()

	var payments []*models.Payment
	for rows.Next() {
		p := &models.Payment{}
		if err := rows.Scan(&p.ID, &p.BookingID, &p.TransactionID, &p.IdempotencyKey,
			&p.Method, &p.Amount, &p.Status, &p.Simulated, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
