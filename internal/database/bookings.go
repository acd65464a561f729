package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"agrirent/internal/models"
)

const bookingColumns = `id, reference, equipment_id, equipment_title, owner_id, owner_name,
	renter_id, renter_name, start_date, end_date, price_per_day, total_price, status,
	payment_method, emi_term_months, monthly_installment, created_at, updated_at, version`

const insertBooking = `INSERT INTO bookings (
				reference, equipment_id, equipment_title, owner_id, owner_name,
				renter_id, renter_name, start_date, end_date, price_per_day, total_price, status,
				payment_method, emi_term_months, monthly_installment, created_at, updated_at, version
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

func scanBooking(s scanner) (*models.Booking, error) {
	var (
		b          models.Booking
		start, end string
	)
	err := s.Scan(
		&b.ID, &b.Reference, &b.EquipmentID, &b.EquipmentTitle, &b.OwnerID, &b.OwnerName,
		&b.RenterID, &b.RenterName, &start, &end, &b.PricePerDay, &b.TotalPrice, &b.Status,
		&b.PaymentMethod, &b.EMITermMonths, &b.MonthlyInstallment, &b.CreatedAt, &b.UpdatedAt, &b.Version,
	)
	if err != nil {
		return nil, err
	}
	if b.StartDate, err = time.Parse(models.DateLayout, start); err != nil {
		return nil, fmt.Errorf("failed to parse booking start date %s: %w", start, err)
	}
	if b.EndDate, err = time.Parse(models.DateLayout, end); err != nil {
		return nil, fmt.Errorf("failed to parse booking end date %s: %w", end, err)
	}
	return &b, nil
}

func collectBookings(rows *sql.Rows) ([]*models.Booking, error) {
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertBookingRow(ctx context.Context, ex execer, booking *models.Booking) error {
	now := time.Now()
	createdAt := booking.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}
	result, err := ex.ExecContext(ctx, insertBooking,
		booking.Reference,
		booking.EquipmentID,
		booking.EquipmentTitle,
		booking.OwnerID,
		booking.OwnerName,
		booking.RenterID,
		booking.RenterName,
		booking.StartDate.Format(models.DateLayout),
		booking.EndDate.Format(models.DateLayout),
		booking.PricePerDay,
		booking.TotalPrice,
		booking.Status,
		booking.PaymentMethod,
		booking.EMITermMonths,
		booking.MonthlyInstallment,
		createdAt,
		now,
		1,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	booking.ID = id
	booking.CreatedAt = createdAt
	booking.UpdatedAt = now
	booking.Version = 1
	return nil
}

// CreateBookingWithLock re-checks the dates against active bookings of the
// same listing and inserts in one transaction. A conflict returns
// models.ErrStaleAvailability.
func (db *DB) CreateBookingWithLock(ctx context.Context, booking *models.Booking) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	statuses := models.ActiveStatuses
	query := `SELECT COUNT(*) FROM bookings
              WHERE equipment_id = ? AND status IN (` + placeholders(len(statuses)) + `)
              AND start_date <= ? AND end_date >= ?`
	args := []interface{}{booking.EquipmentID}
	for _, s := range statuses {
		args = append(args, s)
	}
	args = append(args, booking.EndDate.Format(models.DateLayout), booking.StartDate.Format(models.DateLayout))

	var overlapping int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&overlapping); err != nil {
		return fmt.Errorf("failed to check availability in tx: %w", err)
	}
	if overlapping > 0 {
		return fmt.Errorf("equipment %d for %s: %w", booking.EquipmentID, booking.Interval(), models.ErrStaleAvailability)
	}

	if err := insertBookingRow(ctx, tx, booking); err != nil {
		return fmt.Errorf("failed to insert booking in tx: %w", err)
	}

	return tx.Commit()
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get booking %d: %w", id, mapError(err))
	}
	return b, nil
}

// GetBookingsByEquipment returns the listing's bookings in the given
// statuses, all statuses when none are given.
func (db *DB) GetBookingsByEquipment(ctx context.Context, equipmentID int64, statuses []string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE equipment_id = ?`
	args := []interface{}{equipmentID}
	if len(statuses) > 0 {
		query += ` AND status IN (` + placeholders(len(statuses)) + `)`
		for _, s := range statuses {
			args = append(args, s)
		}
	}
	query += ` ORDER BY start_date ASC, id ASC`

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by equipment: %w", err)
	}
	return collectBookings(rows)
}

func (db *DB) GetBookingsByRenter(ctx context.Context, renterID string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE renter_id = ? ORDER BY created_at DESC, id DESC`
	rows, err := db.QueryContext(ctx, query, renterID)
	if err != nil {
		return nil, fmt.Errorf("failed to get renter bookings: %w", err)
	}
	return collectBookings(rows)
}

func (db *DB) GetBookingsByOwner(ctx context.Context, ownerID string) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings WHERE owner_id = ? ORDER BY start_date DESC, id DESC`
	rows, err := db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get owner bookings: %w", err)
	}
	return collectBookings(rows)
}

// GetBookingsByDateRange returns bookings whose interval touches [start, end].
func (db *DB) GetBookingsByDateRange(ctx context.Context, start, end time.Time) ([]*models.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings
              WHERE start_date <= ? AND end_date >= ? ORDER BY start_date ASC, id ASC`
	rows, err := db.QueryContext(ctx, query, end.Format(models.DateLayout), start.Format(models.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to get bookings by date range: %w", err)
	}
	return collectBookings(rows)
}

func (db *DB) UpdateBookingStatusWithVersion(ctx context.Context, id, fromVersion int64, status string) error {
	query := `UPDATE bookings SET status = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`
	result, err := db.ExecContext(ctx, query, status, time.Now(), id, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update booking status: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	return nil
}

// UpdateBookingPaymentWithVersion stores the settled payment method and
// installment plan together with the new status.
func (db *DB) UpdateBookingPaymentWithVersion(ctx context.Context, b *models.Booking, fromVersion int64) error {
	query := `UPDATE bookings SET status = ?, payment_method = ?, emi_term_months = ?, monthly_installment = ?,
				version = version + 1, updated_at = ?
              WHERE id = ? AND version = ?`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		b.Status, b.PaymentMethod, b.EMITermMonths, b.MonthlyInstallment, now, b.ID, fromVersion)
	if err != nil {
		return fmt.Errorf("failed to update booking payment: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return ErrConcurrentModification
	}
	b.Version = fromVersion + 1
	b.UpdatedAt = now
	return nil
}

// FindOverlaps lists pairs of active bookings of one listing whose dates
// intersect. Used by the consistency audit.
func (db *DB) FindOverlaps(ctx context.Context) ([]models.Overlap, error) {
	statuses := models.ActiveStatuses
	in := placeholders(len(statuses))
	query := `SELECT a.id, b.id, a.equipment_id FROM bookings a
              JOIN bookings b ON a.equipment_id = b.equipment_id AND a.id < b.id
              WHERE a.status IN (` + in + `) AND b.status IN (` + in + `)
              AND a.start_date <= b.end_date AND b.start_date <= a.end_date
              ORDER BY a.equipment_id, a.id, b.id`
	args := make([]interface{}, 0, 2*len(statuses))
	for i := 0; i < 2; i++ {
		for _, s := range statuses {
			args = append(args, s)
		}
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to find overlaps: %w", err)
	}

	type pair struct{ first, second, equipmentID int64 }
	var pairs []pair
	for rows.Next() {
		var p pair
		if err := rows.Scan(&p.first, &p.second, &p.equipmentID); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan overlap: %w", err)
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	overlaps := make([]models.Overlap, 0, len(pairs))
	for _, p := range pairs {
		first, err := db.GetBooking(ctx, p.first)
		if err != nil {
			return nil, err
		}
		second, err := db.GetBooking(ctx, p.second)
		if err != nil {
			return nil, err
		}
		overlaps = append(overlaps, models.Overlap{EquipmentID: p.equipmentID, First: first, Second: second})
	}
	return overlaps, nil
}
