package database

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"agrirent/internal/models"
)

const equipmentColumns = `id, title, category, description, price_per_day, location,
	owner_id, owner_name, owner_contact, images, is_available, created_at, updated_at`

func scanEquipment(s scanner) (*models.Equipment, error) {
	var (
		e      models.Equipment
		images string
	)
	err := s.Scan(
		&e.ID, &e.Title, &e.Category, &e.Description, &e.PricePerDay, &e.Location,
		&e.OwnerID, &e.OwnerName, &e.OwnerContact, &images, &e.IsAvailable, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if images != "" {
		if err := json.Unmarshal([]byte(images), &e.Images); err != nil {
			return nil, fmt.Errorf("failed to decode images of equipment %d: %w", e.ID, err)
		}
	}
	return &e, nil
}

func encodeImages(images []string) string {
	if len(images) == 0 {
		return "[]"
	}
	raw, err := json.Marshal(images)
	if err != nil {
		return "[]"
	}
	return string(raw)
}

func (db *DB) CreateEquipment(ctx context.Context, e *models.Equipment) error {
	query := `INSERT INTO equipment (
				title, category, description, price_per_day, location,
				owner_id, owner_name, owner_contact, images, is_available, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		e.Title, e.Category, e.Description, e.PricePerDay, e.Location,
		e.OwnerID, e.OwnerName, e.OwnerContact, encodeImages(e.Images), e.IsAvailable, now, now,
	)
	if err != nil {
		return fmt.Errorf("failed to create equipment: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	e.ID = id
	e.CreatedAt = now
	e.UpdatedAt = now
	return nil
}

// SyncEquipment upserts the seed catalog by id in one transaction.
func (db *DB) SyncEquipment(ctx context.Context, items []models.Equipment) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	query := `INSERT INTO equipment (
				id, title, category, description, price_per_day, location,
				owner_id, owner_name, owner_contact, images, is_available, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title = excluded.title,
				category = excluded.category,
				description = excluded.description,
				price_per_day = excluded.price_per_day,
				location = excluded.location,
				owner_id = excluded.owner_id,
				owner_name = excluded.owner_name,
				owner_contact = excluded.owner_contact,
				images = excluded.images,
				is_available = excluded.is_available,
				updated_at = excluded.updated_at`
	now := time.Now()
	for i := range items {
		e := &items[i]
		if _, err := tx.ExecContext(ctx, query,
			e.ID, e.Title, e.Category, e.Description, e.PricePerDay, e.Location,
			e.OwnerID, e.OwnerName, e.OwnerContact, encodeImages(e.Images), e.IsAvailable, now, now,
		); err != nil {
			return fmt.Errorf("failed to sync equipment %d: %w", e.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit equipment sync: %w", err)
	}
	db.logger.Info().Int("count", len(items)).Msg("equipment catalog synced")
	return nil
}

func (db *DB) GetEquipment(ctx context.Context, id int64) (*models.Equipment, error) {
	query := `SELECT ` + equipmentColumns + ` FROM equipment WHERE id = ?`
	e, err := scanEquipment(db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, fmt.Errorf("failed to get equipment %d: %w", id, mapError(err))
	}
	return e, nil
}

// ListEquipment applies the catalog filters. Hidden listings are included
// only with IncludeHidden.
func (db *DB) ListEquipment(ctx context.Context, f models.EquipmentFilter) ([]*models.Equipment, error) {
	var (
		where []string
		args  []interface{}
	)

	if !f.IncludeHidden {
		where = append(where, "is_available = 1")
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		where = append(where, "(lower(title) LIKE ? OR lower(description) LIKE ?)")
		args = append(args, like, like)
	}
	if f.Category != "" && !strings.EqualFold(f.Category, "all") {
		where = append(where, "category = ?")
		args = append(args, f.Category)
	}
	if l := strings.TrimSpace(f.Location); l != "" {
		where = append(where, "lower(location) LIKE ?")
		args = append(args, "%"+strings.ToLower(l)+"%")
	}
	if f.MaxPricePerDay > 0 {
		where = append(where, "price_per_day <= ?")
		args = append(args, f.MaxPricePerDay)
	}
	if f.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, f.OwnerID)
	}

	query := `SELECT ` + equipmentColumns + ` FROM equipment`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list equipment: %w", err)
	}
	defer rows.Close()

	var items []*models.Equipment
	for rows.Next() {
		e, err := scanEquipment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan equipment: %w", err)
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (db *DB) UpdateEquipment(ctx context.Context, e *models.Equipment) error {
	query := `UPDATE equipment SET title = ?, category = ?, description = ?, price_per_day = ?,
				location = ?, owner_name = ?, owner_contact = ?, images = ?, is_available = ?, updated_at = ?
			  WHERE id = ?`
	now := time.Now()
	result, err := db.ExecContext(ctx, query,
		e.Title, e.Category, e.Description, e.PricePerDay,
		e.Location, e.OwnerName, e.OwnerContact, encodeImages(e.Images), e.IsAvailable, now, e.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update equipment: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("failed to update equipment %d: %w", e.ID, ErrNotFound)
	}
	e.UpdatedAt = now
	return nil
}

func (db *DB) SetEquipmentAvailability(ctx context.Context, id int64, available bool) error {
	query := `UPDATE equipment SET is_available = ?, updated_at = ? WHERE id = ?`
	result, err := db.ExecContext(ctx, query, available, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set equipment availability: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("failed to set equipment %d availability: %w", id, ErrNotFound)
	}
	return nil
}
