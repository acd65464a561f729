package database

import (
	"context"
	"fmt"
	"time"

	"agrirent/internal/models"
)

const userColumns = `id, party_id, display_name, email, phone, is_admin, last_activity, created_at, updated_at`

// UpsertUser records a party on first sight and refreshes its name,
// admin flag and activity afterwards. Contact fields are kept when empty.
func (db *DB) UpsertUser(ctx context.Context, user *models.User) error {
	query := `INSERT INTO users (party_id, display_name, email, phone, is_admin, last_activity, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(party_id) DO UPDATE SET
				display_name = CASE WHEN excluded.display_name = '' THEN display_name ELSE excluded.display_name END,
				email = CASE WHEN excluded.email = '' THEN email ELSE excluded.email END,
				phone = CASE WHEN excluded.phone = '' THEN phone ELSE excluded.phone END,
				is_admin = excluded.is_admin,
				last_activity = excluded.last_activity,
				updated_at = excluded.updated_at`
	lastActivity := user.LastActivity
	if lastActivity.IsZero() {
		lastActivity = time.Now()
	}
	now := time.Now()
	_, err := db.ExecContext(ctx, query,
		user.PartyID,
		user.DisplayName,
		user.Email,
		user.Phone,
		user.IsAdmin,
		lastActivity,
		now,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert user: %w", err)
	}
	return nil
}

func (db *DB) GetUserByPartyID(ctx context.Context, partyID string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE party_id = ?`
	var u models.User
	err := db.QueryRowContext(ctx, query, partyID).Scan(
		&u.ID, &u.PartyID, &u.DisplayName, &u.Email, &u.Phone, &u.IsAdmin, &u.LastActivity, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", partyID, mapError(err))
	}
	return &u, nil
}

func (db *DB) UpdateUserContact(ctx context.Context, partyID, email, phone string) error {
	query := `UPDATE users SET email = ?, phone = ?, updated_at = ? WHERE party_id = ?`
	result, err := db.ExecContext(ctx, query, email, phone, time.Now(), partyID)
	if err != nil {
		return fmt.Errorf("failed to update user contact: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return fmt.Errorf("failed to update user %s contact: %w", partyID, ErrNotFound)
	}
	return nil
}

// GetUsers lists users by most recent activity. adminsOnly narrows the list.
func (db *DB) GetUsers(ctx context.Context, adminsOnly bool) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	if adminsOnly {
		query += ` WHERE is_admin = 1`
	}
	query += ` ORDER BY last_activity DESC`

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u := &models.User{}
		err := rows.Scan(
			&u.ID, &u.PartyID, &u.DisplayName, &u.Email, &u.Phone, &u.IsAdmin, &u.LastActivity, &u.CreatedAt, &u.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
