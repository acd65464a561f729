package models

import "time"

// Party is the authenticated caller as supplied by the identity provider.
// Both fields are opaque to the service.
type Party struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (p Party) IsZero() bool {
	return p.ID == ""
}

type User struct {
	ID           int64     `json:"id"`
	PartyID      string    `json:"party_id"`
	DisplayName  string    `json:"display_name"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	IsAdmin      bool      `json:"is_admin"`
	LastActivity time.Time `json:"last_activity"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
