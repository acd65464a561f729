package models

import "time"

// Equipment is a rental listing. Only its owner may change it.
type Equipment struct {
	ID           int64     `yaml:"id" json:"id"`
	Title        string    `yaml:"title" json:"title"`
	Category     string    `yaml:"category" json:"category"`
	Description  string    `yaml:"description" json:"description"`
	PricePerDay  float64   `yaml:"price_per_day" json:"price_per_day"`
	Location     string    `yaml:"location" json:"location"`
	OwnerID      string    `yaml:"owner_id" json:"owner_id"`
	OwnerName    string    `yaml:"owner_name" json:"owner_name"`
	OwnerContact string    `yaml:"owner_contact" json:"owner_contact,omitempty"`
	Images       []string  `yaml:"images" json:"images,omitempty"`
	IsAvailable  bool      `yaml:"is_available" json:"is_available"`
	CreatedAt    time.Time `yaml:"created_at" json:"created_at"`
	UpdatedAt    time.Time `yaml:"updated_at" json:"updated_at"`
}

// EquipmentFilter narrows a catalog listing. Zero values match everything.
type EquipmentFilter struct {
	Search         string  `json:"search,omitempty"`
	Category       string  `json:"category,omitempty"`
	Location       string  `json:"location,omitempty"`
	MaxPricePerDay float64 `json:"max_price_per_day,omitempty"`
	OwnerID        string  `json:"owner_id,omitempty"`
	IncludeHidden  bool    `json:"include_hidden,omitempty"`
}
