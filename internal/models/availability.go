package models

import "time"

const (
	BlockedReasonPast   = "past"
	BlockedReasonBooked = "booked"
)

// DayAvailability is one cell of an equipment calendar.
type DayAvailability struct {
	Date    time.Time `json:"date"`
	Blocked bool      `json:"blocked"`
	Reason  string    `json:"reason,omitempty"`
}

// Overlap pairs two active bookings of one listing whose dates intersect.
type Overlap struct {
	EquipmentID int64    `json:"equipment_id"`
	First       *Booking `json:"first"`
	Second      *Booking `json:"second"`
}
