package models

import "time"

// DraftState is a renter's in-progress selection on an equipment page.
type DraftState struct {
	PartyID       string    `json:"party_id"`
	EquipmentID   int64     `json:"equipment_id"`
	StartDate     string    `json:"start_date,omitempty"`
	EndDate       string    `json:"end_date,omitempty"`
	PaymentMethod string    `json:"payment_method,omitempty"`
	TermMonths    int       `json:"term_months,omitempty"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Interval parses the selected dates. ok is false until both ends are picked.
func (s *DraftState) Interval() (iv DateInterval, ok bool, err error) {
	if s == nil || s.StartDate == "" || s.EndDate == "" {
		return DateInterval{}, false, nil
	}
	start, err := ParseDate(s.StartDate)
	if err != nil {
		return DateInterval{}, false, err
	}
	end, err := ParseDate(s.EndDate)
	if err != nil {
		return DateInterval{}, false, err
	}
	iv, err = NewDateInterval(start, end)
	if err != nil {
		return DateInterval{}, false, err
	}
	return iv, true, nil
}
