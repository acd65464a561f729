package models

import "time"

type Booking struct {
	ID                 int64     `json:"id"`
	Reference          string    `json:"reference"`
	EquipmentID        int64     `json:"equipment_id"`
	EquipmentTitle     string    `json:"equipment_title"`
	OwnerID            string    `json:"owner_id"`
	OwnerName          string    `json:"owner_name"`
	RenterID           string    `json:"renter_id"`
	RenterName         string    `json:"renter_name"`
	StartDate          time.Time `json:"start_date"`
	EndDate            time.Time `json:"end_date"`
	PricePerDay        float64   `json:"price_per_day"`
	TotalPrice         float64   `json:"total_price"`
	Status             string    `json:"status"` // pending, confirmed, cancelled, failed, completed
	PaymentMethod      string    `json:"payment_method,omitempty"`
	EMITermMonths      int       `json:"emi_term_months,omitempty"`
	MonthlyInstallment int64     `json:"monthly_installment,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
	Version            int64     `json:"version"`
}

// Interval returns the booked date range.
func (b *Booking) Interval() DateInterval {
	return DateInterval{Start: b.StartDate, End: b.EndDate}
}

// Days is the inclusive rental length.
func (b *Booking) Days() int {
	return b.Interval().Days()
}
