package models

// InstallmentPlan is a derived monthly breakdown of a total. Never persisted.
type InstallmentPlan struct {
	TermMonths     int     `json:"term_months"`
	InterestRate   float64 `json:"interest_rate"`
	Interest       int64   `json:"interest"`
	TotalPayable   int64   `json:"total_payable"`
	MonthlyPayment int64   `json:"monthly_payment"`
}

// Quote is the price breakdown shown before a booking is placed.
type Quote struct {
	EquipmentID  int64             `json:"equipment_id"`
	StartDate    string            `json:"start_date"`
	EndDate      string            `json:"end_date"`
	Days         int               `json:"days"`
	PricePerDay  float64           `json:"price_per_day"`
	Total        float64           `json:"total"`
	Installments []InstallmentPlan `json:"installments"`
}
