package rental

import (
	"strconv"
	"time"

	"agrirent/internal/models"
)

// BuildOptions selects the flow variant of BuildBooking.
type BuildOptions struct {
	// Status is pending for pay-later and confirmed for pay-first. Defaults to pending.
	Status        string
	PaymentMethod string
	TermMonths    int
	Reference     string
	Now           time.Time
}

// BuildBooking assembles a denormalized booking ready for persistence.
// The total is computed once here and never recomputed afterwards.
func BuildBooking(item *models.Equipment, renter models.Party, iv models.DateInterval, opts BuildOptions) (*models.Booking, error) {
	if item == nil {
		return nil, ErrMissingEquipment
	}
	if renter.IsZero() {
		return nil, ErrMissingRenter
	}
	if err := iv.Validate(); err != nil {
		return nil, err
	}

	status := opts.Status
	if status == "" {
		status = models.StatusPending
	}
	if status != models.StatusPending && status != models.StatusConfirmed {
		return nil, ErrInvalidStatus
	}

	start, end := models.DateOnly(iv.Start), models.DateOnly(iv.End)
	total, err := ComputeTotal(start, end, item.PricePerDay)
	if err != nil {
		return nil, err
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	ref := opts.Reference
	if ref == "" {
		ref = "BK" + strconv.FormatInt(now.UnixMilli(), 10)
	}

	booking := &models.Booking{
		Reference:      ref,
		EquipmentID:    item.ID,
		EquipmentTitle: item.Title,
		OwnerID:        item.OwnerID,
		OwnerName:      item.OwnerName,
		RenterID:       renter.ID,
		RenterName:     renter.Name,
		StartDate:      start,
		EndDate:        end,
		PricePerDay:    item.PricePerDay,
		TotalPrice:     total,
		Status:         status,
		PaymentMethod:  opts.PaymentMethod,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if opts.PaymentMethod == models.PaymentMethodEMI {
		monthly, err := ComputeInstallment(total, opts.TermMonths)
		if err != nil {
			return nil, err
		}
		booking.EMITermMonths = opts.TermMonths
		booking.MonthlyInstallment = monthly
	}

	return booking, nil
}
