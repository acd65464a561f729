package rental

import (
	"testing"
	"time"

	"agrirent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildBooking(t *testing.T) {
	item := &models.Equipment{
		ID:          7,
		Title:       "Mahindra 575 DI",
		PricePerDay: 500,
		Location:    "Nashik",
		OwnerID:     "owner-1",
		OwnerName:   "Ravi",
	}
	renter := models.Party{ID: "renter-9", Name: "Asha"}
	now := time.Date(2025, 5, 1, 12, 30, 0, 0, time.UTC)

	t.Run("PendingByDefault", func(t *testing.T) {
		iv := models.DateInterval{Start: date("2025-06-01"), End: date("2025-06-03")}
		b, err := BuildBooking(item, renter, iv, BuildOptions{Now: now})
		require.NoError(t, err)

		assert.Equal(t, models.StatusPending, b.Status)
		assert.Equal(t, 1500.0, b.TotalPrice)
		assert.Equal(t, int64(7), b.EquipmentID)
		assert.Equal(t, "Mahindra 575 DI", b.EquipmentTitle)
		assert.Equal(t, "owner-1", b.OwnerID)
		assert.Equal(t, "renter-9", b.RenterID)
		assert.Equal(t, "Asha", b.RenterName)
		assert.Equal(t, "BK1746102600000", b.Reference)
		assert.Equal(t, now, b.CreatedAt)
		assert.Zero(t, b.EMITermMonths)
	})

	t.Run("ConfirmedVariantWithEMI", func(t *testing.T) {
		iv := models.DateInterval{Start: date("2025-06-01"), End: date("2025-06-03")}
		b, err := BuildBooking(item, renter, iv, BuildOptions{
			Status:        models.StatusConfirmed,
			PaymentMethod: models.PaymentMethodEMI,
			TermMonths:    6,
			Reference:     "BK-fixed",
			Now:           now,
		})
		require.NoError(t, err)
		assert.Equal(t, models.StatusConfirmed, b.Status)
		assert.Equal(t, 6, b.EMITermMonths)
		assert.Equal(t, int64(263), b.MonthlyInstallment)
		assert.Equal(t, "BK-fixed", b.Reference)
	})

	t.Run("ReversedRangeProducesNoRecord", func(t *testing.T) {
		iv := models.DateInterval{Start: date("2025-06-03"), End: date("2025-06-01")}
		b, err := BuildBooking(item, renter, iv, BuildOptions{Now: now})
		assert.ErrorIs(t, err, ErrInvalidRange)
		assert.Nil(t, b)
	})

	t.Run("BadTerm", func(t *testing.T) {
		iv := models.DateInterval{Start: date("2025-06-01"), End: date("2025-06-01")}
		b, err := BuildBooking(item, renter, iv, BuildOptions{PaymentMethod: models.PaymentMethodEMI, TermMonths: 4})
		assert.ErrorIs(t, err, ErrInvalidTerm)
		assert.Nil(t, b)
	})

	t.Run("RejectsOtherStatuses", func(t *testing.T) {
		iv := models.DateInterval{Start: date("2025-06-01"), End: date("2025-06-01")}
		_, err := BuildBooking(item, renter, iv, BuildOptions{Status: models.StatusCompleted})
		assert.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("MissingParties", func(t *testing.T) {
		iv := models.DateInterval{Start: date("2025-06-01"), End: date("2025-06-01")}
		_, err := BuildBooking(nil, renter, iv, BuildOptions{})
		assert.ErrorIs(t, err, ErrMissingEquipment)
		_, err = BuildBooking(item, models.Party{}, iv, BuildOptions{})
		assert.ErrorIs(t, err, ErrMissingRenter)
	})
}
