package export

import (
	"bytes"
	"testing"
	"time"

	"agrirent/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func day(d int) time.Time {
	return time.Date(2025, 7, d, 0, 0, 0, 0, time.UTC)
}

func fixtures() []*models.Booking {
	return []*models.Booking{
		{Reference: "BK1", EquipmentID: 2, EquipmentTitle: "Harvester", RenterName: "A", StartDate: day(1), EndDate: day(3), PricePerDay: 100, TotalPrice: 300, Status: models.StatusConfirmed},
		{Reference: "BK2", EquipmentID: 1, EquipmentTitle: "Tractor", RenterName: "B", StartDate: day(5), EndDate: day(5), PricePerDay: 50, TotalPrice: 50, Status: models.StatusCompleted},
		{Reference: "BK3", EquipmentID: 2, EquipmentTitle: "Harvester", RenterName: "C", StartDate: day(10), EndDate: day(11), PricePerDay: 100, TotalPrice: 200, Status: models.StatusCompleted},
		{Reference: "BK4", EquipmentID: 1, EquipmentTitle: "Tractor", RenterName: "D", StartDate: day(8), EndDate: day(9), PricePerDay: 50, TotalPrice: 100, Status: models.StatusCancelled},
	}
}

func TestEarnings(t *testing.T) {
	rows := Earnings(fixtures())

	require.Len(t, rows, 2)
	assert.Equal(t, EarningsRow{EquipmentID: 1, EquipmentTitle: "Tractor", Bookings: 1, Days: 1, Earned: 50}, rows[0])
	assert.Equal(t, EarningsRow{EquipmentID: 2, EquipmentTitle: "Harvester", Bookings: 2, Days: 5, Earned: 500}, rows[1])
}

func TestWriteOwnerReport(t *testing.T) {
	var buf bytes.Buffer
	owner := models.Party{ID: "owner-1", Name: "Farm Co"}

	require.NoError(t, WriteOwnerReport(&buf, owner, fixtures(), day(20)))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{bookingsSheet, earningsSheet}, f.GetSheetList())

	title, err := f.GetCellValue(bookingsSheet, "A1")
	require.NoError(t, err)
	assert.Contains(t, title, "Farm Co")

	rows, err := f.GetRows(bookingsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 6)
	assert.Equal(t, "BK1", rows[2][0])
	assert.Equal(t, "2025-07-03", rows[2][4])

	total, err := f.GetCellValue(earningsSheet, "E4")
	require.NoError(t, err)
	assert.Equal(t, "550", total)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "rentals_owner-1_20250720.xlsx", FileName(models.Party{ID: "owner-1"}, day(20)))
}
