package export

import (
	"fmt"
	"io"
	"sort"
	"time"

	"agrirent/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	bookingsSheet = "Bookings"
	earningsSheet = "Earnings"
)

var bookingHeaders = []string{
	"Reference", "Equipment", "Renter", "Start", "End", "Days", "Price/Day", "Total", "Status", "Payment",
}

// EarningsRow aggregates an owner's income for one piece of equipment.
type EarningsRow struct {
	EquipmentID    int64
	EquipmentTitle string
	Bookings       int
	Days           int
	Earned         float64
}

// Earnings sums confirmed and completed bookings per equipment, ordered by id.
func Earnings(bookings []*models.Booking) []EarningsRow {
	byID := make(map[int64]*EarningsRow)
	for _, b := range bookings {
		if b.Status != models.StatusConfirmed && b.Status != models.StatusCompleted {
			continue
		}
		row, ok := byID[b.EquipmentID]
		if !ok {
			row = &EarningsRow{EquipmentID: b.EquipmentID, EquipmentTitle: b.EquipmentTitle}
			byID[b.EquipmentID] = row
		}
		row.Bookings++
		row.Days += b.Days()
		row.Earned += b.TotalPrice
	}

	rows := make([]EarningsRow, 0, len(byID))
	for _, r := range byID {
		rows = append(rows, *r)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].EquipmentID < rows[j].EquipmentID })
	return rows
}

// OwnerReport builds a workbook with a bookings sheet and an earnings sheet.
// The caller must close the returned file.
func OwnerReport(owner models.Party, bookings []*models.Booking, generatedAt time.Time) (*excelize.File, error) {
	f := excelize.NewFile()

	index, err := f.NewSheet(bookingsSheet)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	f.SetActiveSheet(index)
	if _, err := f.NewSheet(earningsSheet); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("error creating sheet: %w", err)
	}
	_ = f.DeleteSheet("Sheet1")

	headerStyle, err := f.NewStyle(&excelize.Style{
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	if err != nil {
		_ = f.Close()
		return nil, err
	}

	title := fmt.Sprintf("Rentals for %s, generated %s", ownerLabel(owner), generatedAt.Format("2006-01-02 15:04"))
	_ = f.SetCellValue(bookingsSheet, "A1", title)
	lastCol, _ := excelize.ColumnNumberToName(len(bookingHeaders))
	_ = f.MergeCell(bookingsSheet, "A1", lastCol+"1")

	for i, h := range bookingHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		_ = f.SetCellValue(bookingsSheet, cell, h)
	}
	_ = f.SetCellStyle(bookingsSheet, "A2", lastCol+"2", headerStyle)

	for i, b := range bookings {
		cell, _ := excelize.CoordinatesToCellName(1, i+3)
		row := []interface{}{
			b.Reference,
			b.EquipmentTitle,
			b.RenterName,
			b.StartDate.Format(models.DateLayout),
			b.EndDate.Format(models.DateLayout),
			b.Days(),
			b.PricePerDay,
			b.TotalPrice,
			b.Status,
			b.PaymentMethod,
		}
		if err := f.SetSheetRow(bookingsSheet, cell, &row); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("write booking row: %w", err)
		}
	}
	_ = f.SetColWidth(bookingsSheet, "A", "C", 22)
	_ = f.SetColWidth(bookingsSheet, "D", lastCol, 13)

	if err := writeEarnings(f, Earnings(bookings), headerStyle); err != nil {
		_ = f.Close()
		return nil, err
	}
	return f, nil
}

func writeEarnings(f *excelize.File, rows []EarningsRow, headerStyle int) error {
	header := []interface{}{"Equipment ID", "Equipment", "Bookings", "Days", "Earned"}
	if err := f.SetSheetRow(earningsSheet, "A1", &header); err != nil {
		return err
	}
	_ = f.SetCellStyle(earningsSheet, "A1", "E1", headerStyle)

	var total float64
	for i, r := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []interface{}{r.EquipmentID, r.EquipmentTitle, r.Bookings, r.Days, r.Earned}
		if err := f.SetSheetRow(earningsSheet, cell, &row); err != nil {
			return err
		}
		total += r.Earned
	}

	totalRow := len(rows) + 2
	_ = f.SetCellValue(earningsSheet, fmt.Sprintf("D%d", totalRow), "Total")
	_ = f.SetCellValue(earningsSheet, fmt.Sprintf("E%d", totalRow), total)
	_ = f.SetColWidth(earningsSheet, "B", "B", 25)
	return nil
}

// WriteOwnerReport streams the owner's report as xlsx.
func WriteOwnerReport(w io.Writer, owner models.Party, bookings []*models.Booking, generatedAt time.Time) error {
	f, err := OwnerReport(owner, bookings, generatedAt)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("error writing workbook: %w", err)
	}
	return nil
}

// FileName is the download name for an owner's report.
func FileName(owner models.Party, generatedAt time.Time) string {
	return fmt.Sprintf("rentals_%s_%s.xlsx", owner.ID, generatedAt.Format("20060102"))
}

func ownerLabel(p models.Party) string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}
