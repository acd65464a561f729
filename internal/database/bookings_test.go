package database

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"agrirent/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedBooking inserts without the overlap check, to stage overlapping rows.
func seedBooking(ctx context.Context, db *DB, b *models.Booking) error {
	return insertBookingRow(ctx, db, b)
}

func newBooking(e *models.Equipment, renter, start, end, status string) *models.Booking {
	b := &models.Booking{
		Reference:      "BK-" + renter + "-" + start,
		EquipmentID:    e.ID,
		EquipmentTitle: e.Title,
		OwnerID:        e.OwnerID,
		OwnerName:      e.OwnerName,
		RenterID:       renter,
		RenterName:     "Renter " + renter,
		StartDate:      day(start),
		EndDate:        day(end),
		PricePerDay:    e.PricePerDay,
		Status:         status,
	}
	b.TotalPrice = float64(b.Days()) * e.PricePerDay
	return b
}

func TestCreateAndGetBooking(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	e := seedEquipment(t, db, "owner-1")

	b := newBooking(e, "r1", "2025-06-01", "2025-06-03", models.StatusPending)
	b.PaymentMethod = models.PaymentMethodEMI
	b.EMITermMonths = 6
	b.MonthlyInstallment = 630
	require.NoError(t, db.CreateBookingWithLock(ctx, b))
	require.NotZero(t, b.ID)
	assert.Equal(t, int64(1), b.Version)

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, day("2025-06-01"), got.StartDate)
	assert.Equal(t, day("2025-06-03"), got.EndDate)
	assert.Equal(t, 3600.0, got.TotalPrice)
	assert.Equal(t, 6, got.EMITermMonths)
	assert.Equal(t, int64(630), got.MonthlyInstallment)
	assert.Equal(t, "owner-1", got.OwnerID)

	_, err = db.GetBooking(ctx, 12345)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateBookingWithLock_Overlaps(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	e := seedEquipment(t, db, "owner-1")
	other := seedEquipment(t, db, "owner-2")

	require.NoError(t, db.CreateBookingWithLock(ctx, newBooking(e, "r1", "2025-06-10", "2025-06-12", models.StatusConfirmed)))

	tests := []struct {
		name       string
		item       *models.Equipment
		start, end string
		wantStale  bool
	}{
		{"same range", e, "2025-06-10", "2025-06-12", true},
		{"touches first day", e, "2025-06-08", "2025-06-10", true},
		{"touches last day", e, "2025-06-12", "2025-06-14", true},
		{"inside", e, "2025-06-11", "2025-06-11", true},
		{"covers", e, "2025-06-01", "2025-06-30", true},
		{"day before", e, "2025-06-05", "2025-06-09", false},
		{"other listing", other, "2025-06-10", "2025-06-12", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newBooking(tt.item, "r2", tt.start, tt.end, models.StatusPending)
			err := db.CreateBookingWithLock(ctx, b)
			if tt.wantStale {
				assert.ErrorIs(t, err, models.ErrStaleAvailability)
				assert.Zero(t, b.ID)
				return
			}
			require.NoError(t, err)
			// release the dates again so later cases see only the first booking
			require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, b.ID, b.Version, models.StatusCancelled))
		})
	}
}

func TestCreateBookingWithLock_InactiveReleaseDates(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	e := seedEquipment(t, db, "owner-1")

	for _, status := range []string{models.StatusCancelled, models.StatusFailed} {
		require.NoError(t, seedBooking(ctx, db, newBooking(e, "old", "2025-07-01", "2025-07-05", status)))
	}
	require.NoError(t, db.CreateBookingWithLock(ctx, newBooking(e, "r1", "2025-07-02", "2025-07-03", models.StatusPending)))

	completed := newBooking(e, "r2", "2025-08-01", "2025-08-02", models.StatusCompleted)
	require.NoError(t, seedBooking(ctx, db, completed))
	err := db.CreateBookingWithLock(ctx, newBooking(e, "r3", "2025-08-02", "2025-08-02", models.StatusPending))
	assert.ErrorIs(t, err, models.ErrStaleAvailability)
}

func TestConcurrentBooking(t *testing.T) {
	logger := zerolog.Nop()
	dbPath := filepath.Join(t.TempDir(), "concurrency.db")
	db, err := NewDB(dbPath, &logger)
	require.NoError(t, err)
	defer db.Close()

	ctx := context.Background()
	e := seedEquipment(t, db, "owner-1")

	const numGoroutines = 10
	var wg sync.WaitGroup
	wg.Add(numGoroutines)
	results := make(chan error, numGoroutines)

	for i := 0; i < numGoroutines; i++ {
		go func(id int) {
			defer wg.Done()
			b := newBooking(e, string(rune('a'+id)), "2025-09-01", "2025-09-03", models.StatusPending)
			results <- db.CreateBookingWithLock(ctx, b)
		}(i)
	}

	wg.Wait()
	close(results)

	successCount, staleCount := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successCount++
		case assert.ErrorIs(t, err, models.ErrStaleAvailability):
			staleCount++
		}
	}

	assert.Equal(t, 1, successCount, "only one booking may win the dates")
	assert.Equal(t, numGoroutines-1, staleCount)

	active, err := db.GetBookingsByEquipment(ctx, e.ID, models.ActiveStatuses)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestUpdateBookingStatusWithVersion(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	e := seedEquipment(t, db, "owner-1")

	b := newBooking(e, "r1", "2025-06-01", "2025-06-01", models.StatusPending)
	require.NoError(t, db.CreateBookingWithLock(ctx, b))

	require.NoError(t, db.UpdateBookingStatusWithVersion(ctx, b.ID, 1, models.StatusConfirmed))
	err := db.UpdateBookingStatusWithVersion(ctx, b.ID, 1, models.StatusCancelled)
	assert.ErrorIs(t, err, ErrConcurrentModification)

	got, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusConfirmed, got.Status)
	assert.Equal(t, int64(2), got.Version)

	got.Status = models.StatusConfirmed
	got.PaymentMethod = models.PaymentMethodUPI
	require.NoError(t, db.UpdateBookingPaymentWithVersion(ctx, got, got.Version))
	assert.Equal(t, int64(3), got.Version)
	assert.ErrorIs(t, db.UpdateBookingPaymentWithVersion(ctx, got, 1), ErrConcurrentModification)

	reloaded, err := db.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PaymentMethodUPI, reloaded.PaymentMethod)
}

func TestBookingListings(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	e1 := seedEquipment(t, db, "owner-1")
	e2 := seedEquipment(t, db, "owner-2")

	require.NoError(t, db.CreateBookingWithLock(ctx, newBooking(e1, "r1", "2025-06-01", "2025-06-02", models.StatusPending)))
	require.NoError(t, db.CreateBookingWithLock(ctx, newBooking(e1, "r2", "2025-06-05", "2025-06-06", models.StatusConfirmed)))
	require.NoError(t, db.CreateBookingWithLock(ctx, newBooking(e2, "r1", "2025-06-20", "2025-06-25", models.StatusPending)))
	require.NoError(t, seedBooking(ctx, db, newBooking(e1, "r3", "2025-06-01", "2025-06-01", models.StatusCancelled)))

	byRenter, err := db.GetBookingsByRenter(ctx, "r1")
	require.NoError(t, err)
	assert.Len(t, byRenter, 2)

	byOwner, err := db.GetBookingsByOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Len(t, byOwner, 3)

	active, err := db.GetBookingsByEquipment(ctx, e1.ID, models.ActiveStatuses)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, day("2025-06-01"), active[0].StartDate)

	all, err := db.GetBookingsByEquipment(ctx, e1.ID, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	inRange, err := db.GetBookingsByDateRange(ctx, day("2025-06-02"), day("2025-06-20"))
	require.NoError(t, err)
	assert.Len(t, inRange, 3)
}

func TestFindOverlaps(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	e := seedEquipment(t, db, "owner-1")

	// Legacy rows written without the overlap check.
	first := newBooking(e, "r1", "2025-06-01", "2025-06-03", models.StatusConfirmed)
	second := newBooking(e, "r2", "2025-06-03", "2025-06-04", models.StatusPending)
	cancelled := newBooking(e, "r3", "2025-06-02", "2025-06-02", models.StatusCancelled)
	for _, b := range []*models.Booking{first, second, cancelled} {
		require.NoError(t, seedBooking(ctx, db, b))
	}

	overlaps, err := db.FindOverlaps(ctx)
	require.NoError(t, err)
	require.Len(t, overlaps, 1)
	assert.Equal(t, e.ID, overlaps[0].EquipmentID)
	assert.Equal(t, first.ID, overlaps[0].First.ID)
	assert.Equal(t, second.ID, overlaps[0].Second.ID)
}
