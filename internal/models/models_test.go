package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(s string) time.Time {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestDateInterval(t *testing.T) {
	t.Run("Days", func(t *testing.T) {
		iv := DateInterval{Start: day("2025-06-01"), End: day("2025-06-03")}
		assert.Equal(t, 3, iv.Days())
		assert.Equal(t, 1, DateInterval{Start: day("2025-06-01"), End: day("2025-06-01")}.Days())
		assert.Equal(t, 0, DateInterval{Start: day("2025-06-03"), End: day("2025-06-01")}.Days())
	})

	t.Run("DaysAcrossDST", func(t *testing.T) {
		loc, err := time.LoadLocation("Europe/Berlin")
		if err != nil {
			t.Skip("tzdata not available")
		}
		iv := DateInterval{
			Start: time.Date(2025, 3, 29, 23, 0, 0, 0, loc),
			End:   time.Date(2025, 3, 31, 1, 0, 0, 0, loc),
		}
		assert.Equal(t, 3, iv.Days())
	})

	t.Run("NewDateIntervalRejectsReversed", func(t *testing.T) {
		_, err := NewDateInterval(day("2025-06-05"), day("2025-06-01"))
		assert.ErrorIs(t, err, ErrInvalidRange)
	})

	t.Run("NewDateIntervalDropsTime", func(t *testing.T) {
		iv, err := NewDateInterval(day("2025-06-01").Add(15*time.Hour), day("2025-06-01").Add(2*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, day("2025-06-01"), iv.Start)
		assert.Equal(t, 1, iv.Days())
	})

	t.Run("ContainsAndOverlaps", func(t *testing.T) {
		a := DateInterval{Start: day("2025-06-01"), End: day("2025-06-05")}
		b := DateInterval{Start: day("2025-06-05"), End: day("2025-06-08")}
		c := DateInterval{Start: day("2025-06-06"), End: day("2025-06-08")}

		assert.True(t, a.Contains(day("2025-06-05").Add(23*time.Hour)))
		assert.False(t, a.Contains(day("2025-06-06")))
		assert.True(t, a.Overlaps(b))
		assert.True(t, b.Overlaps(a))
		assert.False(t, a.Overlaps(c))
	})

	t.Run("EachDay", func(t *testing.T) {
		var got []string
		DateInterval{Start: day("2025-06-30"), End: day("2025-07-02")}.EachDay(func(d time.Time) {
			got = append(got, d.Format(DateLayout))
		})
		assert.Equal(t, []string{"2025-06-30", "2025-07-01", "2025-07-02"}, got)
	})
}

func TestDraftStateInterval(t *testing.T) {
	_, ok, err := (&DraftState{StartDate: "2025-06-01"}).Interval()
	require.NoError(t, err)
	assert.False(t, ok)

	iv, ok, err := (&DraftState{StartDate: "2025-06-01", EndDate: "2025-06-03"}).Interval()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3, iv.Days())

	_, _, err = (&DraftState{StartDate: "2025-06-03", EndDate: "2025-06-01"}).Interval()
	assert.ErrorIs(t, err, ErrInvalidRange)

	_, _, err = (&DraftState{StartDate: "06/01/2025", EndDate: "2025-06-01"}).Interval()
	assert.Error(t, err)
}

func TestStatusAndCatalogHelpers(t *testing.T) {
	assert.True(t, IsActiveStatus(StatusPending))
	assert.True(t, IsActiveStatus(StatusCompleted))
	assert.False(t, IsActiveStatus(StatusCancelled))
	assert.False(t, IsActiveStatus(StatusFailed))

	assert.True(t, IsValidCategory(CategoryHarvester))
	assert.False(t, IsValidCategory("Drone"))

	assert.True(t, IsValidPaymentMethod(PaymentMethodEMI))
	assert.False(t, IsValidPaymentMethod("cash"))
}
