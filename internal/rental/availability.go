package rental

import (
	"sort"
	"time"

	"agrirent/internal/models"
)

// OccupiedDates is the set of calendar days already taken for one listing.
type OccupiedDates map[time.Time]struct{}

func NewOccupiedDates(days ...time.Time) OccupiedDates {
	o := make(OccupiedDates, len(days))
	for _, d := range days {
		o.Add(d)
	}
	return o
}

func (o OccupiedDates) Add(day time.Time) {
	o[models.DateOnly(day)] = struct{}{}
}

func (o OccupiedDates) AddInterval(iv models.DateInterval) {
	iv.EachDay(o.Add)
}

func (o OccupiedDates) Has(day time.Time) bool {
	_, ok := o[models.DateOnly(day)]
	return ok
}

// Sorted returns the occupied days in ascending order.
func (o OccupiedDates) Sorted() []time.Time {
	out := make([]time.Time, 0, len(o))
	for d := range o {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// OccupiedFromBookings expands every active booking day by day.
// Cancelled and failed bookings release their dates.
func OccupiedFromBookings(bookings []*models.Booking) OccupiedDates {
	o := make(OccupiedDates)
	for _, b := range bookings {
		if b == nil || !models.IsActiveStatus(b.Status) {
			continue
		}
		iv := b.Interval()
		if iv.Validate() != nil {
			continue
		}
		o.AddInterval(iv)
	}
	return o
}

// IsPast reports whether the candidate's calendar day is strictly before today.
func IsPast(candidate, now time.Time) bool {
	return models.DateOnly(candidate).Before(models.DateOnly(now))
}

// IsBlocked reports whether a renter may not pick the candidate date:
// it is either already occupied or strictly in the past.
func IsBlocked(candidate time.Time, occupied OccupiedDates, now time.Time) bool {
	return IsPast(candidate, now) || occupied.Has(candidate)
}

// BlockedReason explains IsBlocked. Empty when the day is free.
func BlockedReason(candidate time.Time, occupied OccupiedDates, now time.Time) string {
	switch {
	case IsPast(candidate, now):
		return models.BlockedReasonPast
	case occupied.Has(candidate):
		return models.BlockedReasonBooked
	default:
		return ""
	}
}

// FirstBlockedDay finds the earliest blocked day inside the interval.
func FirstBlockedDay(iv models.DateInterval, occupied OccupiedDates, now time.Time) (time.Time, bool) {
	var (
		found   time.Time
		blocked bool
	)
	iv.EachDay(func(d time.Time) {
		if !blocked && IsBlocked(d, occupied, now) {
			found, blocked = d, true
		}
	})
	return found, blocked
}

// Calendar lays out `days` consecutive days starting at from.
func Calendar(from time.Time, days int, occupied OccupiedDates, now time.Time) []models.DayAvailability {
	if days <= 0 {
		return nil
	}
	start := models.DateOnly(from)
	out := make([]models.DayAvailability, 0, days)
	for i := 0; i < days; i++ {
		d := start.AddDate(0, 0, i)
		reason := BlockedReason(d, occupied, now)
		out = append(out, models.DayAvailability{Date: d, Blocked: reason != "", Reason: reason})
	}
	return out
}
