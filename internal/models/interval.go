package models

import (
	"fmt"
	"time"
)

// DateInterval is an inclusive range of calendar days.
type DateInterval struct {
	Start time.Time `json:"start_date"`
	End   time.Time `json:"end_date"`
}

// DateOnly drops the time of day and pins the calendar date to UTC midnight.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q; expected YYYY-MM-DD", s)
	}
	return t, nil
}

// NewDateInterval normalizes both ends to calendar dates and validates the order.
func NewDateInterval(start, end time.Time) (DateInterval, error) {
	iv := DateInterval{Start: DateOnly(start), End: DateOnly(end)}
	if err := iv.Validate(); err != nil {
		return DateInterval{}, err
	}
	return iv, nil
}

func (iv DateInterval) Validate() error {
	if DateOnly(iv.End).Before(DateOnly(iv.Start)) {
		return ErrInvalidRange
	}
	return nil
}

// Days is the inclusive day count. Zero for an invalid interval.
func (iv DateInterval) Days() int {
	start, end := DateOnly(iv.Start), DateOnly(iv.End)
	if end.Before(start) {
		return 0
	}
	return int(end.Sub(start).Hours()/24) + 1
}

// Contains reports whether the calendar day of t falls inside the interval.
func (iv DateInterval) Contains(t time.Time) bool {
	d := DateOnly(t)
	return !d.Before(DateOnly(iv.Start)) && !d.After(DateOnly(iv.End))
}

// Overlaps reports whether two inclusive intervals share at least one day.
func (iv DateInterval) Overlaps(other DateInterval) bool {
	return !DateOnly(iv.End).Before(DateOnly(other.Start)) && !DateOnly(other.End).Before(DateOnly(iv.Start))
}

// EachDay calls fn for every day of the interval in order.
func (iv DateInterval) EachDay(fn func(day time.Time)) {
	end := DateOnly(iv.End)
	for d := DateOnly(iv.Start); !d.After(end); d = d.AddDate(0, 0, 1) {
		fn(d)
	}
}

func (iv DateInterval) String() string {
	return iv.Start.Format(DateLayout) + ".." + iv.End.Format(DateLayout)
}
