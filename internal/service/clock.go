package service

import "time"

// SystemClock reports wall time in the marketplace's timezone, which decides
// what "today" is for past-date checks.
type SystemClock struct {
	Location *time.Location
}

func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}
