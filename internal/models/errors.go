package models

import "errors"

var (
	ErrInvalidRange      = errors.New("end date precedes start date")
	ErrInvalidTerm       = errors.New("unsupported installment term")
	ErrStaleAvailability = errors.New("dates were booked by someone else")
)
