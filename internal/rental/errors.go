package rental

import (
	"errors"

	"agrirent/internal/models"
)

var (
	ErrInvalidRange      = models.ErrInvalidRange
	ErrInvalidTerm       = models.ErrInvalidTerm
	ErrStaleAvailability = models.ErrStaleAvailability
	ErrInvalidPrice      = errors.New("price per day must be positive")
	ErrInvalidPrincipal  = errors.New("principal must be between 0 and 1e12")
	ErrInvalidStatus     = errors.New("a new booking must be pending or confirmed")
	ErrMissingEquipment  = errors.New("equipment is required")
	ErrMissingRenter     = errors.New("renter identity is required")
)
