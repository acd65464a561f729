package service

import "errors"

var (
	ErrPastDate             = errors.New("rental cannot start in the past")
	ErrDateTooFar           = errors.New("rental starts too far in the future")
	ErrRentalTooLong        = errors.New("rental period is too long")
	ErrEquipmentUnavailable = errors.New("equipment is not available for rent")
	ErrOwnEquipment         = errors.New("owners cannot rent their own equipment")
	ErrInvalidTransition    = errors.New("booking status does not allow this action")
	ErrPaymentDeclined      = errors.New("payment was declined")
	ErrForbidden            = errors.New("operation not permitted for this party")
	ErrNotOwner             = errors.New("only the owner may change this listing")
	ErrInvalidEquipment     = errors.New("invalid equipment")
	ErrInvalidDraft         = errors.New("invalid draft")
	ErrInvalidContact       = errors.New("invalid contact details")
	ErrRateLimited          = errors.New("too many requests")
)
