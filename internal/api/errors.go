package api

import (
	"errors"
	"net/http"

	"agrirent/internal/database"
	"agrirent/internal/models"
	"agrirent/internal/payment"
	"agrirent/internal/rental"
	"agrirent/internal/service"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type errorMapping struct {
	target error
	http   int
	grpc   codes.Code
}

var errorMappings = []errorMapping{
	{models.ErrInvalidRange, http.StatusBadRequest, codes.InvalidArgument},
	{models.ErrInvalidTerm, http.StatusBadRequest, codes.InvalidArgument},
	{rental.ErrInvalidPrice, http.StatusBadRequest, codes.InvalidArgument},
	{rental.ErrInvalidPrincipal, http.StatusBadRequest, codes.InvalidArgument},
	{service.ErrPastDate, http.StatusBadRequest, codes.InvalidArgument},
	{service.ErrDateTooFar, http.StatusBadRequest, codes.InvalidArgument},
	{service.ErrRentalTooLong, http.StatusBadRequest, codes.InvalidArgument},
	{service.ErrInvalidEquipment, http.StatusBadRequest, codes.InvalidArgument},
	{service.ErrInvalidDraft, http.StatusBadRequest, codes.InvalidArgument},
	{service.ErrInvalidContact, http.StatusBadRequest, codes.InvalidArgument},
	{payment.ErrInvalidMethod, http.StatusBadRequest, codes.InvalidArgument},
	{payment.ErrInvalidAmount, http.StatusBadRequest, codes.InvalidArgument},
	{rental.ErrMissingRenter, http.StatusUnauthorized, codes.Unauthenticated},
	{database.ErrNotFound, http.StatusNotFound, codes.NotFound},
	{service.ErrNotOwner, http.StatusForbidden, codes.PermissionDenied},
	{service.ErrForbidden, http.StatusForbidden, codes.PermissionDenied},
	{service.ErrOwnEquipment, http.StatusForbidden, codes.PermissionDenied},
	{models.ErrStaleAvailability, http.StatusConflict, codes.Aborted},
	{database.ErrConcurrentModification, http.StatusConflict, codes.Aborted},
	{payment.ErrPaymentInProgress, http.StatusConflict, codes.Aborted},
	{service.ErrInvalidTransition, http.StatusConflict, codes.FailedPrecondition},
	{service.ErrEquipmentUnavailable, http.StatusConflict, codes.FailedPrecondition},
	{service.ErrPaymentDeclined, http.StatusPaymentRequired, codes.FailedPrecondition},
	{service.ErrRateLimited, http.StatusTooManyRequests, codes.ResourceExhausted},
}

func lookupError(err error) (errorMapping, bool) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			return m, true
		}
	}
	return errorMapping{}, false
}

// httpStatus maps a domain error to a response code, 500 when unknown.
func httpStatus(err error) int {
	if m, ok := lookupError(err); ok {
		return m.http
	}
	return http.StatusInternalServerError
}

// grpcError converts a domain error into a status error.
func grpcError(err error) error {
	if m, ok := lookupError(err); ok {
		return status.Error(m.grpc, err.Error())
	}
	return status.Error(codes.Internal, "internal error")
}
