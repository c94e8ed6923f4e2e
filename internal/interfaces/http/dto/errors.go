package dto

import (
	"net/http"

	"github.com/biblioteca/backend/internal/domain/circulation"
	"github.com/biblioteca/backend/internal/domain/shared"
)

// Request-level error codes. Domain failures keep the code of their DomainError.
const (
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeValidation      = "VALIDATION_ERROR"
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeUnavailable     = "SERVICE_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeValidation:      http.StatusBadRequest,
	ErrCodeBadRequest:      http.StatusBadRequest,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeUnavailable:     http.StatusServiceUnavailable,

	// Lookups -> 404
	shared.ErrNotFound.Code:             http.StatusNotFound,
	circulation.ErrTagNotFound.Code:     http.StatusNotFound,
	circulation.ErrSessionNotFound.Code: http.StatusNotFound,
	circulation.ErrLoanNotFound.Code:    http.StatusNotFound,

	// Business rules -> 422
	circulation.ErrBookUnavailable.Code:     http.StatusUnprocessableEntity,
	circulation.ErrLoanLimitExceeded.Code:   http.StatusUnprocessableEntity,
	circulation.ErrEmptyCart.Code:           http.StatusUnprocessableEntity,
	circulation.ErrRenewalLimit.Code:        http.StatusUnprocessableEntity,
	circulation.ErrLoanOverdue.Code:         http.StatusUnprocessableEntity,
	circulation.ErrLoanAlreadyReturned.Code: http.StatusUnprocessableEntity,
	shared.ErrInvalidState.Code:             http.StatusUnprocessableEntity,

	circulation.ErrBorrowerBlocked.Code:      http.StatusForbidden,
	circulation.ErrSessionAlreadyActive.Code: http.StatusConflict,
	shared.ErrAlreadyExists.Code:             http.StatusConflict,
	shared.ErrInvalidInput.Code:              http.StatusBadRequest,
	shared.ErrTransientStore.Code:            http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes map to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
