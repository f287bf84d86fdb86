package dto

import "net/http"

// Error codes carried on the wire. The ERR_ prefix is part of the API
// contract; dashboard clients switch on these strings.
const (
	ErrCodeInternal   = "ERR_INTERNAL"
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	ErrCodeValidation = "ERR_VALIDATION"

	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	ErrCodeForbidden    = "ERR_FORBIDDEN"

	ErrCodeNotFound            = "ERR_NOT_FOUND"
	ErrCodeAlreadyExists       = "ERR_ALREADY_EXISTS"
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"

	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	ErrCodeInvalidState = "ERR_INVALID_STATE"

	// Provider-side failures surfaced through the API: the credential
	// needs re-authorization, or the platform throttled us.
	ErrCodeProviderAuth        = "ERR_PROVIDER_AUTH"
	ErrCodeProviderRateLimited = "ERR_PROVIDER_RATE_LIMITED"

	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

var errorStatus = map[string]int{
	ErrCodeInternal:   http.StatusInternalServerError,
	ErrCodeBadRequest: http.StatusBadRequest,
	ErrCodeValidation: http.StatusBadRequest,

	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,

	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidState: http.StatusUnprocessableEntity,

	ErrCodeProviderAuth:        http.StatusUnprocessableEntity,
	ErrCodeProviderRateLimited: http.StatusUnprocessableEntity,

	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status for an error code, defaulting
// to 500 for codes the map does not know.
func GetHTTPStatus(code string) int {
	if status, ok := errorStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// domainCodes maps the domain layer's bare error codes onto the wire
// format. Unknown codes pass through untouched.
var domainCodes = map[string]string{
	"NOT_FOUND":             ErrCodeNotFound,
	"ALREADY_EXISTS":        ErrCodeAlreadyExists,
	"INVALID_INPUT":         ErrCodeInvalidInput,
	"INVALID_STATE":         ErrCodeInvalidState,
	"UNAUTHORIZED":          ErrCodeUnauthorized,
	"FORBIDDEN":             ErrCodeForbidden,
	"CONCURRENCY_CONFLICT":  ErrCodeConcurrencyConflict,
	"PROVIDER_AUTH":         ErrCodeProviderAuth,
	"PROVIDER_RATE_LIMITED": ErrCodeProviderRateLimited,
}

// NormalizeErrorCode converts a domain error code to the wire format.
func NormalizeErrorCode(code string) string {
	if wire, ok := domainCodes[code]; ok {
		return wire
	}
	return code
}
