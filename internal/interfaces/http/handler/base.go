package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/syncbridge/backend/internal/domain/integration"
	"github.com/syncbridge/backend/internal/domain/shared"
	"github.com/syncbridge/backend/internal/interfaces/http/dto"
	"github.com/syncbridge/backend/internal/interfaces/http/middleware"
)

// BaseHandler carries the response helpers shared by every handler.
type BaseHandler struct{}

func getRequestID(c *gin.Context) string {
	return c.GetString(middleware.RequestIDKey)
}

// Success sends a 200 response with the standard envelope.
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 response with the standard envelope.
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the given status and code.
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 response.
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 response.
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 response.
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// ValidationError sends a 400 response carrying per-field details.
func (h *BaseHandler) ValidationError(c *gin.Context, details []dto.ValidationDetail) {
	c.JSON(http.StatusBadRequest, dto.NewValidationErrorResponse(
		"Request validation failed",
		getRequestID(c),
		details,
	))
}

// BindJSON binds the request body and, on failure, responds with
// per-field details when the validator produced them, or a plain 400
// for malformed JSON. Returns false when the request was rejected.
func (h *BaseHandler) BindJSON(c *gin.Context, req any) bool {
	err := c.ShouldBindJSON(req)
	if err == nil {
		return true
	}
	if details := middleware.ValidationDetails(err); details != nil {
		h.ValidationError(c, details)
	} else {
		h.BadRequest(c, err.Error())
	}
	return false
}

// integrationErrorStatus maps integration domain sentinels to an HTTP status
// and error code. Unknown errors report as internal.
func integrationErrorStatus(err error) (int, string, bool) {
	switch {
	case errors.Is(err, integration.ErrIntegrationNotFound),
		errors.Is(err, integration.ErrCredentialNotFound),
		errors.Is(err, integration.ErrSyncLogNotFound),
		errors.Is(err, integration.ErrWebhookEventNotFound):
		return http.StatusNotFound, dto.ErrCodeNotFound, true

	case errors.Is(err, integration.ErrDuplicateCredential):
		return http.StatusConflict, dto.ErrCodeAlreadyExists, true

	case errors.Is(err, integration.ErrProviderInvalid),
		errors.Is(err, integration.ErrInvalidSyncFrequency),
		errors.Is(err, integration.ErrCredentialInvalidEnv):
		return http.StatusBadRequest, dto.ErrCodeInvalidInput, true

	case errors.Is(err, integration.ErrProviderNotConfigured):
		return http.StatusNotFound, dto.ErrCodeNotFound, true

	case errors.Is(err, integration.ErrWebhookInvalidSig):
		return http.StatusUnauthorized, dto.ErrCodeUnauthorized, true

	case errors.Is(err, integration.ErrSyncNotPermitted),
		errors.Is(err, integration.ErrIntegrationNotDue),
		errors.Is(err, integration.ErrIntegrationInactive),
		errors.Is(err, integration.ErrCredentialInactive):
		return http.StatusUnprocessableEntity, dto.ErrCodeInvalidState, true

	case errors.Is(err, integration.ErrCredentialUnusable),
		errors.Is(err, integration.ErrNoRefreshToken):
		return http.StatusUnprocessableEntity, dto.ErrCodeProviderAuth, true
	}

	if _, ok := integration.IsAuthentication(err); ok {
		return http.StatusUnprocessableEntity, dto.ErrCodeProviderAuth, true
	}
	if _, ok := integration.IsRateLimit(err); ok {
		return http.StatusUnprocessableEntity, dto.ErrCodeProviderRateLimited, true
	}
	return 0, "", false
}

// HandleError maps an error from the application layer onto the wire:
// integration sentinels first, then shared domain errors, then a
// generic 500 that never leaks internals.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	requestID := getRequestID(c)

	if status, code, ok := integrationErrorStatus(err); ok {
		c.JSON(status, dto.NewErrorResponseWithRequestID(code, err.Error(), requestID))
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		code := dto.NormalizeErrorCode(domainErr.Code)
		c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, domainErr.Message, requestID))
		return
	}

	c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeInternal,
		"An unexpected error occurred",
		requestID,
	))
}
