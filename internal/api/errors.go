package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/celerix-dev/celerix-messages/internal/messages"
)

// APIError is the body of every failed request: {"error": {"message": ..., "code": ...}}.
type APIError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// apiError carries the HTTP status and machine-readable code chosen for a failure.
type apiError struct {
	Status int
	Code   string
	Err    error
}

func (e *apiError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Code
}

func (e *apiError) Unwrap() error { return e.Err }

func newAPIError(status int, code string, err error) *apiError {
	return &apiError{Status: status, Code: code, Err: err}
}

var errInvalidQuery = errors.New("invalid query parameter")

// classify maps a service failure onto its HTTP status and code.
func classify(err error) *apiError {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae
	}
	switch {
	case errors.Is(err, messages.ErrInvalidIdentifier):
		return newAPIError(http.StatusBadRequest, "invalid_id", err)
	case errors.Is(err, messages.ErrNoUpdateFields):
		return newAPIError(http.StatusBadRequest, "no_update_fields", err)
	case errors.Is(err, errInvalidQuery):
		return newAPIError(http.StatusBadRequest, "invalid_query", err)
	case errors.Is(err, messages.ErrNotFound):
		return newAPIError(http.StatusNotFound, "not_found", err)
	case errors.Is(err, messages.ErrMissingFields):
		return newAPIError(http.StatusUnprocessableEntity, "missing_fields", err)
	case errors.Is(err, messages.ErrInvalidPayload):
		return newAPIError(http.StatusUnprocessableEntity, "invalid_payload", err)
	case errors.Is(err, messages.ErrStoreUnavailable):
		return newAPIError(http.StatusServiceUnavailable, "store_unavailable", err)
	}
	return newAPIError(http.StatusInternalServerError, "internal", err)
}

func (h *Handler) respondError(c *gin.Context, err error) {
	ae := classify(err)
	if ae.Status >= http.StatusInternalServerError {
		h.log.Error("request failed", "path", c.FullPath(), "status", ae.Status, "error", err)
	}
	_ = c.Error(err)
	c.AbortWithStatusJSON(ae.Status, ErrorEnvelope{Error: APIError{Message: ae.Error(), Code: ae.Code}})
}

// bindingError turns a gin binding failure into an invalid-payload error naming the missing fields.
func bindingError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := lo.Map(verrs, func(fe validator.FieldError, _ int) string {
			return strings.ToLower(fe.Field())
		})
		return fmt.Errorf("%w: missing required fields: %s", messages.ErrInvalidPayload, strings.Join(fields, ", "))
	}
	return fmt.Errorf("%w: %w", messages.ErrInvalidPayload, err)
}
