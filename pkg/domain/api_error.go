package common

import (
	"context"
	"encoding/json"
	"net/http"
)

// ErrorContextKey is used to store errors in the request context
type ErrorContextKey struct{}

// SetError stores an error in the request context for the error middleware to handle
func SetError(ctx context.Context, err error) context.Context {
	return context.WithValue(ctx, ErrorContextKey{}, err)
}

// GetError retrieves an error from the request context
func GetError(ctx context.Context) error {
	if err, ok := ctx.Value(ErrorContextKey{}).(error); ok {
		return err
	}
	return nil
}

// APIError represents a structured API error
type APIError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
}

func (e APIError) Error() string {
	return e.Message
}

// NewAPIError creates a new API error
func NewAPIError(statusCode int, code, message string) *APIError {
	return &APIError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
	}
}

// Common API errors, used by the error middleware as fallbacks when no more
// specific domain error is attached to the request context.
var (
	APIErrUnauthorized   = NewAPIError(http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized")
	APIErrForbidden      = NewAPIError(http.StatusForbidden, "FORBIDDEN", "Forbidden")
	APIErrNotFound       = NewAPIError(http.StatusNotFound, "NOT_FOUND", "Resource not found")
	APIErrBadRequest     = NewAPIError(http.StatusBadRequest, "BAD_REQUEST", "Bad request")
	APIErrConflict       = NewAPIError(http.StatusConflict, "CONFLICT", "Resource already exists")
	APIErrInternalServer = NewAPIError(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
)

// ErrorFromString classifies a domain error into an APIError by its concrete
// common.Err* type, falling back to 500 for anything unrecognized. Kept
// named "FromString" to match the teacher's helper name, though it now
// switches on type rather than parsing message text.
func ErrorFromString(err error) *APIError {
	if err == nil {
		return nil
	}

	switch {
	case IsUnauthorizedError(err):
		return NewAPIError(http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
	case IsForbiddenError(err):
		return NewAPIError(http.StatusForbidden, "FORBIDDEN", err.Error())
	case IsNotFoundError(err):
		return NewAPIError(http.StatusNotFound, "NOT_FOUND", err.Error())
	case IsAlreadyExistsError(err):
		return NewAPIError(http.StatusConflict, "DataAlreadyExists", err.Error())
	case IsConflictError(err):
		return NewAPIError(http.StatusConflict, "CONFLICT", err.Error())
	case IsBadRequestError(err), IsInvalidInputError(err):
		return NewAPIError(http.StatusBadRequest, "BAD_REQUEST", err.Error())
	case IsBlockedError(err):
		return NewAPIError(http.StatusUnavailableForLegalReasons, "BLOCKED_ADDRESS", err.Error())
	default:
		return NewAPIError(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", err.Error())
	}
}

// WriteErrorResponse writes an API error as JSON response
func WriteErrorResponse(w http.ResponseWriter, apiErr *APIError) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(apiErr.StatusCode)

	response := map[string]string{
		"code":  apiErr.Code,
		"error": apiErr.Message,
	}

	return json.NewEncoder(w).Encode(response)
}

// WriteSuccessResponse writes a successful response with proper headers
func WriteSuccessResponse(w http.ResponseWriter, data interface{}, statusCode int) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		return json.NewEncoder(w).Encode(data)
	}
	return nil
}
