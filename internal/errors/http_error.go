package errors

import "net/http"

// HTTPError represents an error with an associated HTTP status code.
type HTTPError struct {
	Code    int
	Message string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTPError with the given code and message.
func NewHTTPError(code int, message string) *HTTPError {
	return &HTTPError{
		Code:    code,
		Message: message,
	}
}

// Helpers for common errors
var (
	ErrUnauthorized = func(msg string) *HTTPError { return NewHTTPError(http.StatusUnauthorized, msg) }

	// Validation: missing or malformed input.
	Validation = func(msg string) *HTTPError { return NewHTTPError(http.StatusBadRequest, msg) }
	// NotFound: referenced entity absent.
	NotFound = func(msg string) *HTTPError { return NewHTTPError(http.StatusNotFound, msg) }
	// Conflict: slot no longer available or already booked. Kept at 400
	// with a generic message so callers cannot tell which concurrent
	// actor won the slot.
	Conflict = func(msg string) *HTTPError { return NewHTTPError(http.StatusBadRequest, msg) }
	// Authorization: wrong actor for the operation.
	Authorization = func(msg string) *HTTPError { return NewHTTPError(http.StatusForbidden, msg) }
	// Dependency: datastore or payment processor failure.
	Dependency = func(msg string) *HTTPError { return NewHTTPError(http.StatusInternalServerError, msg) }
	// Configuration: required secret or setting missing.
	Configuration = func(msg string) *HTTPError { return NewHTTPError(http.StatusInternalServerError, msg) }
)
