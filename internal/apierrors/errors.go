// Package apierrors defines the errors the HTTP API reports to clients.
package apierrors

import (
	"fmt"
	"net/http"
)

// Kind classifies an APIError independently of its HTTP status.
type Kind string

const (
	KindValidation         Kind = "validation_failed"
	KindUnauthorized       Kind = "unauthorized"
	KindInvalidCredentials Kind = "invalid_credentials"
	KindInvalidCode        Kind = "invalid_code"
	KindCodeExpired        Kind = "code_expired"
	KindNotFound           Kind = "not_found"
	KindMethodNotAllowed   Kind = "method_not_allowed"
	KindInternal           Kind = "internal"
)

const fallbackMessage = "Something went wrong"

// APIError is an error with a stable client-facing message and status.
type APIError struct {
	HTTPCode int
	Kind     Kind
	Message  string
	// Fields holds per-field messages for validation failures.
	Fields map[string][]string
	cause  error
}

func (e *APIError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// Is matches another APIError of the same kind.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

func NewErrValidation(fields map[string][]string) *APIError {
	return &APIError{
		HTTPCode: http.StatusUnprocessableEntity,
		Kind:     KindValidation,
		Message:  "Validation failed",
		Fields:   fields,
	}
}

// NewErrEmailIsTaken is a validation failure on the email field.
func NewErrEmailIsTaken() *APIError {
	return NewErrValidation(map[string][]string{
		"email": {"The email has already been taken."},
	})
}

func NewErrMissingAuthorizationToken() *APIError {
	return &APIError{HTTPCode: http.StatusUnauthorized, Kind: KindUnauthorized, Message: "Token not provided"}
}

func NewErrInvalidAuthorizationToken() *APIError {
	return &APIError{HTTPCode: http.StatusUnauthorized, Kind: KindUnauthorized, Message: "Invalid token"}
}

func NewErrInvalidCredentials() *APIError {
	return &APIError{HTTPCode: http.StatusUnauthorized, Kind: KindInvalidCredentials, Message: "Invalid credentials"}
}

func NewErrInvalidCode() *APIError {
	return &APIError{HTTPCode: http.StatusBadRequest, Kind: KindInvalidCode, Message: "Invalid code"}
}

func NewErrCodeExpired() *APIError {
	return &APIError{HTTPCode: http.StatusBadRequest, Kind: KindCodeExpired, Message: "Code expired"}
}

func NewErrRouteNotFound() *APIError {
	return &APIError{HTTPCode: http.StatusNotFound, Kind: KindNotFound, Message: "Route not found"}
}

func NewErrMethodNotAllowed() *APIError {
	return &APIError{HTTPCode: http.StatusMethodNotAllowed, Kind: KindMethodNotAllowed, Message: "Method not allowed"}
}

// NewErrInternalServerError wraps an unexpected error. The message shown to
// clients is the error text, or a generic fallback when it is empty.
func NewErrInternalServerError(err error) *APIError {
	msg := fallbackMessage
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return &APIError{HTTPCode: http.StatusInternalServerError, Kind: KindInternal, Message: msg, cause: err}
}
