package session

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for use with errors.Is().
var (
	// ErrValidation is returned when input is rejected before any network call.
	ErrValidation = errors.New("validation failed")

	// ErrAuth is returned when the backend rejects a login or registration.
	ErrAuth = errors.New("authentication rejected")

	// ErrSessionExpired is returned when the token expired or could not be refreshed.
	ErrSessionExpired = errors.New("session expired")

	// ErrNetwork is returned when the backend could not be reached or timed out.
	ErrNetwork = errors.New("network failure")

	// ErrUnauthenticated is returned for a 401 that survived the refresh retry.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrClient is returned for 4xx responses.
	ErrClient = errors.New("request rejected")

	// ErrServer is returned for 5xx responses.
	ErrServer = errors.New("server error")
)

// ValidationError reports a single invalid input field.
type ValidationError struct {
	// Field is the name of the offending field.
	Field string
	// Message is the user-facing explanation.
	Message string
}

// Error returns the validation message.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is supports errors.Is(err, ErrValidation).
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// AuthError is returned when login or registration fails.
type AuthError struct {
	// Op is "login" or "register".
	Op string
	// Message is the human-readable reason shown to the user.
	Message string
	// Cause is the underlying adapter error.
	Cause error
}

// Error returns the error message.
func (e *AuthError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Unwrap returns the underlying error.
func (e *AuthError) Unwrap() error {
	return e.Cause
}

// Is supports errors.Is(err, ErrAuth).
func (e *AuthError) Is(target error) bool {
	return target == ErrAuth
}

// SessionExpiredError is returned when a refresh failed and the session was dropped.
// Cause carries the original failure, typically the 401 that triggered the refresh.
type SessionExpiredError struct {
	Cause error
}

// Error returns the error message.
func (e *SessionExpiredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("session expired: %v", e.Cause)
	}
	return "session expired"
}

// Unwrap returns the original failure.
func (e *SessionExpiredError) Unwrap() error {
	return e.Cause
}

// Is supports errors.Is(err, ErrSessionExpired).
func (e *SessionExpiredError) Is(target error) bool {
	return target == ErrSessionExpired
}

// NetworkError is returned when no interpretable response was received.
type NetworkError struct {
	// Op describes the request, e.g. "GET /api/profile".
	Op string
	// Cause is the transport error.
	Cause error
}

// Error returns the error message.
func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network failure: %v", e.Op, e.Cause)
}

// Unwrap returns the transport error.
func (e *NetworkError) Unwrap() error {
	return e.Cause
}

// Is supports errors.Is(err, ErrNetwork).
func (e *NetworkError) Is(target error) bool {
	return target == ErrNetwork
}

// ClientError is a 4xx response from the backend.
type ClientError struct {
	// Status is the HTTP status code.
	Status int
	// Message is extracted from the response body when present.
	Message string
}

// Error returns the error message.
func (e *ClientError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
	}
	return fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status))
}

// Is supports errors.Is(err, ErrClient) and, for 401, errors.Is(err, ErrUnauthenticated).
func (e *ClientError) Is(target error) bool {
	switch target {
	case ErrClient:
		return true
	case ErrUnauthenticated:
		return e.Status == http.StatusUnauthorized
	}
	return false
}

// ServerError is a 5xx response from the backend.
type ServerError struct {
	Status  int
	Message string
}

// Error returns the error message.
func (e *ServerError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
	}
	return fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status))
}

// Is supports errors.Is(err, ErrServer).
func (e *ServerError) Is(target error) bool {
	return target == ErrServer
}

// Message extracts the human-readable message for err.
// Backend-supplied messages and validation messages are preferred; anything
// else, including transport failures, yields fallback.
func Message(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var ve *ValidationError
	if errors.As(err, &ve) && ve.Message != "" {
		return ve.Message
	}
	var ae *AuthError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	var ce *ClientError
	if errors.As(err, &ce) && ce.Message != "" {
		return ce.Message
	}
	var se *ServerError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}
	return fallback
}
