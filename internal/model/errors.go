package model

import (
	"errors"
	"fmt"
)

// ErrorKind classifies an outbound API failure into a closed taxonomy.
type ErrorKind string

const (
	KindTimeout     ErrorKind = "timeout"
	KindRateLimited ErrorKind = "rate_limited"
	KindServer      ErrorKind = "server"
	KindClient      ErrorKind = "client"
	KindUnknown     ErrorKind = "unknown"
)

// Retryable reports whether a failure of this kind may succeed on a later attempt.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindTimeout, KindRateLimited, KindServer:
		return true
	}
	return false
}

// Terminal credential states. ErrReauthRequired means the refresh token is dead
// and the integration must be reconnected out of band.
var (
	ErrCredentialsNotFound = errors.New("credentials not found")
	ErrReauthRequired      = errors.New("reauthorization required")
	ErrRefreshTimeout      = errors.New("credential refresh timed out")
)

// APIError represents a classified failure from the ledger API
type APIError struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
	Body       string
	Cause      error
}

func (e *APIError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("ledger api error [%s] status=%d: %s", e.Kind, e.StatusCode, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("ledger api error [%s]: %s (%v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("ledger api error [%s]: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// Retryable reports whether the underlying failure class is retryable.
func (e *APIError) Retryable() bool {
	return e.Kind.Retryable()
}

// NewAPIError creates a new classified API error
func NewAPIError(kind ErrorKind, statusCode int, message string, cause error) *APIError {
	return &APIError{
		Kind:       kind,
		StatusCode: statusCode,
		Message:    message,
		Cause:      cause,
	}
}

// ValidationError represents a posting-correction field violation
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
