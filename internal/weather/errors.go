package weather

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig marks missing or invalid connection settings.
var ErrInvalidConfig = errors.New("invalid connection config")

// ProviderError is a structured error body returned by the provider, such as
// an unknown city or a rejected API key.
type ProviderError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error (status %d, cod %d): %s", e.StatusCode, e.Code, e.Message)
}

// TransportError wraps failures where no response arrived at all, including
// an open circuit breaker.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "transport error: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// UnexpectedResponseError is a response that is neither a weather document nor
// a structured provider error.
type UnexpectedResponseError struct {
	StatusCode int
	Message    string
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("unexpected response (status %d): %s", e.StatusCode, e.Message)
}
