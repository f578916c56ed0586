package detection

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Sentinel errors for common conditions.
var (
	// ErrEmptyImage is returned when an upload carries no bytes.
	ErrEmptyImage = errors.New("detection: empty image")

	// ErrMalformedResponse is returned when the backend body cannot be
	// decoded into detections.
	ErrMalformedResponse = errors.New("detection: malformed response")

	// ErrTransport wraps network failures, including timeouts.
	ErrTransport = errors.New("detection: transport failure")

	// ErrNoDetectors is returned by an empty Chain.
	ErrNoDetectors = errors.New("detection: no detectors configured")
)

// APIError is a non-2xx response from the detection backend.
type APIError struct {
	// StatusCode is the HTTP status code.
	StatusCode int

	// Message is the response body, trimmed.
	Message string

	// RequestID of the failed upload.
	RequestID string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("detection: backend returned %d", e.StatusCode)
	}
	return fmt.Sprintf("detection: backend returned %d: %s", e.StatusCode, e.Message)
}

// IsServerError returns true for HTTP 5xx.
func (e *APIError) IsServerError() bool {
	return e.StatusCode >= 500 && e.StatusCode < 600
}

// IsClientError returns true for HTTP 4xx.
func (e *APIError) IsClientError() bool {
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// Reason classifies why a detect call failed.
type Reason string

const (
	ReasonTransport Reason = "transport"
	ReasonTimeout   Reason = "timeout"
	ReasonServer    Reason = "server"
	ReasonMalformed Reason = "malformed"
	ReasonCanceled  Reason = "canceled"
	ReasonInvalid   Reason = "invalid"
)

// FailureReason classifies err. It returns "" for a nil error.
func FailureReason(err error) Reason {
	if err == nil {
		return ""
	}

	var apiErr *APIError
	var netErr net.Error

	switch {
	case errors.Is(err, context.Canceled):
		return ReasonCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ReasonTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		return ReasonTimeout
	case errors.As(err, &apiErr):
		return ReasonServer
	case errors.Is(err, ErrMalformedResponse):
		return ReasonMalformed
	case errors.Is(err, ErrEmptyImage):
		return ReasonInvalid
	default:
		return ReasonTransport
	}
}

// Failure is the typed failure surfaced to the session state.
type Failure struct {
	Reason  Reason `json:"reason"`
	Message string `json:"message"`
}

// NewFailure builds a Failure from err, or returns nil for a nil error.
func NewFailure(err error) *Failure {
	if err == nil {
		return nil
	}
	return &Failure{Reason: FailureReason(err), Message: err.Error()}
}

// ChainError aggregates errors from every detector in a chain.
type ChainError struct {
	Errors []error
}

// Error implements the error interface.
func (e *ChainError) Error() string {
	if len(e.Errors) == 0 {
		return "detection chain: no errors recorded"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("detection chain: %v", e.Errors[0])
	}
	return fmt.Sprintf("detection chain: all %d detectors failed, last error: %v",
		len(e.Errors), e.Errors[len(e.Errors)-1])
}

// Unwrap returns the last error in the chain.
func (e *ChainError) Unwrap() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e.Errors[len(e.Errors)-1]
}
