package errors

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for retry purposes. The distinction between
// connectivity and application failures drives the queue drain policy:
// an unreachable network halts the whole pass, a rejected request only
// fails the one item.
type Kind string

const (
	// KindConnectivity means the transport could not complete the
	// request at all (DNS, connection refused, offline). No response
	// was received.
	KindConnectivity Kind = "connectivity"

	// KindApplication means a response was received but indicated
	// failure (any non-2xx status, including validation errors).
	KindApplication Kind = "application"

	// KindValidation means the input was rejected locally before any
	// network attempt.
	KindValidation Kind = "validation"
)

// APIError is a classified failure from the remote API boundary.
type APIError struct {
	Kind       Kind
	StatusCode int
	Detail     string
	Cause      error
}

func (e *APIError) Error() string {
	switch {
	case e.Detail != "" && e.StatusCode > 0:
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Detail)
	case e.Detail != "":
		return e.Detail
	case e.Cause != nil:
		return fmt.Sprintf("%s failure: %v", e.Kind, e.Cause)
	default:
		return fmt.Sprintf("%s failure", e.Kind)
	}
}

func (e *APIError) Unwrap() error {
	return e.Cause
}

// Connectivity wraps a transport-level error.
func Connectivity(err error) *APIError {
	return &APIError{Kind: KindConnectivity, Cause: err}
}

// Application builds an error for a received non-success response.
func Application(statusCode int, detail string) *APIError {
	if detail == "" {
		detail = fmt.Sprintf("HTTP %d", statusCode)
	}
	return &APIError{Kind: KindApplication, StatusCode: statusCode, Detail: detail}
}

// Validation builds a local pre-flight rejection.
func Validation(detail string) *APIError {
	return &APIError{Kind: KindValidation, Detail: detail}
}

// KindOf extracts the failure kind. Unclassified errors are treated as
// application failures: they did not come from the transport layer, so
// halting the drain on them would wedge the queue.
func KindOf(err error) Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Kind
	}
	return KindApplication
}

// IsConnectivity reports whether err is a transport-level failure.
func IsConnectivity(err error) bool {
	return KindOf(err) == KindConnectivity
}

// IsValidation reports whether err is a local validation rejection.
func IsValidation(err error) bool {
	return KindOf(err) == KindValidation
}

// Detail returns the server-provided failure message when present,
// falling back to the error string.
func Detail(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
