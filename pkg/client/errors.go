package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the fetcher.
var (
	// ErrRetryExhausted is returned when all retry attempts are exhausted.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during retry.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrInvalidURL is returned for URLs that are not absolute http(s) URLs.
	ErrInvalidURL = errors.New("invalid image url")
)

// ErrorClass represents a classification of fetch failures.
type ErrorClass string

const (
	// ErrorClassTransport represents connection, DNS and timeout errors.
	ErrorClassTransport ErrorClass = "transport"

	// ErrorClassStatus represents responses outside 200-299.
	ErrorClassStatus ErrorClass = "status"

	// ErrorClassEmptyBody represents 2xx responses without a body.
	ErrorClassEmptyBody ErrorClass = "empty_body"

	// ErrorClassContentType represents responses declaring a non-image content type.
	ErrorClassContentType ErrorClass = "content_type"

	// ErrorClassTooLarge represents bodies above the configured size limit.
	ErrorClassTooLarge ErrorClass = "too_large"
)

// FetchError describes why an origin response was rejected.
// It never crosses Client.Get; it is logged and counted.
type FetchError struct {
	URL         string
	StatusCode  int
	ContentType string
	ErrorClass  ErrorClass
	Err         error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	switch e.ErrorClass {
	case ErrorClassStatus:
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
	case ErrorClassContentType:
		return fmt.Sprintf("fetch %s: non-image content type %q", e.URL, e.ContentType)
	case ErrorClassEmptyBody:
		return fmt.Sprintf("fetch %s: empty body", e.URL)
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %s error: %v", e.URL, e.ErrorClass, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s error", e.URL, e.ErrorClass)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// classOf extracts the ErrorClass of err, or "" if err is not a FetchError.
func classOf(err error) ErrorClass {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.ErrorClass
	}
	return ""
}

// shouldRetry determines if a failure is worth another attempt.
func shouldRetry(err error) bool {
	var fe *FetchError
	if !errors.As(err, &fe) {
		return false
	}
	switch fe.ErrorClass {
	case ErrorClassTransport:
		return true
	case ErrorClassStatus:
		// Only 5xx and 429 can change on their own
		return fe.StatusCode >= 500 || fe.StatusCode == 429
	default:
		// Validation failures are deterministic for a given response
		return false
	}
}
