// Package errors provides centralized error definitions for the application.
// Errors are organized by domain to avoid duplication and provide consistent naming.
//
// Naming conventions:
//   - Exported errors (Err*): Use for errors that callers need to check with errors.Is
//   - All sentinel errors should be defined as variables, not inline errors.New calls
//   - Use fmt.Errorf with %w to wrap sentinel errors with context
package errors

import "errors"

// Entity resolution errors.
var (
	// ErrNotFound is a generic not found error.
	ErrNotFound = errors.New("not found")

	// ErrFeedNotFound indicates a processed feed could not be found.
	ErrFeedNotFound = errors.New("processed feed not found")

	// ErrAlreadyExists indicates a uniqueness conflict on insert.
	ErrAlreadyExists = errors.New("already exists")
)

// Summarization client errors.
var (
	// ErrClientDisabled indicates summarization is unconfigured or globally
	// switched off; callers treat it as a deliberate no-op, not a failure.
	ErrClientDisabled = errors.New("summarization client disabled")

	// ErrCircuitBreakerOpen indicates the circuit breaker has tripped and requests are blocked.
	ErrCircuitBreakerOpen = errors.New("circuit breaker is open")

	// ErrEmptyResponse indicates an empty completion was received.
	ErrEmptyResponse = errors.New("empty response")
)

// Validation errors.
var (
	// ErrInvalidFilterValue indicates a filter rule failed write-time validation.
	ErrInvalidFilterValue = errors.New("invalid filter value")

	// ErrInvalidMembership indicates a processed feed without any source or tag.
	ErrInvalidMembership = errors.New("processed feed needs at least one feed or tag")

	// ErrNoOutput indicates a processed feed with neither entries nor digest enabled.
	ErrNoOutput = errors.New("processed feed must include entries or enable digest")
)

// Fetch errors.
var (
	// ErrFeedFetchFailed indicates a source feed returned a non-2xx/304 status.
	ErrFeedFetchFailed = errors.New("feed fetch failed")
)

// Is is a convenience wrapper around errors.Is.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a convenience wrapper around errors.As.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
