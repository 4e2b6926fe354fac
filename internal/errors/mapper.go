package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// MapHostError maps raw host API failures onto the curator taxonomy.
func MapHostError(err error) error {
	if err == nil {
		return nil
	}

	// Propagate context errors as-is
	if errors.Is(err, context.Canceled) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("host call timeout: %w", ErrHost)
	}

	errStr := strings.ToLower(err.Error())

	switch {
	case strings.Contains(errStr, "no tab with id"), strings.Contains(errStr, "not found"), strings.Contains(errStr, "does not exist"):
		return fmt.Errorf("tab gone: %w", ErrNotFound)

	case strings.Contains(errStr, "not supported"), strings.Contains(errStr, "unavailable"), strings.Contains(errStr, "no such capability"):
		return fmt.Errorf("capability missing: %w", ErrAPIUnavailable)

	case strings.Contains(errStr, "invalid"), strings.Contains(errStr, "malformed"):
		return fmt.Errorf("host rejected input: %w", ErrInvalidArgument)

	default:
		return fmt.Errorf("host call failed: %w", ErrHost)
	}
}

// IsRetryable reports whether an error is a transient host failure.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	return errors.Is(err, ErrHost)
}

// Category returns the taxonomy name for an error, for logging.
func Category(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidArgument):
		return "InvalidArgument"
	case errors.Is(err, ErrAPIUnavailable):
		return "ApiUnavailable"
	case errors.Is(err, ErrInvalidTabData):
		return "InvalidTabData"
	case errors.Is(err, ErrNotFound):
		return "NotFound"
	case errors.Is(err, ErrHost):
		return "HostError"
	case errors.Is(err, ErrInternal):
		return "Internal"
	default:
		return "Unknown"
	}
}

// Wrap wraps an error with context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsCategory checks if error belongs to a specific category.
func IsCategory(err error, category error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, category)
}

// InvalidArgument wraps a message as an invalid-argument error.
func InvalidArgument(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInvalidArgument)
}

// APIUnavailable wraps a message as a missing-capability error.
func APIUnavailable(message string) error {
	return fmt.Errorf("%s: %w", message, ErrAPIUnavailable)
}

// NotFound wraps a message as a not-found error.
func NotFound(message string) error {
	return fmt.Errorf("%s: %w", message, ErrNotFound)
}

// InvalidTabData wraps a message as an invalid-tab-data error.
func InvalidTabData(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInvalidTabData)
}

// Host wraps a message as a host failure.
func Host(message string) error {
	return fmt.Errorf("%s: %w", message, ErrHost)
}

// Internal wraps a message as an internal error.
func Internal(message string) error {
	return fmt.Errorf("%s: %w", message, ErrInternal)
}
