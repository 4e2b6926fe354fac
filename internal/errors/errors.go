package errors

import (
	"errors"
)

// Sentinel errors for the curator taxonomy
var (
	// ErrInvalidArgument - caller supplied malformed input; never retried, always surfaced
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrAPIUnavailable - host lacks a capability; degrade gracefully, log, continue
	ErrAPIUnavailable = errors.New("api unavailable")

	// ErrHost - the underlying host call rejected; retried only where a retry policy exists
	ErrHost = errors.New("host error")

	// ErrNotFound - tab/session/tag absent; benign in cleanup paths, an error in lookup paths
	ErrNotFound = errors.New("not found")

	// ErrInvalidTabData - host returned a tab record without an id or url
	ErrInvalidTabData = errors.New("invalid tab data")

	// ErrInternal - internal invariant violated
	ErrInternal = errors.New("internal error")
)
