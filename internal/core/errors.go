package core

import "errors"

// Admission errors terminate the whole turn before any provider is called.
var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("not approved")
	ErrQuotaExceeded   = errors.New("daily quota exceeded")
	ErrInvalidInput    = errors.New("invalid input")
	ErrSystem          = errors.New("internal system error")
	ErrUserNotFound    = errors.New("user not found")
)

// Provider errors are scoped to a single stream handle.
var (
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrProviderRateLimited = errors.New("system busy")
	ErrProviderUnknown     = errors.New("provider error")
)
