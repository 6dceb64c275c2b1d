package api

import (
	"errors"
	"fmt"
)

// Sentinel kinds for API errors.
var (
	ErrValidation          = errors.New("validation failed")
	ErrUnauthorized        = errors.New("invalid signature")
	ErrMissingSignature    = errors.New("missing signature header")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrServerMisconfigured = errors.New("webhook secret not configured")
	ErrStorage             = errors.New("session storage failed")
)

// NewKind tags a sentinel with the operation that raised it.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// WrapKind tags a sentinel and its underlying cause.
func WrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}
