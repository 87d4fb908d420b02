// Package common defines shared constants, sentinel errors and small helpers
// used across the members service. Callers should use errors.Is to match the
// error values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrAmbiguous  = errors.New("ambiguous result: more than one row for a unique key")
	ErrConflict   = errors.New("unique constraint conflict")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrThrottled      = errors.New("too many requests")

	// Cache/item errors.
	ErrBackReferenceExpired = errors.New("members database is no longer available")
	ErrDummyUser            = errors.New("dummy user cannot be stored")

	// Token generation/verification errors.
	ErrCryptoFailure = errors.New("crypto failure")
	ErrInvalidToken  = errors.New("invalid token")
	ErrTokenExpired  = errors.New("token expired")
	ErrTokenPending  = errors.New("token still pending")
	ErrTokenConsumed = errors.New("token already consumed")

	// Validation errors.
	ErrInvalidEmail = errors.New("invalid email address")
)
