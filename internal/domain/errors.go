package domain

import "errors"

var (
	// ErrAuthRejected means the presented credential is missing, unknown,
	// or revoked. Surfaced to the client as a connection refusal, never
	// logged as a system fault.
	ErrAuthRejected = errors.New("credential rejected")

	// ErrDuplicateSession means the same session identity was added to the
	// registry twice. Defensive invariant - fatal for that admission only.
	ErrDuplicateSession = errors.New("session already registered")

	ErrTokenNotFound = errors.New("token not found")
	ErrPriceNotFound = errors.New("price not found")
)
