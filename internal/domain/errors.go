package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency.

var (
	// Upstream errors. Every remote failure is this one condition, whatever the
	// status code or transport problem behind it.
	ErrRequestFailed = errors.New("request failed")

	// Input errors
	ErrInvalidAmount = errors.New("amount must be a positive number")
	ErrInvalidTerm   = errors.New("unsupported loan term")
	ErrEmptyPurpose  = errors.New("loan purpose is required")

	// Confirmation errors
	ErrPreviewNotFound = errors.New("preview not found")
	ErrPreviewConsumed = errors.New("preview already used")
	ErrPreviewExpired  = errors.New("preview expired")
	ErrPreviewMismatch = errors.New("preview does not match command")

	// Session errors
	ErrNoSession = errors.New("no session")
	ErrWrongRole = errors.New("session role not allowed here")

	// Lookup errors
	ErrApplicationNotFound = errors.New("application not found")
	ErrUnknownSource       = errors.New("unknown data source")
)
