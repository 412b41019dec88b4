package domain

import "errors"

// Sentinel errors for the write-side taxonomy. Read-side misses return
// empty results, not errors; only invalid requests reject.
var (
	ErrNotFound       = errors.New("not found")
	ErrUnknownStop    = errors.New("unknown stop")
	ErrUnknownRoute   = errors.New("unknown route")
	ErrMissingVehicle = errors.New("missing vehicle reference")
	ErrValidation     = errors.New("invalid request")
)
