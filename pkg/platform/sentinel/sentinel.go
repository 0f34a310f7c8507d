package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into domain errors:
//   - ErrNotFound: no record matched the filter
//   - ErrConflict: a uniqueness constraint rejected the write
//   - ErrExpired: a token or window has elapsed
//   - ErrInvalidState: record is in the wrong state for the operation
//   - ErrUnavailable: the backing store is temporarily unreachable
//
// Validation failures use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
