package repository

import "errors"

// Sentinel kinds for store errors.
var (
	// ErrNotFound reports an element id the store does not know.
	ErrNotFound = errors.New("element not found")
	// ErrUnavailable reports a store that could not be reached. Retryable.
	ErrUnavailable = errors.New("store unavailable")
	// ErrDuplicateVote reports a vote id that is already recorded.
	ErrDuplicateVote = errors.New("vote already recorded")
	// ErrInvalidLimit reports a ranking limit below one.
	ErrInvalidLimit = errors.New("invalid ranking limit")
)
