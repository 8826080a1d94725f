package model

import "errors"

// Sentinel kinds for invalid domain input. Callers match with errors.Is.
var (
	ErrSelfDuel        = errors.New("winner and loser must differ")
	ErrInvalidSex      = errors.New("invalid sex")
	ErrInvalidAge      = errors.New("invalid age bracket")
	ErrInvalidCategory = errors.New("invalid category")
	ErrInvalidSegment  = errors.New("invalid segment")
	ErrInvalidVerdict  = errors.New("invalid verdict")
)
