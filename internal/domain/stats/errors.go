package stats

import "errors"

// ErrInvalidRange is returned when an admin range ends before it starts.
var ErrInvalidRange = errors.New("invalid stats range")
