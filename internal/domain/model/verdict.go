package model

import (
	"fmt"
	"time"
)

// VerdictKind is the outcome of the free-text red/green mode.
type VerdictKind uint8

const (
	VerdictRed VerdictKind = iota + 1
	VerdictGreen
)

// ParseVerdictKind accepts "red" or "green".
func ParseVerdictKind(s string) (VerdictKind, error) {
	switch s {
	case "red":
		return VerdictRed, nil
	case "green":
		return VerdictGreen, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidVerdict, s)
}

func (k VerdictKind) String() string {
	switch k {
	case VerdictRed:
		return "red"
	case VerdictGreen:
		return "green"
	}
	return ""
}

// Verdict records one automatic verdict handed out by the free-text mode.
type Verdict struct {
	ID   string
	Kind VerdictKind
	At   time.Time
}
