package duel

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// DefaultMaxSeenChars caps the serialized seen-duels encoding.
const DefaultMaxSeenChars = 10_000

// Sentinel kinds for malformed seen-duels input.
var (
	ErrSeenTooLarge  = errors.New("seen duels encoding exceeds size cap")
	ErrMalformedSeen = errors.New("malformed seen duels encoding")
)

const (
	pairSep = ","
	idSep   = "-"
)

// Pair is an unordered duel, stored with Lo < Hi.
type Pair struct {
	Lo, Hi int64
}

// PairOf normalizes two element ids into a Pair.
func PairOf(a, b int64) Pair {
	if b < a {
		a, b = b, a
	}
	return Pair{Lo: a, Hi: b}
}

func (p Pair) String() string {
	return strconv.FormatInt(p.Lo, 10) + idSep + strconv.FormatInt(p.Hi, 10)
}

// Seen is the set of pairs already shown in one session. Its wire form is
// "lo-hi,lo-hi,..." in the order pairs were shown.
type Seen struct {
	order []Pair
	set   map[Pair]struct{}
	size  int // length of Encode()
}

// NewSeen returns an empty set.
func NewSeen() *Seen {
	return &Seen{set: make(map[Pair]struct{})}
}

// ParseSeen decodes a seen-duels encoding. Input longer than maxChars is
// rejected outright; it is never truncated.
func ParseSeen(encoded string, maxChars int) (*Seen, error) {
	if maxChars > 0 && len(encoded) > maxChars {
		return nil, fmt.Errorf("%w: %d > %d chars", ErrSeenTooLarge, len(encoded), maxChars)
	}
	s := NewSeen()
	if strings.TrimSpace(encoded) == "" {
		return s, nil
	}
	for _, tok := range strings.Split(encoded, pairSep) {
		a, b, ok := strings.Cut(strings.TrimSpace(tok), idSep)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMalformedSeen, tok)
		}
		lo, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformedSeen, tok)
		}
		hi, err := strconv.ParseInt(b, 10, 64)
		if err != nil || lo == hi {
			return nil, fmt.Errorf("%w: %q", ErrMalformedSeen, tok)
		}
		s.add(PairOf(lo, hi))
	}
	return s, nil
}

// Contains reports whether the pair was shown, in either order.
func (s *Seen) Contains(a, b int64) bool {
	_, ok := s.set[PairOf(a, b)]
	return ok
}

// Len is the number of duels already played.
func (s *Seen) Len() int { return len(s.order) }

// Size is the length of the encoding in characters.
func (s *Seen) Size() int { return s.size }

// Fits reports whether adding p keeps the encoding within maxChars.
func (s *Seen) Fits(p Pair, maxChars int) bool {
	if maxChars <= 0 {
		return true
	}
	return s.grownSize(p) <= maxChars
}

// Add records a pair. Adding a known pair is a no-op.
func (s *Seen) Add(a, b int64) {
	s.add(PairOf(a, b))
}

func (s *Seen) add(p Pair) {
	if _, ok := s.set[p]; ok {
		return
	}
	s.size = s.grownSize(p)
	s.set[p] = struct{}{}
	s.order = append(s.order, p)
}

func (s *Seen) grownSize(p Pair) int {
	n := s.size + len(p.String())
	if len(s.order) > 0 {
		n += len(pairSep)
	}
	return n
}

// Encode returns the wire form.
func (s *Seen) Encode() string {
	var b strings.Builder
	b.Grow(s.size)
	for i, p := range s.order {
		if i > 0 {
			b.WriteString(pairSep)
		}
		b.WriteString(p.String())
	}
	return b.String()
}
