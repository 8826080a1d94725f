package model

import "fmt"

// Segment names a population slice carrying its own rating. The set is
// closed: ratings are indexed by Segment, never by a free-form string.
type Segment uint8

const (
	SegmentGlobal Segment = iota
	SegmentHomme
	SegmentFemme
	SegmentAgeUnder18
	SegmentAge18To24
	SegmentAge25To34
	SegmentAge35To44
	SegmentAge45Plus

	SegmentCount = int(SegmentAge45Plus) + 1
)

var segmentNames = [SegmentCount]string{
	SegmentGlobal:     "global",
	SegmentHomme:      "homme",
	SegmentFemme:      "femme",
	SegmentAgeUnder18: "age_-18",
	SegmentAge18To24:  "age_18-24",
	SegmentAge25To34:  "age_25-34",
	SegmentAge35To44:  "age_35-44",
	SegmentAge45Plus:  "age_45+",
}

// Segments lists every segment in declaration order.
func Segments() []Segment {
	out := make([]Segment, SegmentCount)
	for i := range out {
		out[i] = Segment(i)
	}
	return out
}

// ParseSegment maps a segment name back to its value.
func ParseSegment(s string) (Segment, error) {
	for i, name := range segmentNames {
		if name == s {
			return Segment(i), nil
		}
	}
	return SegmentGlobal, fmt.Errorf("%w: %q", ErrInvalidSegment, s)
}

// Valid reports whether s is one of the declared segments.
func (s Segment) Valid() bool { return int(s) < SegmentCount }

func (s Segment) String() string {
	if s.Valid() {
		return segmentNames[s]
	}
	return fmt.Sprintf("segment(%d)", uint8(s))
}

func (s Segment) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Segment) UnmarshalText(b []byte) error {
	v, err := ParseSegment(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
