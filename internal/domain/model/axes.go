package model

import "fmt"

// Unknown is the bucket label used for an absent demographic axis.
const Unknown = "unknown"

// Sex is the voter's self-reported sex. The zero value means "not declared".
type Sex uint8

const (
	SexUnknown Sex = iota
	SexHomme
	SexFemme
)

var sexNames = [...]string{SexUnknown: "", SexHomme: "homme", SexFemme: "femme"}

// ParseSex maps a wire value to a Sex. The empty string is SexUnknown.
func ParseSex(s string) (Sex, error) {
	for i, name := range sexNames {
		if name == s {
			return Sex(i), nil
		}
	}
	return SexUnknown, fmt.Errorf("%w: %q", ErrInvalidSex, s)
}

func (s Sex) String() string {
	if int(s) < len(sexNames) {
		return sexNames[s]
	}
	return ""
}

// Label returns the aggregation bucket name, "unknown" when undeclared.
func (s Sex) Label() string {
	if s == SexUnknown {
		return Unknown
	}
	return s.String()
}

// Segment returns the rating segment matching this sex, if declared.
func (s Sex) Segment() (Segment, bool) {
	switch s {
	case SexHomme:
		return SegmentHomme, true
	case SexFemme:
		return SegmentFemme, true
	}
	return SegmentGlobal, false
}

func (s Sex) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Sex) UnmarshalText(b []byte) error {
	v, err := ParseSex(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// AgeBracket is the voter's self-reported age range. The zero value means "not declared".
type AgeBracket uint8

const (
	AgeUnknown AgeBracket = iota
	AgeUnder18
	Age18To24
	Age25To34
	Age35To44
	Age45Plus
)

var ageNames = [...]string{
	AgeUnknown: "",
	AgeUnder18: "-18",
	Age18To24:  "18-24",
	Age25To34:  "25-34",
	Age35To44:  "35-44",
	Age45Plus:  "45+",
}

// ParseAgeBracket maps a wire value to an AgeBracket. The empty string is AgeUnknown.
func ParseAgeBracket(s string) (AgeBracket, error) {
	for i, name := range ageNames {
		if name == s {
			return AgeBracket(i), nil
		}
	}
	return AgeUnknown, fmt.Errorf("%w: %q", ErrInvalidAge, s)
}

func (a AgeBracket) String() string {
	if int(a) < len(ageNames) {
		return ageNames[a]
	}
	return ""
}

// Label returns the aggregation bucket name, "unknown" when undeclared.
func (a AgeBracket) Label() string {
	if a == AgeUnknown {
		return Unknown
	}
	return a.String()
}

// Segment returns the rating segment matching this bracket, if declared.
func (a AgeBracket) Segment() (Segment, bool) {
	switch a {
	case AgeUnder18:
		return SegmentAgeUnder18, true
	case Age18To24:
		return SegmentAge18To24, true
	case Age25To34:
		return SegmentAge25To34, true
	case Age35To44:
		return SegmentAge35To44, true
	case Age45Plus:
		return SegmentAge45Plus, true
	}
	return SegmentGlobal, false
}

func (a AgeBracket) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *AgeBracket) UnmarshalText(b []byte) error {
	v, err := ParseAgeBracket(string(b))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// Category is the theme an element belongs to. CategoryAll is used as
// "no filter" by readers and as "not declared" on sessions.
type Category uint8

const (
	CategoryAll Category = iota
	CategoryAmour
	CategoryAmitie
	CategoryTravail
	CategoryFamille
)

var categoryNames = [...]string{
	CategoryAll:     "",
	CategoryAmour:   "amour",
	CategoryAmitie:  "amitie",
	CategoryTravail: "travail",
	CategoryFamille: "famille",
}

// Categories lists every concrete category in declaration order.
func Categories() []Category {
	return []Category{CategoryAmour, CategoryAmitie, CategoryTravail, CategoryFamille}
}

// ParseCategory maps a wire value to a Category. The empty string is CategoryAll.
func ParseCategory(s string) (Category, error) {
	for i, name := range categoryNames {
		if name == s {
			return Category(i), nil
		}
	}
	return CategoryAll, fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

func (c Category) String() string {
	if int(c) < len(categoryNames) {
		return categoryNames[c]
	}
	return ""
}

// Label returns the aggregation bucket name, "unknown" when undeclared.
func (c Category) Label() string {
	if c == CategoryAll {
		return Unknown
	}
	return c.String()
}

func (c Category) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

func (c *Category) UnmarshalText(b []byte) error {
	v, err := ParseCategory(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}
