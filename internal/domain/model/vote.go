package model

import "time"

// Vote is one player's choice between two elements. Immutable once recorded.
type Vote struct {
	ID       string
	WinnerID int64
	LoserID  int64
	Sex      Sex
	Age      AgeBracket
	At       time.Time
}

// Validate rejects self-referential duels.
func (v Vote) Validate() error {
	if v.WinnerID == v.LoserID {
		return ErrSelfDuel
	}
	return nil
}

// Segments returns the segments this vote updates: always global, plus one
// per declared axis.
func (v Vote) Segments() []Segment {
	segs := make([]Segment, 0, 3)
	segs = append(segs, SegmentGlobal)
	if s, ok := v.Sex.Segment(); ok {
		segs = append(segs, s)
	}
	if s, ok := v.Age.Segment(); ok {
		segs = append(segs, s)
	}
	return segs
}

// VoteTally counts the votes sharing a winner category and voter axes.
type VoteTally struct {
	Category Category
	Sex      Sex
	Age      AgeBracket
	Votes    int
}
