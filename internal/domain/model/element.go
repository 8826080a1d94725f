// Package model contains domain models passed between layers.
package model

// DefaultBaseRating is the rating every segment starts from.
const DefaultBaseRating = 1000.0

// Rating is an element's comparative strength within one segment.
type Rating struct {
	Elo         float64 `json:"elo"`
	Comparisons int     `json:"comparisons"`
}

// Element is a votable text item shown in duels.
type Element struct {
	ID       int64
	Text     string
	Category Category
	Ratings  [SegmentCount]Rating
}

// NewElement returns an element with every segment at base.
func NewElement(id int64, text string, category Category, base float64) Element {
	e := Element{ID: id, Text: text, Category: category}
	for i := range e.Ratings {
		e.Ratings[i] = Rating{Elo: base}
	}
	return e
}

// Rating returns the rating held for segment s.
func (e *Element) Rating(s Segment) Rating {
	if !s.Valid() {
		return Rating{}
	}
	return e.Ratings[s]
}
