package stats

import (
	"sort"
	"time"

	"github.com/okian/redflag/internal/domain/model"
)

// Bucket aggregates the sessions sharing one sex × age × category triple.
type Bucket struct {
	Sex         string  `json:"sex"`
	Age         string  `json:"age"`
	Category    string  `json:"category"`
	Sessions    int     `json:"sessions"`
	AvgDuration float64 `json:"avg_duration_seconds"`
	AvgVotes    float64 `json:"avg_votes"`
	// Abandonment maps choices-before-quit to the number of sessions.
	Abandonment map[int]int `json:"abandonment"`

	totalDuration time.Duration
	totalVotes    int
}

// Breakdown is the demographics view.
type Breakdown struct {
	Total      int            `json:"total"`
	BySex      map[string]int `json:"by_sex"`
	ByAge      map[string]int `json:"by_age"`
	ByCategory map[string]int `json:"by_category"`
	Buckets    []Bucket       `json:"buckets"`
}

type bucketKey struct {
	sex, age, category string
}

// Demographics groups sessions by declared axes. Undeclared axes land in the
// "unknown" bucket, so every session is counted exactly once per axis.
func Demographics(sessions []model.Session) Breakdown {
	out := Breakdown{
		BySex:      map[string]int{},
		ByAge:      map[string]int{},
		ByCategory: map[string]int{},
	}
	buckets := map[bucketKey]*Bucket{}

	for i := range sessions {
		s := &sessions[i]
		k := bucketKey{sex: s.Sex.Label(), age: s.Age.Label(), category: s.Category.Label()}
		out.Total++
		out.BySex[k.sex]++
		out.ByAge[k.age]++
		out.ByCategory[k.category]++

		b, ok := buckets[k]
		if !ok {
			b = &Bucket{Sex: k.sex, Age: k.age, Category: k.category, Abandonment: map[int]int{}}
			buckets[k] = b
		}
		b.Sessions++
		b.totalDuration += s.Duration
		b.totalVotes += s.Votes
		b.Abandonment[s.ChoicesBeforeQuit]++
	}

	out.Buckets = make([]Bucket, 0, len(buckets))
	for _, b := range buckets {
		b.AvgDuration = b.totalDuration.Seconds() / float64(b.Sessions)
		b.AvgVotes = float64(b.totalVotes) / float64(b.Sessions)
		out.Buckets = append(out.Buckets, *b)
	}
	sort.Slice(out.Buckets, func(i, j int) bool {
		a, b := out.Buckets[i], out.Buckets[j]
		if a.Sex != b.Sex {
			return a.Sex < b.Sex
		}
		if a.Age != b.Age {
			return a.Age < b.Age
		}
		return a.Category < b.Category
	})
	return out
}
