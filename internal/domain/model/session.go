package model

import "time"

// GameEntry records when a session entered a game mode.
type GameEntry struct {
	Game string    `json:"game"`
	At   time.Time `json:"at"`
}

// Session is one visiting session's cumulative activity as last flushed
// by the client. Every flush carries the full state.
type Session struct {
	ID                string
	StartedAt         time.Time
	Duration          time.Duration
	PageViews         []string
	GameEntries       []GameEntry
	Votes             int
	AIRequests        int
	ChoicesBeforeQuit int
	Category          Category
	Sex               Sex
	Age               AgeBracket
	FlushedAt         time.Time
}

// Clone returns a deep copy so buffered records never alias caller slices.
func (s Session) Clone() Session {
	out := s
	if s.PageViews != nil {
		out.PageViews = append([]string(nil), s.PageViews...)
	}
	if s.GameEntries != nil {
		out.GameEntries = append([]GameEntry(nil), s.GameEntries...)
	}
	return out
}
