// Package playtest drives a running redflag server with simulated players:
// each player pulls duels, votes, occasionally retries a vote and flushes its
// session, then the runner checks the read side agrees with what was sent.
package playtest

import (
	"time"

	"github.com/okian/redflag/pkg/logger"
)

// Config holds configuration for a playtest run.
type Config struct {
	BaseURL    string        // Base URL of the service
	Players    int           // Number of simulated players
	Duels      int           // Maximum duels per player
	Workers    int           // Players running at once
	Category   string        // Optional category filter for every player
	RetryEvery int           // Every n-th vote is sent twice with the same vote id; 0 disables
	FlushEvery int           // Flush the session every n votes; the final flush always happens
	Settle     time.Duration // Time allowed for queued flushes to reach the buffer
	Timeout    time.Duration // HTTP request timeout
	Seed       int64         // RNG seed; 0 picks one from the clock
	Verbose    bool          // Enable verbose logging
	Logger     logger.Logger // Defaults to a no-op logger
}

// Stats holds run statistics.
type Stats struct {
	Players       int
	DuelsServed   int
	Exhausted     int
	VotesAccepted int
	VotesRetried  int
	Duplicates    int
	VotesFailed   int
	Flushes       int
	FlushesQueued int
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
}

func (s *Stats) add(o Stats) {
	s.Players += o.Players
	s.DuelsServed += o.DuelsServed
	s.Exhausted += o.Exhausted
	s.VotesAccepted += o.VotesAccepted
	s.VotesRetried += o.VotesRetried
	s.Duplicates += o.Duplicates
	s.VotesFailed += o.VotesFailed
	s.Flushes += o.Flushes
	s.FlushesQueued += o.FlushesQueued
}

type element struct {
	ID       int64  `json:"id"`
	Text     string `json:"text"`
	Category string `json:"category"`
}

type duelRequest struct {
	SeenDuels string `json:"seen_duels"`
	Category  string `json:"category,omitempty"`
}

type duelResponse struct {
	Exhausted bool     `json:"exhausted"`
	ElementA  *element `json:"element_a"`
	ElementB  *element `json:"element_b"`
	Played    int      `json:"played"`
	SeenDuels string   `json:"seen_duels"`
}

type voteRequest struct {
	VoteID   string `json:"vote_id"`
	WinnerID int64  `json:"winner_element_id"`
	LoserID  int64  `json:"loser_element_id"`
	Sex      string `json:"voter_sex,omitempty"`
	Age      string `json:"voter_age_bracket,omitempty"`
}

type voteResponse struct {
	VoteID    string `json:"vote_id"`
	Duplicate bool   `json:"duplicate"`
}

type gameEntry struct {
	Game string    `json:"game"`
	At   time.Time `json:"at"`
}

type flushRequest struct {
	SessionID         string      `json:"session_id"`
	StartedAt         time.Time   `json:"started_at"`
	Duration          float64     `json:"duration"`
	PageViews         []string    `json:"page_views"`
	GameEntries       []gameEntry `json:"game_entries"`
	Votes             int         `json:"votes"`
	AIRequests        int         `json:"ai_requests"`
	ChoicesBeforeQuit int         `json:"choices_before_quit"`
	Category          string      `json:"category,omitempty"`
	Sex               string      `json:"sex,omitempty"`
	Age               string      `json:"age,omitempty"`
	FlushedAt         time.Time   `json:"flushed_at"`
}

type publicStats struct {
	Votes struct {
		Total int `json:"total"`
	} `json:"votes"`
	Participation struct {
		Sessions     int `json:"sessions"`
		SessionVotes int `json:"session_votes"`
	} `json:"participation"`
}
