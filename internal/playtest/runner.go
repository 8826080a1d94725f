package playtest

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/redflag/pkg/logger"
)

// Runner configuration constants.
const (
	PercentageMultiplier = 100
	settlePollInterval   = 100 * time.Millisecond
)

// ErrVerification is returned when the server's read side disagrees with
// what the players sent.
var ErrVerification = errors.New("playtest verification failed")

// Run executes a complete playtest and returns its statistics.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	log := cfg.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.Named("playtest")
	stats := &Stats{StartTime: time.Now()}
	c := newClient(cfg.BaseURL, cfg.Timeout)

	log.Info(ctx, "starting playtest",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("players", cfg.Players),
		logger.Int("duels", cfg.Duels),
		logger.Int("workers", cfg.Workers),
		logger.String("category", cfg.Category))

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, c); err != nil {
		return nil, fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Baseline counters
	var before publicStats
	if _, err := c.get(ctx, "/stats", &before); err != nil {
		return nil, fmt.Errorf("baseline stats: %w", err)
	}

	// Step 3: Play concurrently
	if err := playAll(ctx, c, cfg, stats); err != nil {
		return stats, fmt.Errorf("players failed: %w", err)
	}

	// Step 4: Verify the read side
	if err := verify(ctx, c, cfg, before, stats); err != nil {
		return stats, err
	}
	if cfg.Verbose {
		logTopRanking(ctx, log, c)
	}

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)
	return stats, nil
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, c *client) error {
	code, err := c.get(ctx, "/healthz", nil)
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if code != http.StatusOK {
		return fmt.Errorf("service health check failed with status: %d", code)
	}
	return nil
}

func playAll(ctx context.Context, c *client, cfg *Config, stats *Stats) error {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(cfg.Workers, 1))
	for i := 0; i < cfg.Players; i++ {
		p := newPlayer(c, cfg, seed+int64(i))
		g.Go(func() error {
			st, err := p.play(gctx)
			mu.Lock()
			stats.add(st)
			mu.Unlock()
			return err
		})
	}
	return g.Wait()
}

// verify compares vote totals and buffered sessions against what was sent.
// Flushes are applied asynchronously, so the session count is polled until
// cfg.Settle elapses.
func verify(ctx context.Context, c *client, cfg *Config, before publicStats, stats *Stats) error {
	deadline := time.Now().Add(cfg.Settle)
	for {
		var after publicStats
		if _, err := c.get(ctx, "/stats", &after); err != nil {
			return fmt.Errorf("final stats: %w", err)
		}
		gotVotes := after.Votes.Total - before.Votes.Total
		if gotVotes != stats.VotesAccepted {
			return fmt.Errorf("%w: server counted %d new votes, players cast %d",
				ErrVerification, gotVotes, stats.VotesAccepted)
		}
		if stats.Duplicates != stats.VotesRetried {
			return fmt.Errorf("%w: %d retried votes, %d acknowledged as duplicates",
				ErrVerification, stats.VotesRetried, stats.Duplicates)
		}
		newSessions := after.Participation.Sessions - before.Participation.Sessions
		if newSessions >= stats.Players || after.Participation.Sessions >= sessionCeiling(ctx, c) {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %d sessions buffered, expected %d",
				ErrVerification, newSessions, stats.Players)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(settlePollInterval):
		}
	}
}

// sessionCeiling reads the buffer capacity; a full buffer satisfies the check.
func sessionCeiling(ctx context.Context, c *client) int {
	var svc map[string]any
	if _, err := c.get(ctx, "/service", &svc); err != nil {
		return int(^uint(0) >> 1)
	}
	if n, ok := svc["bufferCapacity"].(float64); ok {
		return int(n)
	}
	return int(^uint(0) >> 1)
}

type rankingEntry struct {
	Rank      int     `json:"rank"`
	ElementID int64   `json:"element_id"`
	Text      string  `json:"text"`
	Rating    float64 `json:"rating"`
}

// logTopRanking logs the global leaderboard after the run.
func logTopRanking(ctx context.Context, log logger.Logger, c *client) {
	var entries []rankingEntry
	if _, err := c.get(ctx, "/ranking?segment=global&limit=10", &entries); err != nil {
		log.Warn(ctx, "ranking unavailable", logger.Error(err))
		return
	}
	for _, e := range entries {
		log.Debug(ctx, "ranking",
			logger.Int("rank", e.Rank),
			logger.Int64("elementID", e.ElementID),
			logger.String("text", e.Text),
			logger.Float64("rating", e.Rating))
	}
}

// displayFinalStats logs the final run statistics.
func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	var successRate, votesPerSecond float64
	if attempted := stats.VotesAccepted + stats.VotesFailed; attempted > 0 {
		successRate = float64(stats.VotesAccepted) / float64(attempted) * PercentageMultiplier
	}
	if stats.Duration > 0 {
		votesPerSecond = float64(stats.VotesAccepted) / stats.Duration.Seconds()
	}

	log.Info(ctx, "final statistics",
		logger.Int("players", stats.Players),
		logger.Int("duelsServed", stats.DuelsServed),
		logger.Int("exhausted", stats.Exhausted),
		logger.Int("votesAccepted", stats.VotesAccepted),
		logger.Int("votesFailed", stats.VotesFailed),
		logger.Int("duplicates", stats.Duplicates),
		logger.Int("flushes", stats.Flushes),
		logger.Int("flushesQueued", stats.FlushesQueued),
		logger.String("duration", stats.Duration.String()),
		logger.Float64("successRate", successRate),
		logger.Float64("votesPerSecond", votesPerSecond))
}
