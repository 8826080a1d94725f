package main

import (
	"context"
	"flag"
	"os"
	"runtime"
	"time"

	"github.com/okian/redflag/internal/playtest"
	"github.com/okian/redflag/pkg/logger"
)

// Default configuration constants.
const (
	defaultPlayers     = 200
	defaultDuels       = 20
	defaultWorkers     = 2 // multiplier for runtime.NumCPU()
	defaultRetryEvery  = 5
	defaultFlushEvery  = 5
	defaultSettle      = 5 * time.Second
	defaultTimeout     = 10 * time.Second
	defaultTestTimeout = 10 * time.Minute
)

func main() {
	var (
		baseURL    = flag.String("url", "http://localhost:9080", "Base URL of the service")
		players    = flag.Int("players", defaultPlayers, "Number of simulated players")
		duels      = flag.Int("duels", defaultDuels, "Maximum duels per player")
		workers    = flag.Int("workers", runtime.NumCPU()*defaultWorkers, "Players running at once")
		category   = flag.String("category", "", "Restrict every player to one category")
		retryEvery = flag.Int("retry-every", defaultRetryEvery, "Send every n-th vote twice with the same vote id")
		flushEvery = flag.Int("flush-every", defaultFlushEvery, "Flush the session every n votes")
		settle     = flag.Duration("settle", defaultSettle, "Time allowed for queued flushes to reach the buffer")
		timeout    = flag.Duration("timeout", defaultTimeout, "HTTP request timeout")
		seed       = flag.Int64("seed", 0, "RNG seed")
		verbose    = flag.Bool("verbose", false, "Enable debug logging")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		playtest.ShowHelp()
		return
	}

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("Failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if *verbose {
		_ = logger.SetLevelString("debug")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultTestTimeout)
	defer cancel()

	cfg := &playtest.Config{
		BaseURL:    *baseURL,
		Players:    *players,
		Duels:      *duels,
		Workers:    *workers,
		Category:   *category,
		RetryEvery: *retryEvery,
		FlushEvery: *flushEvery,
		Settle:     *settle,
		Timeout:    *timeout,
		Seed:       *seed,
		Verbose:    *verbose,
		Logger:     logger.Get(),
	}

	if _, err := playtest.Run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "playtest failed", logger.Error(err))
		cancel()
		os.Exit(1) //nolint:gocritic // cancel already called
	}
}
