package playtest

import "os"

// ShowHelp prints usage information for the playtest tool.
func ShowHelp() {
	os.Stdout.WriteString(`Red Flag Playtest Tool
======================

Simulated players pull duels, vote and flush their sessions against a
running server, then the tool checks vote totals and buffered sessions
through the stats endpoints.

Usage:
  go run ./cmd/playtest [options]

Options:
  -url string
        Base URL of the service (default "http://localhost:9080")
  -players int
        Number of simulated players (default 200)
  -duels int
        Maximum duels per player (default 20)
  -workers int
        Players running at once (default CPU cores * 2)
  -category string
        Restrict every player to one category (amour, amitie, travail, famille)
  -retry-every int
        Send every n-th vote twice with the same vote id (default 5, 0 disables)
  -flush-every int
        Flush the session every n votes (default 5)
  -settle duration
        Time allowed for queued flushes to reach the buffer (default 5s)
  -timeout duration
        HTTP request timeout (default 10s)
  -seed int
        RNG seed (default: derived from the clock)
  -verbose
        Enable debug logging
  -help
        Show this help message

Examples:
  go run ./cmd/playtest -players 1000 -workers 32
  go run ./cmd/playtest -category travail -duels 100
`)
}
