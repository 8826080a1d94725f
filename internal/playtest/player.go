package playtest

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"time"

	"github.com/google/uuid"
)

var (
	sexes = []string{"", "homme", "femme"}
	ages  = []string{"", "-18", "18-24", "25-34", "35-44", "45+"}
)

// player is one simulated visitor. Not safe for concurrent use.
type player struct {
	c     *client
	cfg   *Config
	rng   *rand.Rand
	sex   string
	age   string
	state flushRequest
}

func newPlayer(c *client, cfg *Config, seed int64) *player {
	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // simulation only
	p := &player{
		c:   c,
		cfg: cfg,
		rng: rng,
		sex: sexes[rng.Intn(len(sexes))],
		age: ages[rng.Intn(len(ages))],
	}
	now := time.Now().UTC()
	p.state = flushRequest{
		SessionID:   uuid.NewString(),
		StartedAt:   now,
		PageViews:   []string{"/", "/duel"},
		GameEntries: []gameEntry{{Game: "duel", At: now}},
		Category:    cfg.Category,
		Sex:         p.sex,
		Age:         p.age,
	}
	return p
}

// play runs up to cfg.Duels duels and returns what happened. Request errors
// are counted, not returned; only context cancellation aborts the player.
func (p *player) play(ctx context.Context) (Stats, error) {
	st := Stats{Players: 1}
	seen := ""
	for i := 0; i < p.cfg.Duels; i++ {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		var duel duelResponse
		code, err := p.c.post(ctx, "/duels/next", duelRequest{SeenDuels: seen, Category: p.cfg.Category}, &duel)
		if err != nil {
			return st, fmt.Errorf("next duel: %w", err)
		}
		if code != http.StatusOK {
			return st, fmt.Errorf("next duel: unexpected status %d", code)
		}
		if duel.Exhausted {
			st.Exhausted++
			break
		}
		st.DuelsServed++
		seen = duel.SeenDuels

		winner, loser := duel.ElementA, duel.ElementB
		if p.rng.Intn(2) == 0 {
			winner, loser = loser, winner
		}
		req := voteRequest{VoteID: uuid.NewString(), WinnerID: winner.ID, LoserID: loser.ID, Sex: p.sex, Age: p.age}
		if !p.vote(ctx, req, &st) {
			continue
		}
		p.state.Votes++
		if p.cfg.RetryEvery > 0 && st.VotesAccepted%p.cfg.RetryEvery == 0 {
			st.VotesRetried++
			var ack voteResponse
			if code, err := p.c.post(ctx, "/votes", req, &ack); err == nil && code == http.StatusOK && ack.Duplicate {
				st.Duplicates++
			}
		}
		if p.cfg.FlushEvery > 0 && p.state.Votes%p.cfg.FlushEvery == 0 {
			p.flush(ctx, &st)
		}
	}
	p.state.ChoicesBeforeQuit = p.state.Votes
	p.flush(ctx, &st)
	return st, nil
}

func (p *player) vote(ctx context.Context, req voteRequest, st *Stats) bool {
	var ack voteResponse
	code, err := p.c.post(ctx, "/votes", req, &ack)
	if err != nil || code != http.StatusCreated {
		st.VotesFailed++
		return false
	}
	st.VotesAccepted++
	return true
}

// flush sends the full session state, as the browser does on its timer.
func (p *player) flush(ctx context.Context, st *Stats) {
	now := time.Now().UTC()
	p.state.Duration = now.Sub(p.state.StartedAt).Seconds()
	p.state.FlushedAt = now
	st.Flushes++
	if code, err := p.c.post(ctx, "/sessions", p.state, nil); err == nil && code == http.StatusAccepted {
		st.FlushesQueued++
	}
}
