package service

import (
	"time"

	"github.com/okian/redflag/internal/adapters/repository"
	"github.com/okian/redflag/internal/domain/model"
	"github.com/okian/redflag/internal/domain/session"
	"github.com/okian/redflag/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the rating store. Defaults to an in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithBuffer injects the session buffer owned by the caller.
func WithBuffer(b *session.Buffer) Option {
	return func(s *Service) {
		if b != nil {
			s.buffer = b
		}
	}
}

// WithSeed sets the catalog elements upserted on Start.
func WithSeed(elements []model.Element) Option {
	return func(s *Service) {
		s.seed = elements
	}
}

// WithWorkerCount sets the number of flush workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the flush queue capacity.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many vote ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithElo sets the sensitivity constant and the base rating.
func WithElo(k, base float64) Option {
	return func(s *Service) {
		s.eloK = k
		if base > 0 {
			s.eloBase = base
		}
	}
}

// WithSelectorPolicy tunes the pair ranking.
func WithSelectorPolicy(gapBand float64, poolSize int) Option {
	return func(s *Service) {
		s.gapBand = gapBand
		s.poolSize = poolSize
	}
}

// WithMaxSeenChars sets the seen-duels encoding cap.
func WithMaxSeenChars(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxSeenChars = n
		}
	}
}

// WithStatsDays sets the default admin stats window.
func WithStatsDays(days int) Option {
	return func(s *Service) {
		s.statsDays = days
	}
}

// WithStatsMaxDays bounds the span of an explicit admin stats range.
func WithStatsMaxDays(days int) Option {
	return func(s *Service) {
		s.statsMaxDays = days
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
