package repository

import "github.com/okian/redflag/pkg/logger"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithLogger sets a custom logger for the store.
func WithLogger(l logger.Logger) Option {
	return func(s *MemoryStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// PostgresOption applies a configuration option to the PostgresStore.
type PostgresOption func(*PostgresStore)

// WithPostgresLogger sets a custom logger for the Postgres store.
func WithPostgresLogger(l logger.Logger) PostgresOption {
	return func(s *PostgresStore) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMigrate applies the embedded schema when the store opens.
func WithMigrate(enabled bool) PostgresOption {
	return func(s *PostgresStore) {
		s.migrate = enabled
	}
}
