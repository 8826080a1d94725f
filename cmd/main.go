package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/redflag/internal/adapters/http/api"
	"github.com/okian/redflag/internal/adapters/http/swagger"
	"github.com/okian/redflag/internal/adapters/repository"
	app "github.com/okian/redflag/internal/app"
	"github.com/okian/redflag/internal/catalog"
	"github.com/okian/redflag/internal/config"
	"github.com/okian/redflag/internal/domain/model"
	"github.com/okian/redflag/internal/domain/session"
	"github.com/okian/redflag/pkg/logger"
	"github.com/okian/redflag/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "redflag exited", logger.Error(err))
		stop()
		os.Exit(1) //nolint:gocritic // deferred stop already called
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		return err
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	metrics.Configure(metrics.WithEnv(cfg.Env), metrics.WithMetricsEnabled(cfg.MetricsEnabled))

	store, err := openStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	seed, err := loadSeed(cfg)
	if err != nil {
		_ = store.Close()
		return err
	}

	// The session buffer lives as long as the process.
	buffer := session.NewBuffer(
		session.WithCapacity(cfg.SessionCapacity),
		session.WithLogger(log.Named("sessions")),
	)
	svc := newService(cfg, store, buffer, seed, log)
	if err := svc.Start(ctx); err != nil {
		_ = store.Close()
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newMux(cfg, svc, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr), logger.String("store", cfg.Store))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// openStore selects the rating store backend.
func openStore(ctx context.Context, cfg *config.Config, log logger.Logger) (repository.Store, error) {
	switch cfg.Store {
	case "postgres":
		return repository.OpenPostgres(ctx, cfg.DatabaseURL,
			repository.WithMigrate(true),
			repository.WithPostgresLogger(log.Named("postgres")),
		)
	default:
		return repository.NewMemoryStore(repository.WithLogger(log.Named("store"))), nil
	}
}

// loadSeed reads the element catalog when one is configured.
func loadSeed(cfg *config.Config) ([]model.Element, error) {
	if cfg.CatalogPath == "" {
		return nil, nil
	}
	els, err := catalog.Load(cfg.CatalogPath, cfg.EloBase)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}
	return els, nil
}

func newService(cfg *config.Config, store repository.Store, buffer *session.Buffer, seed []model.Element, log logger.Logger) *app.Service {
	return app.New(
		app.WithLogger(log),
		app.WithStore(store),
		app.WithBuffer(buffer),
		app.WithSeed(seed),
		app.WithWorkerCount(cfg.WorkerCount),
		app.WithQueueSize(cfg.FlushQueueSize),
		app.WithDedupeSize(cfg.DedupeSize),
		app.WithElo(cfg.EloK, cfg.EloBase),
		app.WithSelectorPolicy(cfg.SelectorGapBand, cfg.SelectorPoolSize),
		app.WithMaxSeenChars(cfg.SeenMaxChars),
		app.WithStatsDays(cfg.StatsDays),
		app.WithStatsMaxDays(cfg.StatsMaxDays),
	)
}

func newMux(cfg *config.Config, svc *app.Service, log logger.Logger) *http.ServeMux {
	opts := []api.Option{
		api.WithAdminToken(cfg.AdminToken),
		api.WithMaxRankingLimit(cfg.MaxRankingLimit),
		api.WithLogger(log.Named("api")),
	}
	if cfg.RateLimitRPS > 0 {
		opts = append(opts, api.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)))
	}
	mux := http.NewServeMux()
	api.NewServer(svc, opts...).Register(mux)
	swagger.Register(context.Background(), mux)
	return mux
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())
	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes gauges that have no natural update point.
func updateServiceMetrics(svc *app.Service) {
	st := svc.GetStats()
	if n, ok := st["queueLength"].(int); ok {
		metrics.UpdateQueueSize(n)
	}
	if n, ok := st["bufferLength"].(int); ok {
		metrics.UpdateSessionBufferSize(n)
	}
	if n, ok := st["totalElements"].(int); ok {
		metrics.UpdateElementsTotal(n)
	}
}
