// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/time/rate"

	"github.com/okian/redflag/internal/adapters/repository"
	service "github.com/okian/redflag/internal/app"
	"github.com/okian/redflag/internal/domain/duel"
	"github.com/okian/redflag/internal/domain/model"
	"github.com/okian/redflag/internal/domain/stats"
	"github.com/okian/redflag/pkg/logger"
)

const (
	defaultMaxRankingLimit = 100
	maxBodyBytes           = 64 << 10
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	ApplyVote(ctx context.Context, v model.Vote) (service.VoteOutcome, error)
	NextDuel(ctx context.Context, encodedSeen string, category model.Category) (duel.Result, error)
	Flush(ctx context.Context, s model.Session) bool
	RecordVerdict(ctx context.Context, kind model.VerdictKind) (model.Verdict, error)

	PublicStats(ctx context.Context) (stats.Public, error)
	AdminStats(ctx context.Context, from, to time.Time) (stats.Admin, error)
	Demographics(ctx context.Context) (stats.Breakdown, error)
	GlobalVerdictCounts(ctx context.Context) (stats.VerdictCounts, error)
	Ranking(ctx context.Context, segment model.Segment, category model.Category, limit int) ([]repository.Entry, error)
	Sessions() []model.Session
	GetStats() map[string]interface{}
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithRateLimiter throttles the write endpoints. A nil limiter disables it.
func WithRateLimiter(l *rate.Limiter) Option {
	return func(s *Server) {
		s.limiter = l
	}
}

// WithAdminToken sets the bearer token required on /admin routes.
func WithAdminToken(token string) Option {
	return func(s *Server) {
		s.adminToken = token
	}
}

// WithMaxRankingLimit caps GET /ranking?limit.
func WithMaxRankingLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxRankingLimit = n
		}
	}
}

// WithLogger sets a custom logger for the handlers.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps            Dependencies
	limiter         *rate.Limiter
	adminToken      string
	maxRankingLimit int
	validate        *validator.Validate
	logger          logger.Logger
}

// NewServer creates a new API server.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		deps:            deps,
		maxRankingLimit: defaultMaxRankingLimit,
		validate:        newValidator(),
		logger:          logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	write := func(h http.HandlerFunc) http.HandlerFunc { return RateLimit(s.limiter, h) }
	admin := func(h http.HandlerFunc) http.HandlerFunc { return AdminOnly(s.adminToken, h) }

	mux.HandleFunc("/healthz", MetricsMiddleware(HandleHealth, "healthz"))
	mux.HandleFunc("/service", MetricsMiddleware(s.HandleService, "service"))

	mux.HandleFunc("/votes", MetricsMiddleware(write(s.HandlePostVote), "votes"))
	mux.HandleFunc("/duels/next", MetricsMiddleware(s.HandleNextDuel, "duels_next"))
	mux.HandleFunc("/sessions", MetricsMiddleware(write(s.HandlePostSession), "sessions"))
	mux.HandleFunc("/verdicts", MetricsMiddleware(s.HandleVerdicts, "verdicts"))

	mux.HandleFunc("/stats", MetricsMiddleware(s.HandlePublicStats, "stats"))
	mux.HandleFunc("/ranking", MetricsMiddleware(s.HandleGetRanking, "ranking"))

	mux.HandleFunc("/admin/stats", MetricsMiddleware(admin(s.HandleAdminStats), "admin_stats"))
	mux.HandleFunc("/admin/demographics", MetricsMiddleware(admin(s.HandleDemographics), "admin_demographics"))
	mux.HandleFunc("/admin/sessions", MetricsMiddleware(admin(s.HandleAdminSessions), "admin_sessions"))
}

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("field %s failed %q", verrs[0].Field(), verrs[0].Tag())
		}
		return err
	}
	return nil
}

// allow rejects requests with the wrong method.
func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return false
	}
	return true
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// fail writes err with the status its kind maps to.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error(r.Context(), "request failed",
			logger.String("path", r.URL.Path),
			logger.Int("status", status),
			logger.Error(err),
		)
	}
	writeError(w, status, code, err)
}
