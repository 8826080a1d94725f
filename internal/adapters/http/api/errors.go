package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/redflag/internal/adapters/repository"
	"github.com/okian/redflag/internal/domain/duel"
	"github.com/okian/redflag/internal/domain/model"
	"github.com/okian/redflag/internal/domain/stats"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrBackpressure = errors.New("backpressure")
	ErrUnauthorized = errors.New("unauthorized")
)

// KindError tags an error with the operation that failed and a sentinel
// kind. errors.Is matches both the kind and the cause.
type KindError struct {
	Op   string
	Kind error
	Err  error
}

func (e *KindError) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.Error()
	}
	return e.Op + ": " + e.Kind.Error() + ": " + e.Err.Error()
}

func (e *KindError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// WrapKind returns err tagged with op and kind.
func WrapKind(op string, kind, err error) error {
	return &KindError{Op: op, Kind: kind, Err: err}
}

// NewKind returns a bare kind error for op.
func NewKind(op string, kind error) error {
	return &KindError{Op: op, Kind: kind}
}

// Wrap prefixes err with op.
func Wrap(op string, err error) error {
	return fmt.Errorf("%s: %w", op, err)
}

// classify maps an error to its HTTP status and response code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, model.ErrSelfDuel),
		errors.Is(err, model.ErrInvalidSex),
		errors.Is(err, model.ErrInvalidAge),
		errors.Is(err, model.ErrInvalidCategory),
		errors.Is(err, model.ErrInvalidSegment),
		errors.Is(err, model.ErrInvalidVerdict),
		errors.Is(err, duel.ErrSeenTooLarge),
		errors.Is(err, duel.ErrMalformedSeen),
		errors.Is(err, stats.ErrInvalidRange),
		errors.Is(err, repository.ErrInvalidLimit):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, repository.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
