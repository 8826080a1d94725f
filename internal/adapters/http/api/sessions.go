package api

import (
	"net/http"
	"time"

	"github.com/okian/redflag/internal/domain/model"
	"github.com/okian/redflag/pkg/logger"
)

// flushRequest is the body of POST /sessions. Every flush carries the full
// session state. Durations are capped at a week.
type flushRequest struct {
	SessionID         string            `json:"session_id" validate:"required,max=128"`
	StartedAt         time.Time         `json:"started_at"`
	DurationSeconds   float64           `json:"duration" validate:"gte=0,lte=604800"`
	PageViews         []string          `json:"page_views" validate:"max=1000"`
	GameEntries       []model.GameEntry `json:"game_entries" validate:"max=1000"`
	Votes             int               `json:"votes" validate:"gte=0"`
	AIRequests        int               `json:"ai_requests" validate:"gte=0"`
	ChoicesBeforeQuit int               `json:"choices_before_quit" validate:"gte=0"`
	Category          string            `json:"category"`
	Sex               string            `json:"sex"`
	Age               string            `json:"age"`
	FlushedAt         time.Time         `json:"flushed_at"`
}

func (f *flushRequest) session() (model.Session, error) {
	cat, err := model.ParseCategory(f.Category)
	if err != nil {
		return model.Session{}, err
	}
	sex, err := model.ParseSex(f.Sex)
	if err != nil {
		return model.Session{}, err
	}
	age, err := model.ParseAgeBracket(f.Age)
	if err != nil {
		return model.Session{}, err
	}
	return model.Session{
		ID:                f.SessionID,
		StartedAt:         f.StartedAt,
		Duration:          time.Duration(f.DurationSeconds * float64(time.Second)),
		PageViews:         f.PageViews,
		GameEntries:       f.GameEntries,
		Votes:             f.Votes,
		AIRequests:        f.AIRequests,
		ChoicesBeforeQuit: f.ChoicesBeforeQuit,
		Category:          cat,
		Sex:               sex,
		Age:               age,
		FlushedAt:         f.FlushedAt,
	}, nil
}

// HandlePostSession handles POST /sessions requests. Analytics is best
// effort: malformed or dropped flushes still get a success status so the
// visitor is never blocked.
func (s *Server) HandlePostSession(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req flushRequest
	if err := s.decode(r, &req); err != nil {
		s.logger.Debug(r.Context(), "dropped malformed flush", logger.Error(err))
		w.WriteHeader(http.StatusNoContent)
		return
	}
	sess, err := req.session()
	if err != nil {
		s.logger.Debug(r.Context(), "dropped malformed flush", logger.Error(err))
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if !s.deps.Flush(r.Context(), sess) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
