package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/redflag/internal/domain/model"
)

const dateLayout = "2006-01-02"

// HandleService handles GET /service requests with runtime counters.
func (s *Server) HandleService(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, s.deps.GetStats())
}

// HandlePublicStats handles GET /stats requests.
func (s *Server) HandlePublicStats(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	pub, err := s.deps.PublicStats(r.Context())
	if err != nil {
		s.fail(w, r, Wrap("api.public_stats", err))
		return
	}
	writeJSON(w, http.StatusOK, pub)
}

// HandleAdminStats handles GET /admin/stats?from=&to= requests. Bounds are
// RFC 3339 instants or UTC dates; a date as "to" includes that whole day.
func (s *Server) HandleAdminStats(w http.ResponseWriter, r *http.Request) {
	const op = "api.admin_stats"
	if !allow(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()
	from, _, err := parseBound(q.Get("from"))
	if err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	to, isDate, err := parseBound(q.Get("to"))
	if err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	if isDate {
		to = to.Add(24 * time.Hour)
	}

	adm, err := s.deps.AdminStats(r.Context(), from, to)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, adm)
}

func parseBound(v string) (time.Time, bool, error) {
	if v == "" {
		return time.Time{}, false, nil
	}
	if t, err := time.Parse(dateLayout, v); err == nil {
		return t, true, nil
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid time %q: want RFC3339 or YYYY-MM-DD", v)
	}
	return t, false, nil
}

// HandleDemographics handles GET /admin/demographics requests.
func (s *Server) HandleDemographics(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	d, err := s.deps.Demographics(r.Context())
	if err != nil {
		s.fail(w, r, Wrap("api.demographics", err))
		return
	}
	writeJSON(w, http.StatusOK, d)
}

type sessionView struct {
	ID                string            `json:"session_id"`
	StartedAt         time.Time         `json:"started_at"`
	DurationSeconds   float64           `json:"duration"`
	PageViews         []string          `json:"page_views"`
	GameEntries       []model.GameEntry `json:"game_entries"`
	Votes             int               `json:"votes"`
	AIRequests        int               `json:"ai_requests"`
	ChoicesBeforeQuit int               `json:"choices_before_quit"`
	Category          string            `json:"category"`
	Sex               string            `json:"sex"`
	Age               string            `json:"age"`
	FlushedAt         time.Time         `json:"flushed_at"`
}

// HandleAdminSessions handles GET /admin/sessions requests.
func (s *Server) HandleAdminSessions(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	list := s.deps.Sessions()
	out := make([]sessionView, 0, len(list))
	for i := range list {
		ss := &list[i]
		out = append(out, sessionView{
			ID:                ss.ID,
			StartedAt:         ss.StartedAt,
			DurationSeconds:   ss.Duration.Seconds(),
			PageViews:         ss.PageViews,
			GameEntries:       ss.GameEntries,
			Votes:             ss.Votes,
			AIRequests:        ss.AIRequests,
			ChoicesBeforeQuit: ss.ChoicesBeforeQuit,
			Category:          ss.Category.Label(),
			Sex:               ss.Sex.Label(),
			Age:               ss.Age.Label(),
			FlushedAt:         ss.FlushedAt,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

// HandleGetRanking handles GET /ranking?segment=&category=&limit= requests.
func (s *Server) HandleGetRanking(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_ranking"
	if !allow(w, r, http.MethodGet) {
		return
	}
	q := r.URL.Query()

	segment := model.SegmentGlobal
	if v := q.Get("segment"); v != "" {
		seg, err := model.ParseSegment(v)
		if err != nil {
			s.fail(w, r, Wrap(op, err))
			return
		}
		segment = seg
	}
	cat, err := model.ParseCategory(q.Get("category"))
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	limit := 10
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			s.fail(w, r, NewKind(op, ErrBadRequest))
			return
		}
		limit = n
	}
	if limit > s.maxRankingLimit {
		writeError(w, http.StatusBadRequest, "limit_exceeded", NewKind(op, ErrBadRequest))
		return
	}

	entries, err := s.deps.Ranking(r.Context(), segment, cat, limit)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
