package api

import (
	"net/http"

	"github.com/okian/redflag/internal/domain/model"
)

type verdictRequest struct {
	Kind string `json:"kind" validate:"required,oneof=red green"`
}

// HandleVerdicts handles GET and POST /verdicts.
func (s *Server) HandleVerdicts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleGetVerdicts(w, r)
	case http.MethodPost:
		RateLimit(s.limiter, s.handlePostVerdict)(w, r)
	default:
		w.Header().Set("Allow", "GET, POST")
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
	}
}

func (s *Server) handlePostVerdict(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_verdict"
	var req verdictRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	kind, err := model.ParseVerdictKind(req.Kind)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	v, err := s.deps.RecordVerdict(r.Context(), kind)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"id": v.ID, "kind": v.Kind.String(), "at": v.At})
}

func (s *Server) handleGetVerdicts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.deps.GlobalVerdictCounts(r.Context())
	if err != nil {
		s.fail(w, r, Wrap("api.get_verdicts", err))
		return
	}
	writeJSON(w, http.StatusOK, counts)
}
