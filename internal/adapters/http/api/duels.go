package api

import (
	"net/http"

	"github.com/okian/redflag/internal/domain/model"
)

// nextDuelRequest is the body of POST /duels/next.
type nextDuelRequest struct {
	SeenDuels string `json:"seen_duels"`
	Category  string `json:"category"`
}

type nextDuelResponse struct {
	Exhausted bool         `json:"exhausted"`
	ElementA  *elementView `json:"element_a,omitempty"`
	ElementB  *elementView `json:"element_b,omitempty"`
	Played    int          `json:"played"`
	SeenDuels string       `json:"seen_duels"`
}

// HandleNextDuel handles POST /duels/next requests. The seen-duels encoding
// travels in the body because it may be up to ten thousand characters.
func (s *Server) HandleNextDuel(w http.ResponseWriter, r *http.Request) {
	const op = "api.next_duel"
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req nextDuelRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	cat, err := model.ParseCategory(req.Category)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}

	res, err := s.deps.NextDuel(r.Context(), req.SeenDuels, cat)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	resp := nextDuelResponse{Exhausted: res.Exhausted, Played: res.Played, SeenDuels: res.Seen}
	if !res.Exhausted {
		resp.ElementA = viewOf(&res.A, false)
		resp.ElementB = viewOf(&res.B, false)
	}
	writeJSON(w, http.StatusOK, resp)
}
