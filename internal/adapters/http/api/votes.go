package api

import (
	"net/http"

	"github.com/okian/redflag/internal/domain/model"
	"github.com/okian/redflag/internal/domain/rating"
)

// voteRequest is the body of POST /votes.
type voteRequest struct {
	VoteID   string `json:"vote_id" validate:"omitempty,max=128"`
	WinnerID int64  `json:"winner_element_id" validate:"required,gt=0"`
	LoserID  int64  `json:"loser_element_id" validate:"required,gt=0"`
	Sex      string `json:"voter_sex"`
	Age      string `json:"voter_age_bracket"`
}

func (v voteRequest) vote() (model.Vote, error) {
	sex, err := model.ParseSex(v.Sex)
	if err != nil {
		return model.Vote{}, err
	}
	age, err := model.ParseAgeBracket(v.Age)
	if err != nil {
		return model.Vote{}, err
	}
	return model.Vote{ID: v.VoteID, WinnerID: v.WinnerID, LoserID: v.LoserID, Sex: sex, Age: age}, nil
}

// elementView is an element as returned to clients.
type elementView struct {
	ID       int64                   `json:"id"`
	Text     string                  `json:"text"`
	Category model.Category          `json:"category"`
	Ratings  map[string]model.Rating `json:"ratings,omitempty"`
}

func viewOf(e *model.Element, withRatings bool) *elementView {
	v := &elementView{ID: e.ID, Text: e.Text, Category: e.Category}
	if withRatings {
		v.Ratings = make(map[string]model.Rating, model.SegmentCount)
		for _, s := range model.Segments() {
			v.Ratings[s.String()] = e.Rating(s)
		}
	}
	return v
}

type voteResponse struct {
	VoteID    string         `json:"vote_id"`
	Duplicate bool           `json:"duplicate"`
	Winner    *elementView   `json:"winner,omitempty"`
	Loser     *elementView   `json:"loser,omitempty"`
	Deltas    []rating.Delta `json:"deltas,omitempty"`
}

// HandlePostVote handles POST /votes requests.
func (s *Server) HandlePostVote(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_vote"
	if !allow(w, r, http.MethodPost) {
		return
	}
	var req voteRequest
	if err := s.decode(r, &req); err != nil {
		s.fail(w, r, WrapKind(op, ErrBadRequest, err))
		return
	}
	v, err := req.vote()
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}

	out, err := s.deps.ApplyVote(r.Context(), v)
	if err != nil {
		s.fail(w, r, Wrap(op, err))
		return
	}
	if out.Duplicate {
		writeJSON(w, http.StatusOK, voteResponse{VoteID: out.VoteID, Duplicate: true})
		return
	}
	writeJSON(w, http.StatusCreated, voteResponse{
		VoteID: out.VoteID,
		Winner: viewOf(&out.Winner, true),
		Loser:  viewOf(&out.Loser, true),
		Deltas: out.Deltas,
	})
}
