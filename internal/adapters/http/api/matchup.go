package api

import (
	"context"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	service "github.com/okian/movie-elo/internal/app"
	"github.com/okian/movie-elo/internal/domain/model"
)

// MatchupDependencies defines the interface for comparison operations.
type MatchupDependencies interface {
	NextMatchup(ctx context.Context, owner string) (model.Matchup, error)
	Vote(ctx context.Context, owner, matchupID, winner string) (service.VoteResult, error)
	Poster(title string) string
}

// MatchupHandler serves matchups and records votes.
type MatchupHandler struct {
	deps     MatchupDependencies
	validate *validator.Validate
}

// NewMatchupHandler creates a new matchup handler.
func NewMatchupHandler(deps MatchupDependencies, validate *validator.Validate) *MatchupHandler {
	return &MatchupHandler{deps: deps, validate: validate}
}

type movieView struct {
	Title  string  `json:"title"`
	Elo    int     `json:"elo"`
	Rating float64 `json:"rating"`
	URI    string  `json:"uri,omitempty"`
	Poster string  `json:"poster,omitempty"`
}

type matchupResponse struct {
	ID string    `json:"id"`
	A  movieView `json:"a"`
	B  movieView `json:"b"`
}

// voteRequest is the body of POST /vote.
type voteRequest struct {
	MatchupID string `json:"matchup_id" validate:"required,uuid"`
	Winner    string `json:"winner" validate:"required,oneof=a b"`
}

type voteResponse struct {
	Winner      movieView `json:"winner"`
	Loser       movieView `json:"loser"`
	WinnerDelta int       `json:"winner_delta"`
	LoserDelta  int       `json:"loser_delta"`
}

func (h *MatchupHandler) view(m model.Movie) movieView {
	return movieView{Title: m.Title, Elo: m.Elo, Rating: m.Rating, URI: m.URI, Poster: h.deps.Poster(m.Title)}
}

// HandleGetMatchup handles GET /matchup requests.
func (h *MatchupHandler) HandleGetMatchup(w http.ResponseWriter, r *http.Request) {
	m, err := h.deps.NextMatchup(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		writeError(w, Wrap("api.get_matchup", err))
		return
	}
	writeJSON(w, http.StatusOK, matchupResponse{ID: m.ID, A: h.view(m.A), B: h.view(m.B)})
}

// HandleVote handles POST /vote requests.
func (h *MatchupHandler) HandleVote(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_vote"
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	res, err := h.deps.Vote(r.Context(), ownerFrom(r.Context()), req.MatchupID, req.Winner)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, voteResponse{
		Winner:      h.view(res.Winner),
		Loser:       h.view(res.Loser),
		WinnerDelta: res.WinnerDelta(),
		LoserDelta:  res.LoserDelta(),
	})
}
