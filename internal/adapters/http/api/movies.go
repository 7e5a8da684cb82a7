package api

import (
	"context"
	"net/http"
)

// MoviesDependencies defines the interface for population removal.
type MoviesDependencies interface {
	Reset(ctx context.Context, owner string) (int, error)
}

// MoviesHandler handles population-wide requests.
type MoviesHandler struct {
	deps MoviesDependencies
}

// NewMoviesHandler creates a new movies handler.
func NewMoviesHandler(deps MoviesDependencies) *MoviesHandler {
	return &MoviesHandler{deps: deps}
}

type deleteResponse struct {
	Deleted int `json:"deleted"`
}

// HandleDeleteMovies handles DELETE /movies requests.
func (h *MoviesHandler) HandleDeleteMovies(w http.ResponseWriter, r *http.Request) {
	n, err := h.deps.Reset(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		writeError(w, Wrap("api.delete_movies", err))
		return
	}
	writeJSON(w, http.StatusOK, deleteResponse{Deleted: n})
}
