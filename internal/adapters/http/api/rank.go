package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
)

// RankDependencies defines the interface for rank operations.
type RankDependencies interface {
	Rank(ctx context.Context, owner, title string) (Entry, error)
}

// RankHandler handles rank requests.
type RankHandler struct {
	deps RankDependencies
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(deps RankDependencies) *RankHandler {
	return &RankHandler{deps: deps}
}

// HandleGetRank handles GET /rankings/{title} requests.
func (h *RankHandler) HandleGetRank(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rank"
	title, err := titleParam(r)
	if err != nil || title == "" {
		writeError(w, NewKind(op, ErrBadRequest))
		return
	}
	entry, err := h.deps.Rank(r.Context(), ownerFrom(r.Context()), title)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// titleParam returns the decoded {title} segment. chi matches against
// r.URL.RawPath when it is set (e.g. for an escaped "/"), and against the
// already decoded r.URL.Path otherwise.
func titleParam(r *http.Request) (string, error) {
	title := chi.URLParam(r, "title")
	if r.URL.RawPath == "" {
		return title, nil
	}
	return url.PathUnescape(title)
}
