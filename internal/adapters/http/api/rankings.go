package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
)

// RankingsDependencies defines the interface for ranking list operations.
type RankingsDependencies interface {
	Rankings(ctx context.Context, owner string, limit int) ([]Entry, error)
}

// RankingsHandler handles ranking list requests.
type RankingsHandler struct {
	deps     RankingsDependencies
	maxLimit int
}

// NewRankingsHandler creates a new rankings handler.
func NewRankingsHandler(deps RankingsDependencies, maxLimit int) *RankingsHandler {
	return &RankingsHandler{
		deps:     deps,
		maxLimit: maxLimit,
	}
}

// HandleGetRankings handles GET /rankings?limit=N requests. A missing limit
// means the maximum.
func (h *RankingsHandler) HandleGetRankings(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_rankings"
	n := h.maxLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		var err error
		n, err = strconv.Atoi(limitStr)
		if err != nil || n < 1 {
			writeError(w, WrapKind(op, ErrBadRequest, fmt.Errorf("invalid limit %q", limitStr)))
			return
		}
	}
	if n > h.maxLimit {
		writeError(w, WrapKind(op, ErrLimit, fmt.Errorf("limit must be at most %d", h.maxLimit)))
		return
	}
	entries, err := h.deps.Rankings(r.Context(), ownerFrom(r.Context()), n)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
