package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/okian/movie-elo/internal/adapters/csvimport"
	service "github.com/okian/movie-elo/internal/app"
	"github.com/okian/movie-elo/internal/domain/model"
)

// UploadField is the multipart field holding the CSV export.
const UploadField = "file"

// UploadDependencies defines the interface for imports.
type UploadDependencies interface {
	Import(ctx context.Context, owner string, rows []model.RawRating) (service.ImportResult, error)
}

// UploadHandler imports Letterboxd CSV exports. Titles are "Name Year" and
// rows without a Letterboxd URI are skipped.
type UploadHandler struct {
	deps     UploadDependencies
	maxBytes int64
}

// NewUploadHandler creates a new upload handler.
func NewUploadHandler(deps UploadDependencies, maxBytes int64) *UploadHandler {
	return &UploadHandler{deps: deps, maxBytes: maxBytes}
}

type uploadResponse struct {
	Kind     string         `json:"kind"`
	Rows     int            `json:"rows"`
	Added    []model.Record `json:"added"`
	Adjusted int            `json:"adjusted"`
	Offset   int            `json:"offset"`
	Skipped  int            `json:"skipped"`
	Total    int            `json:"total"`
}

// HandleUpload handles POST /upload requests with a multipart "file" field.
func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_upload"
	if r.ContentLength > h.maxBytes {
		writeError(w, NewKind(op, ErrTooLarge))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)
	if err := r.ParseMultipartForm(h.maxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, WrapKind(op, ErrTooLarge, err))
			return
		}
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	file, _, err := r.FormFile(UploadField)
	if err != nil {
		writeError(w, WrapKind(op, ErrBadRequest, err))
		return
	}
	defer func() { _ = file.Close() }()

	rows, report, err := csvimport.Parse(file, csvimport.WithYearInTitle(), csvimport.WithRequireURI())
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}

	res, err := h.deps.Import(r.Context(), ownerFrom(r.Context()), rows)
	if err != nil {
		writeError(w, Wrap(op, err))
		return
	}
	added := make([]model.Record, 0, len(res.Added))
	for _, m := range res.Added {
		added = append(added, m.ToRecord())
	}
	writeJSON(w, http.StatusOK, uploadResponse{
		Kind:     res.Kind,
		Rows:     report.Rows,
		Added:    added,
		Adjusted: len(res.Adjusted),
		Offset:   res.Offset,
		Skipped:  report.Skipped + res.Skipped,
		Total:    res.Total,
	})
}
