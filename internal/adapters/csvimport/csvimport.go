// Package csvimport reads Letterboxd rating exports.
package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/okian/movie-elo/internal/domain/model"
)

// Letterboxd export columns.
const (
	ColName       = "Name"
	ColYear       = "Year"
	ColYourRating = "Your Rating"
	ColRating     = "Rating"
	ColURI        = "Letterboxd URI"
)

// Report summarises one Parse call.
type Report struct {
	Rows     int // data rows read, header excluded
	Accepted int
	Skipped  int
}

type options struct {
	yearInTitle bool
	requireURI  bool
}

// Option configures Parse.
type Option func(*options)

// WithYearInTitle builds titles as "Name Year", keeping remakes apart.
func WithYearInTitle() Option {
	return func(o *options) { o.yearInTitle = true }
}

// WithRequireURI skips rows without a Letterboxd URI.
func WithRequireURI() Option {
	return func(o *options) { o.requireURI = true }
}

// Parse reads a header row and returns one RawRating per usable row, in file
// order. The rating comes from "Your Rating", or "Rating" when that is blank.
// Rows with an empty title or a missing or non-numeric rating are skipped.
func Parse(r io.Reader, opts ...Option) ([]model.RawRating, Report, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, Report{}, fmt.Errorf("%w: %s (empty file)", ErrMissingColumn, ColName)
	}
	if err != nil {
		return nil, Report{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	idx := index(header)
	if _, ok := idx[ColName]; !ok {
		return nil, Report{}, fmt.Errorf("%w: %s", ErrMissingColumn, ColName)
	}

	var (
		out []model.RawRating
		rep Report
	)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, rep, fmt.Errorf("%w: %w", ErrMalformed, err)
		}
		rep.Rows++

		row, ok := toRating(rec, idx, o)
		if !ok {
			rep.Skipped++
			continue
		}
		out = append(out, row)
		rep.Accepted++
	}
	return out, rep, nil
}

func toRating(rec []string, idx map[string]int, o options) (model.RawRating, bool) {
	title := field(rec, idx, ColName)
	if title == "" {
		return model.RawRating{}, false
	}
	if o.yearInTitle {
		// Without a Year column the title stays the bare name.
		title = strings.TrimSpace(title + " " + field(rec, idx, ColYear))
	}

	raw := field(rec, idx, ColYourRating)
	if raw == "" {
		raw = field(rec, idx, ColRating)
	}
	rating, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return model.RawRating{}, false
	}

	uri := field(rec, idx, ColURI)
	if o.requireURI && uri == "" {
		return model.RawRating{}, false
	}
	return model.RawRating{Title: title, Rating: rating, URI: uri}, true
}

// index maps header names to column positions. A UTF-8 BOM on the first
// column is dropped.
func index(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
		if _, dup := idx[h]; !dup {
			idx[h] = i
		}
	}
	return idx
}

func field(rec []string, idx map[string]int, col string) string {
	i, ok := idx[col]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}
