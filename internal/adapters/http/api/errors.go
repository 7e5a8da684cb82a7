package api

import (
	"errors"
	"net/http"

	"github.com/okian/movie-elo/internal/adapters/csvimport"
	"github.com/okian/movie-elo/internal/adapters/repository"
	service "github.com/okian/movie-elo/internal/app"
	"github.com/okian/movie-elo/internal/domain/elo"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest   = errors.New("bad request")
	ErrMissingOwner = errors.New("missing X-User-Id header")
	ErrLimit        = errors.New("limit exceeded")
	ErrTooLarge     = errors.New("request body too large")
	ErrRateLimited  = errors.New("rate limit exceeded")
)

// Error records the handler operation that failed, an optional sentinel kind
// and the underlying cause.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Kind != nil {
		msg += ": " + e.Kind.Error()
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the kind and the cause to errors.Is.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Kind != nil {
		out = append(out, e.Kind)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// Wrap attaches op to err.
func Wrap(op string, err error) error {
	return &Error{Op: op, Err: err}
}

// NewKind returns an error of kind raised by op.
func NewKind(op string, kind error) error {
	return &Error{Op: op, Kind: kind}
}

// WrapKind classifies err as kind.
func WrapKind(op string, kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// classify maps an error to its HTTP status and response code.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrMissingOwner):
		return http.StatusBadRequest, "missing_owner"
	case errors.Is(err, ErrLimit):
		return http.StatusBadRequest, "limit_exceeded"
	case errors.Is(err, ErrTooLarge):
		return http.StatusRequestEntityTooLarge, "payload_too_large"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, repository.ErrInvalidOwner),
		errors.Is(err, repository.ErrInvalidLimit),
		errors.Is(err, service.ErrInvalidWinner),
		errors.Is(err, service.ErrEmptyImport),
		errors.Is(err, csvimport.ErrMissingColumn),
		errors.Is(err, csvimport.ErrMalformed):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrUnknownMatchup),
		errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, elo.ErrInsufficientItems):
		return http.StatusConflict, "insufficient_items"
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
