package api

import (
	"errors"
	"net/http"

	service "github.com/okian/clarisa/internal/app"
	"github.com/okian/clarisa/internal/adapters/repository"
	"github.com/okian/clarisa/internal/domain/model"
	"github.com/okian/clarisa/internal/domain/priority"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

// kindError attaches an operation name and a sentinel kind to a cause.
type kindError struct {
	op   string
	kind error
	err  error
}

func (e *kindError) Error() string {
	switch {
	case e.err == nil:
		return e.op + ": " + e.kind.Error()
	case e.kind == nil:
		return e.op + ": " + e.err.Error()
	default:
		return e.op + ": " + e.kind.Error() + ": " + e.err.Error()
	}
}

func (e *kindError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.kind != nil {
		errs = append(errs, e.kind)
	}
	if e.err != nil {
		errs = append(errs, e.err)
	}
	return errs
}

// NewKind returns an error of the given kind raised by op.
func NewKind(op string, kind error) error {
	return &kindError{op: op, kind: kind}
}

// WrapKind wraps err as kind, raised by op. A nil err yields nil.
func WrapKind(op string, kind, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{op: op, kind: kind, err: err}
}

// Wrap annotates err with op and keeps its kind. A nil err yields nil.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &kindError{op: op, err: err}
}

// statusFor maps an error chain to a response status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, service.ErrBackpressure):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case isValidation(err):
		return http.StatusBadRequest, "bad_request"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func isValidation(err error) bool {
	for _, kind := range []error{
		ErrBadRequest,
		repository.ErrInvalidLimit,
		model.ErrInvalidDiagnostic,
		model.ErrInvalidOpportunity,
		model.ErrInvalidActivity,
		model.ErrInvalidStatus,
		model.ErrInvalidTimestamp,
		priority.ErrScoreOutOfRange,
		priority.ErrUnknownStage,
		priority.ErrUnknownLabel,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}
