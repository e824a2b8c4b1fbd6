package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/okian/jobfit/internal/adapters/dataset"
	"github.com/okian/jobfit/internal/adapters/mq/queue"
	"github.com/okian/jobfit/internal/adapters/repository"
	service "github.com/okian/jobfit/internal/app"
	"github.com/okian/jobfit/internal/domain/training"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest     = errors.New("bad request")
	ErrBackpressure   = errors.New("backpressure")
	ErrNoObjectSource = errors.New("object storage is not configured")
)

// opError tags an error kind with the handler operation that produced it.
type opError struct {
	op    string
	kind  error
	cause error
}

func (e *opError) Error() string {
	if e.cause == nil {
		return fmt.Sprintf("%s: %v", e.op, e.kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.op, e.kind, e.cause)
}

func (e *opError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.kind}
	}
	return []error{e.kind, e.cause}
}

// NewKind returns an error of the given kind raised by op.
func NewKind(op string, kind error) error {
	return &opError{op: op, kind: kind}
}

// WrapKind classifies cause as kind, raised by op.
func WrapKind(op string, kind, cause error) error {
	return &opError{op: op, kind: kind, cause: cause}
}

// classify maps an error to its HTTP status and response code.
func classify(err error) (int, string) {
	var (
		sve    *dataset.SchemaValidationError
		tooBig *http.MaxBytesError
	)
	switch {
	case errors.As(err, &tooBig):
		return http.StatusRequestEntityTooLarge, "too_large"
	case errors.Is(err, ErrNoObjectSource):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, repository.ErrInvalidVersion),
		errors.Is(err, dataset.ErrSource):
		return http.StatusBadRequest, "bad_request"
	case errors.As(err, &sve), errors.Is(err, training.ErrTooFewClasses):
		return http.StatusUnprocessableEntity, "schema_error"
	case errors.Is(err, ErrBackpressure), errors.Is(err, queue.ErrFull):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, service.ErrJobNotFound), errors.Is(err, repository.ErrVersionNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrArtifactUnavailable),
		errors.Is(err, service.ErrNotStarted),
		errors.Is(err, queue.ErrClosed):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
