// Package errors defines the sentinel errors shared by the indexer and the
// retriever, plus an AppError wrapper that carries an HTTP status code.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrSourceUnavailable marks a collection that could not be loaded during
	// a build. It is recorded in the build status and never aborts a build.
	ErrSourceUnavailable = errors.New("source unavailable")
	// ErrEmptyQuery means the query produced no usable terms.
	ErrEmptyQuery = errors.New("no usable query terms")
	// ErrNoMatches means the query had terms but no document matched them.
	ErrNoMatches = errors.New("no relevant documents")
	// ErrMissingArtifacts means no complete index build exists yet.
	ErrMissingArtifacts = errors.New("index artifacts missing")
	// ErrInconsistentArtifacts means the corpus and index on disk do not
	// belong to the same build; a rebuild is required.
	ErrInconsistentArtifacts = errors.New("index artifacts inconsistent")
	ErrInvalidTopK           = errors.New("top_k must be positive")
	ErrBuildInProgress       = errors.New("index build already in progress")
	ErrInvalidInput          = errors.New("invalid input")
	ErrTimeout               = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// HTTPStatusCode maps err onto the status the search API responds with.
// EmptyQuery and NoMatches are successful outcomes and map to 200.
func HTTPStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrEmptyQuery), errors.Is(err, ErrNoMatches):
		return http.StatusOK
	case errors.Is(err, ErrInvalidTopK), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrBuildInProgress):
		return http.StatusConflict
	case errors.Is(err, ErrMissingArtifacts), errors.Is(err, ErrInconsistentArtifacts),
		errors.Is(err, ErrSourceUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
