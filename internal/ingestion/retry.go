package ingestion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/civicpulse/civicsearch/internal/corpus"
	apperrors "github.com/civicpulse/civicsearch/pkg/errors"
	"github.com/civicpulse/civicsearch/pkg/resilience"
)

// RetryLoader retries transient load failures of the wrapped Loader with
// exponential backoff and bounds each attempt with Timeout.
type RetryLoader struct {
	next    Loader
	retry   resilience.RetryConfig
	timeout time.Duration
}

// NewRetryLoader wraps next. attempts <= 0 and timeout <= 0 fall back to the
// retry defaults and no per-attempt limit.
func NewRetryLoader(next Loader, attempts int, timeout time.Duration) *RetryLoader {
	return &RetryLoader{
		next:    next,
		retry:   resilience.RetryConfig{MaxAttempts: attempts},
		timeout: timeout,
	}
}

func (l *RetryLoader) Load(ctx context.Context, collection string) ([]corpus.Record, error) {
	var records []corpus.Record
	err := resilience.Retry(ctx, "load "+collection, l.retry, func() error {
		// An attempt that timed out may still finish in the background; it
		// writes only its own got.
		var got []corpus.Record
		err := resilience.WithTimeout(ctx, l.timeout, "load "+collection, func(ctx context.Context) error {
			var err error
			got, err = l.next.Load(ctx, collection)
			return err
		})
		if err != nil {
			return err
		}
		records = got
		return nil
	})
	if err != nil {
		if errors.Is(err, apperrors.ErrSourceUnavailable) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", apperrors.ErrSourceUnavailable, err)
	}
	return records, nil
}
