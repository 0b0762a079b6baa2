// Package reload swaps in new index generations when the indexer announces
// them on the index-complete topic.
package reload

import (
	"context"
	"log/slog"

	"github.com/civicpulse/civicsearch/internal/indexer/notify"
	"github.com/civicpulse/civicsearch/pkg/kafka"
)

// Reloader is implemented by *retriever.Retriever.
type Reloader interface {
	ReloadIfChanged(generation int64, buildID string) (bool, error)
}

// Listener wraps a Kafka consumer subscribed to index-complete events.
type Listener struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func NewListener(consumer *kafka.Consumer) *Listener {
	return &Listener{
		consumer: consumer,
		logger:   slog.Default().With("component", "reload-listener"),
	}
}

// Start blocks until ctx is cancelled.
func (l *Listener) Start(ctx context.Context) error {
	l.logger.Info("reload listener starting")
	return l.consumer.Start(ctx)
}

func (l *Listener) Close() error {
	return l.consumer.Close()
}

// HandleMessage returns a MessageHandler that reloads r for every announced
// build it does not already serve. A failed reload is logged and
// the message is not retried; the next announcement tries again.
func HandleMessage(r Reloader) kafka.MessageHandler {
	logger := slog.Default().With("component", "reload-listener")
	return func(ctx context.Context, key []byte, value []byte) error {
		event, err := kafka.DecodeJSON[notify.IndexCompleteEvent](value)
		if err != nil {
			logger.Error("failed to decode index-complete event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		reloaded, err := r.ReloadIfChanged(event.Generation, event.BuildID)
		if err != nil {
			logger.Error("reload after index-complete failed",
				"generation", event.Generation,
				"build_id", event.BuildID,
				"artifact_dir", event.ArtifactDir,
				"error", err,
			)
			return nil
		}
		if reloaded {
			logger.Info("reloaded announced build",
				"generation", event.Generation,
				"build_id", event.BuildID,
				"documents", event.Documents,
				"failures", len(event.Failures),
			)
		} else {
			logger.Debug("announced build already served",
				"generation", event.Generation,
				"build_id", event.BuildID,
			)
		}
		return nil
	}
}
