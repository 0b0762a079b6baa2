// Package notify announces completed index builds on Kafka so running
// retrievers can reload the new artifacts without a restart.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/civicpulse/civicsearch/internal/indexer/artifact"
	"github.com/civicpulse/civicsearch/pkg/kafka"
)

// IndexCompleteEvent is the payload published after artifacts are
// persisted.
type IndexCompleteEvent struct {
	ArtifactDir string                    `json:"artifact_dir"`
	Generation  int64                     `json:"generation"`
	BuildID     string                    `json:"build_id,omitempty"`
	Documents   int                       `json:"documents"`
	Terms       int                       `json:"terms"`
	Collections []artifact.CollectionStat `json:"collections"`
	Failures    []artifact.SourceFailure  `json:"failures,omitempty"`
	BuiltAt     time.Time                 `json:"built_at"`
}

// NewIndexCompleteEvent describes the build recorded in m.
func NewIndexCompleteEvent(dir string, m *artifact.Manifest) IndexCompleteEvent {
	return IndexCompleteEvent{
		ArtifactDir: dir,
		Generation:  m.Generation,
		BuildID:     m.BuildID,
		Documents:   m.Documents,
		Terms:       m.Terms,
		Collections: m.Collections,
		Failures:    m.Failures,
		BuiltAt:     m.BuiltAt,
	}
}

// Publisher is the subset of *kafka.Producer the notifier needs.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// KafkaNotifier publishes IndexCompleteEvents keyed by generation.
type KafkaNotifier struct {
	publisher Publisher
	logger    *slog.Logger
}

// NewKafkaNotifier creates a notifier over publisher.
func NewKafkaNotifier(publisher Publisher) *KafkaNotifier {
	return &KafkaNotifier{
		publisher: publisher,
		logger:    slog.Default().With("component", "index-notifier"),
	}
}

// IndexComplete publishes the event for the build recorded in m.
func (n *KafkaNotifier) IndexComplete(ctx context.Context, dir string, m *artifact.Manifest) error {
	event := NewIndexCompleteEvent(dir, m)
	err := n.publisher.Publish(ctx, kafka.Event{
		Key:   strconv.FormatInt(m.Generation, 10),
		Value: event,
	})
	if err != nil {
		return fmt.Errorf("publishing index complete for generation %d: %w", m.Generation, err)
	}
	n.logger.Info("index complete published", "generation", m.Generation, "build_id", m.BuildID, "dir", dir)
	return nil
}
