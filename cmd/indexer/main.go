package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/civicpulse/civicsearch/internal/indexer"
	"github.com/civicpulse/civicsearch/internal/indexer/notify"
	"github.com/civicpulse/civicsearch/internal/ingestion"
	"github.com/civicpulse/civicsearch/pkg/config"
	"github.com/civicpulse/civicsearch/pkg/kafka"
	"github.com/civicpulse/civicsearch/pkg/logger"
	"github.com/civicpulse/civicsearch/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	interval := flag.Duration("interval", 0, "rebuild period; 0 builds once and exits")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting indexer",
		"source", cfg.Indexer.Source,
		"artifact_dir", cfg.Indexer.ArtifactDir,
		"collections", cfg.Indexer.CollectionNames(),
		"interval", *interval,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loader, closeSource, err := ingestion.Open(ctx, cfg)
	if err != nil {
		slog.Error("failed to open record source", "error", err)
		os.Exit(1)
	}
	defer closeSource()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled && *interval > 0 {
		shutdown := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer shutdown(context.Background())
	}

	opts := []indexer.Option{
		indexer.WithWorkers(cfg.Indexer.Workers),
		indexer.WithMetrics(m),
	}
	if cfg.Kafka.Enabled() {
		producer := kafka.NewBroadcastProducer(cfg.Kafka, cfg.Kafka.Topics.IndexComplete)
		defer producer.Close()
		opts = append(opts, indexer.WithNotifier(notify.NewKafkaNotifier(producer)))
		slog.Info("index-complete notifications enabled", "topic", cfg.Kafka.Topics.IndexComplete)
	}
	builder := indexer.NewBuilder(loader, cfg.Indexer.CollectionNames(), cfg.Indexer.ArtifactDir, opts...)

	if *interval <= 0 {
		if _, err := builder.Build(ctx); err != nil {
			slog.Error("index build failed", "error", err)
			os.Exit(1)
		}
		return
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		if _, err := builder.Build(ctx); err != nil {
			slog.Error("index build failed, keeping previous artifacts", "error", err)
		}
		select {
		case <-ctx.Done():
			slog.Info("indexer stopped")
			return
		case <-ticker.C:
		}
	}
}
