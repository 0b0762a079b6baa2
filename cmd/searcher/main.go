package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/civicpulse/civicsearch/internal/analytics"
	"github.com/civicpulse/civicsearch/internal/searcher/cache"
	"github.com/civicpulse/civicsearch/internal/searcher/handler"
	"github.com/civicpulse/civicsearch/internal/searcher/reload"
	"github.com/civicpulse/civicsearch/internal/searcher/retriever"
	"github.com/civicpulse/civicsearch/pkg/config"
	"github.com/civicpulse/civicsearch/pkg/health"
	"github.com/civicpulse/civicsearch/pkg/kafka"
	"github.com/civicpulse/civicsearch/pkg/logger"
	"github.com/civicpulse/civicsearch/pkg/metrics"
	"github.com/civicpulse/civicsearch/pkg/middleware"
	"github.com/civicpulse/civicsearch/pkg/ratelimit"
	pkgredis "github.com/civicpulse/civicsearch/pkg/redis"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting search service", "port", cfg.Server.Port, "artifact_dir", cfg.Indexer.ArtifactDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	ret := retriever.New(cfg.Indexer.ArtifactDir, cfg.Search, retriever.WithMetrics(m))
	if _, err := ret.Reload(); err != nil {
		slog.Warn("no usable artifacts yet, serving not-ready until a reload succeeds", "error", err)
	}

	checker := health.NewChecker()
	checker.Register(health.Dependency{Name: "retriever", Required: true, Ping: ret.Ready})
	checker.ReportServing(func() map[string]any {
		return map[string]any{"generation": ret.Generation(), "build": ret.Identity()}
	})

	var store cache.Store
	if cfg.Redis.Addr != "" {
		redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, shared answer cache disabled", "error", err)
		} else {
			defer redisClient.Close()
			store = redisClient
			checker.Register(health.Dependency{Name: "redis", Ping: redisClient.Ping})
			slog.Info("shared answer cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}
	answerCache, err := cache.New(cfg.Search.CacheSize, store, cfg.Redis.CacheTTL, m)
	if err != nil {
		slog.Error("failed to create answer cache", "error", err)
		os.Exit(1)
	}

	aggregator := analytics.NewAggregator()
	var tracker analytics.Tracker = aggregator
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, 10000)
		collector.Start(ctx)
		defer collector.Close()
		tracker = collector

		analyticsConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents, analytics.HandleEvent(aggregator))
		go func() {
			if err := aggregator.Consume(ctx, analyticsConsumer); err != nil {
				slog.Error("analytics aggregator error", "error", err)
			}
		}()
		slog.Info("analytics publishing enabled", "topic", cfg.Kafka.Topics.AnalyticsEvents)
	}

	if cfg.Kafka.Enabled() {
		listener := reload.NewListener(kafka.NewBroadcastConsumer(
			cfg.Kafka,
			cfg.Kafka.Topics.IndexComplete,
			reload.HandleMessage(ret),
		))
		go func() {
			if err := listener.Start(ctx); err != nil {
				slog.Error("reload listener error", "error", err)
			}
		}()
	}

	h := handler.New(ret, answerCache, tracker, cfg.Search)
	analyticsH := analytics.NewHandler(aggregator)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("POST /api/v1/index/reload", h.Reload)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())
	if cfg.Metrics.Enabled {
		mux.Handle("GET /metrics", metrics.HandlerFor(prometheus.DefaultGatherer))
	}

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if cfg.Server.RateLimit > 0 {
		limiter := ratelimit.New(cfg.Server.RateLimit, cfg.Server.RateWindow)
		defer limiter.Close()
		chain = middleware.RateLimit(limiter, cfg.Server.RateWindow)(chain)
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		chain = middleware.CORS(cfg.Server.CORSOrigins)(chain)
	}
	chain = middleware.Metrics(m)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
