// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Server, Postgres, Kafka, Redis, Indexer, Search, etc.).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Search   SearchConfig   `yaml:"search"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`

	// RateLimit is the request budget per client per RateWindow; 0 disables
	// limiting.
	RateLimit   int           `yaml:"rateLimit"`
	RateWindow  time.Duration `yaml:"rateWindow"`
	CORSOrigins []string      `yaml:"corsOrigins"`
}

// PostgresConfig holds PostgreSQL connection parameters for the record source.
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings. An empty broker list
// disables event publishing and consumption.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// Enabled reports whether any broker is configured.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexComplete   string `yaml:"indexComplete"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and caching parameters. An empty
// address disables the shared cache.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// Record sources understood by the indexer.
const (
	SourceFile     = "file"
	SourcePostgres = "postgres"
)

// CollectionConfig names one civic-record collection and where it is read
// from: a JSON file under IndexerConfig.DataDir or a logical collection
// name in the civic_records table.
type CollectionConfig struct {
	Name  string `yaml:"name"`
	File  string `yaml:"file"`
	Table string `yaml:"table"`
}

// IndexerConfig controls where records come from and where the build
// artifacts are written.
type IndexerConfig struct {
	Source      string             `yaml:"source"`
	DataDir     string             `yaml:"dataDir"`
	ArtifactDir string             `yaml:"artifactDir"`
	Collections []CollectionConfig `yaml:"collections"`
	Workers     int                `yaml:"workers"`
	LoadRetries int                `yaml:"loadRetries"`
	LoadTimeout time.Duration      `yaml:"loadTimeout"`
}

// CollectionNames returns collection names in build order.
func (c IndexerConfig) CollectionNames() []string {
	names := make([]string, len(c.Collections))
	for i, col := range c.Collections {
		names[i] = col.Name
	}
	return names
}

// SearchConfig controls retrieval limits and result presentation.
type SearchConfig struct {
	DefaultTopK   int      `yaml:"defaultTopK"`
	MaxResults    int      `yaml:"maxResults"`
	SnippetChars  int      `yaml:"snippetChars"`
	SnippetFields int      `yaml:"snippetFields"`
	TitleFields   []string `yaml:"titleFields"`
	CacheSize     int      `yaml:"cacheSize"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided), applies environment-variable
// overrides and validates the result. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Default returns a Config with defaults for local development: records
// read from ./data, artifacts written next to them.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateLimit:       120,
			RateWindow:      time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "civicpulse",
			User:            "civicpulse",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			ConsumerGroup: "civicsearch",
			Topics: KafkaTopics{
				IndexComplete:   "index.complete",
				AnalyticsEvents: "analytics-events",
			},
		},
		Redis: RedisConfig{
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Indexer: IndexerConfig{
			Source:      SourceFile,
			DataDir:     "data",
			ArtifactDir: "data",
			Collections: []CollectionConfig{
				{Name: "events", File: "events.json"},
				{Name: "services", File: "services.json"},
				{Name: "ballots", File: "ballot_questions.json"},
				{Name: "notifications", File: "notifications.json"},
			},
			Workers:     4,
			LoadRetries: 3,
			LoadTimeout: 30 * time.Second,
		},
		Search: SearchConfig{
			DefaultTopK:   4,
			MaxResults:    50,
			SnippetChars:  300,
			SnippetFields: 4,
			TitleFields:   []string{"titulo", "name", "titulo_evento"},
			CacheSize:     1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// Validate rejects configurations the indexer or retriever cannot run with.
func (c *Config) Validate() error {
	var errs []error
	switch c.Indexer.Source {
	case SourceFile, SourcePostgres:
	default:
		errs = append(errs, fmt.Errorf("indexer.source %q must be %q or %q", c.Indexer.Source, SourceFile, SourcePostgres))
	}
	if len(c.Indexer.Collections) == 0 {
		errs = append(errs, errors.New("indexer.collections must not be empty"))
	}
	seen := make(map[string]struct{}, len(c.Indexer.Collections))
	for i, col := range c.Indexer.Collections {
		if col.Name == "" {
			errs = append(errs, fmt.Errorf("indexer.collections[%d].name is required", i))
			continue
		}
		if _, dup := seen[col.Name]; dup {
			errs = append(errs, fmt.Errorf("indexer.collections: duplicate name %q", col.Name))
		}
		seen[col.Name] = struct{}{}
	}
	if c.Indexer.ArtifactDir == "" {
		errs = append(errs, errors.New("indexer.artifactDir is required"))
	}
	if c.Search.DefaultTopK <= 0 {
		errs = append(errs, fmt.Errorf("search.defaultTopK must be positive, got %d", c.Search.DefaultTopK))
	}
	if c.Search.MaxResults < c.Search.DefaultTopK {
		errs = append(errs, fmt.Errorf("search.maxResults (%d) must be at least search.defaultTopK (%d)", c.Search.MaxResults, c.Search.DefaultTopK))
	}
	if c.Server.RateLimit < 0 || (c.Server.RateLimit > 0 && c.Server.RateWindow <= 0) {
		errs = append(errs, errors.New("server.rateLimit must be non-negative with a positive server.rateWindow"))
	}
	if c.Search.SnippetChars <= 0 || c.Search.SnippetFields <= 0 {
		errs = append(errs, errors.New("search.snippetChars and search.snippetFields must be positive"))
	}
	return errors.Join(errs...)
}

// applyEnvOverrides reads CS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("CS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("CS_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("CS_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("CS_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("CS_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("CS_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("CS_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("CS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("CS_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("CS_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("CS_INDEXER_SOURCE"); v != "" {
		cfg.Indexer.Source = v
	}
	if v := os.Getenv("CS_INDEXER_DATA_DIR"); v != "" {
		cfg.Indexer.DataDir = v
	}
	if v := os.Getenv("CS_INDEXER_ARTIFACT_DIR"); v != "" {
		cfg.Indexer.ArtifactDir = v
	}
	if v := os.Getenv("CS_SEARCH_DEFAULT_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil {
			cfg.Search.DefaultTopK = k
		}
	}
	if v := os.Getenv("CS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
