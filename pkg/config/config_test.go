package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, SourceFile, cfg.Indexer.Source)
	assert.Equal(t, []string{"events", "services", "ballots", "notifications"}, cfg.Indexer.CollectionNames())
	assert.Equal(t, 4, cfg.Search.DefaultTopK)
	assert.Equal(t, 300, cfg.Search.SnippetChars)
	assert.Equal(t, []string{"titulo", "name", "titulo_evento"}, cfg.Search.TitleFields)
	assert.False(t, cfg.Kafka.Enabled())
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
indexer:
  artifactDir: /var/lib/civicsearch
  collections:
    - name: events
      file: eventos.json
search:
  defaultTopK: 8
redis:
  cacheTTL: 2m
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/civicsearch", cfg.Indexer.ArtifactDir)
	assert.Equal(t, []CollectionConfig{{Name: "events", File: "eventos.json"}}, cfg.Indexer.Collections)
	assert.Equal(t, 8, cfg.Search.DefaultTopK)
	assert.Equal(t, 2*time.Minute, cfg.Redis.CacheTTL)
	assert.Equal(t, 300, cfg.Search.SnippetChars)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CS_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("CS_INDEXER_SOURCE", SourcePostgres)
	t.Setenv("CS_SEARCH_DEFAULT_TOP_K", "6")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Equal(t, SourcePostgres, cfg.Indexer.Source)
	assert.Equal(t, 6, cfg.Search.DefaultTopK)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(*Config){
		"non-positive top k":    func(c *Config) { c.Search.DefaultTopK = 0 },
		"unknown source":        func(c *Config) { c.Indexer.Source = "s3" },
		"no collections":        func(c *Config) { c.Indexer.Collections = nil },
		"duplicate collection":  func(c *Config) { c.Indexer.Collections = append(c.Indexer.Collections, CollectionConfig{Name: "events"}) },
		"unnamed collection":    func(c *Config) { c.Indexer.Collections[0].Name = "" },
		"max below default":     func(c *Config) { c.Search.MaxResults = 2 },
		"no artifact directory": func(c *Config) { c.Indexer.ArtifactDir = "" },
		"rate limit no window":  func(c *Config) { c.Server.RateWindow = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
	assert.NoError(t, Default().Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}
