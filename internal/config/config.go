// Package config provides YAML-based configuration loading with
// environment variable expansion and field validation.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	App       AppConfig       `yaml:"app"`
	Project   ProjectConfig   `yaml:"project"`
	SQLite    SQLiteConfig    `yaml:"sqlite"`
	Indexing  IndexingConfig  `yaml:"indexing"`
	Embedding EmbeddingConfig `yaml:"embedding"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Project.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Indexing.Validate(); err != nil {
		return err
	}
	return c.Embedding.Validate()
}

// AppConfig holds application-level configuration.
type AppConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// ProjectConfig holds the tree to index and its exclusion sources.
type ProjectConfig struct {
	Root          string   `yaml:"root"`
	ExtraExclude  []string `yaml:"extra_exclude"`
	UseGitIgnore  bool     `yaml:"use_gitignore"`
	UseToolIgnore bool     `yaml:"use_atlasignore"`
}

// Validate validates the project configuration.
func (c *ProjectConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Root, validation.Required),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// IndexingConfig holds orchestrator tuning.
type IndexingConfig struct {
	Workers            int   `yaml:"workers"`
	BatchSize          int   `yaml:"batch_size"`
	CheckpointEvery    int   `yaml:"checkpoint_every"`
	MaxFileSize        int64 `yaml:"max_file_size"`
	MaxEntitiesPerFile int   `yaml:"max_entities_per_file"`
	WatchDebounceMS    int   `yaml:"watch_debounce_ms"`
}

// WatchDebounce returns the watch debounce as a duration; zero means
// the watcher default.
func (c *IndexingConfig) WatchDebounce() time.Duration {
	return time.Duration(c.WatchDebounceMS) * time.Millisecond
}

// Validate validates the indexing configuration. Zero values mean
// "use the component default", so only negatives are rejected.
func (c *IndexingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Workers, validation.Min(0)),
		validation.Field(&c.BatchSize, validation.Min(0)),
		validation.Field(&c.CheckpointEvery, validation.Min(0)),
		validation.Field(&c.MaxFileSize, validation.Min(int64(0))),
		validation.Field(&c.MaxEntitiesPerFile, validation.Min(0)),
		validation.Field(&c.WatchDebounceMS, validation.Min(0)),
	)
}

// Embedding provider names accepted in configuration.
const (
	ProviderLocal  = "local"
	ProviderJina   = "jina"
	ProviderOpenAI = "openai"
)

// EmbeddingConfig holds embedding provider configuration. APIKey is
// normally supplied via environment expansion, e.g. "${JINA_API_KEY}".
type EmbeddingConfig struct {
	Provider  string `yaml:"provider"`
	APIKey    string `yaml:"api_key"`
	BatchSize int    `yaml:"batch_size"`
	CacheSize int    `yaml:"cache_size"`
}

// Validate validates the embedding configuration.
func (c *EmbeddingConfig) Validate() error {
	if c.Provider == "" {
		c.Provider = ProviderLocal
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Provider, validation.Required, validation.In(ProviderLocal, ProviderJina, ProviderOpenAI)),
		validation.Field(&c.BatchSize, validation.Min(0)),
		validation.Field(&c.CacheSize, validation.Min(0)),
	); err != nil {
		return err
	}
	if c.Provider != ProviderLocal && c.APIKey == "" {
		return fmt.Errorf("embedding: provider is %q but api_key is empty", c.Provider)
	}
	return nil
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: AppConfig{
			LogLevel: slog.LevelInfo,
		},
		Project: ProjectConfig{
			Root:          ".",
			UseGitIgnore:  true,
			UseToolIgnore: true,
		},
		SQLite: SQLiteConfig{
			Path: ".atlas/index.db",
		},
		Embedding: EmbeddingConfig{
			Provider: ProviderLocal,
		},
	}
}

// Load loads configuration from a YAML file with environment variable
// expansion, then validates it.
func Load(filename string, target *Config) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}

	expandedData := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expandedData), target); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", filename, err)
	}

	if err := target.Validate(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// LoadOrDefault loads the config file when it exists and falls back to
// defaults when it does not. Any other error is returned.
func LoadOrDefault(filename string) (*Config, error) {
	cfg := NewDefaultConfig()
	if filename == "" {
		return cfg, nil
	}
	if _, err := os.Stat(filename); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err := Load(filename, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
