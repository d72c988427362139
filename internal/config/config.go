package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

const (
	// EnvPrefix prefixes every environment override, e.g. SEMINDEX_VECTOR_BACKEND
	EnvPrefix = "SEMINDEX"

	// BackendSQLite stores vectors in the local SQLite database
	BackendSQLite = "sqlite"
	// BackendQdrant stores vectors in a Qdrant server
	BackendQdrant = "qdrant"
)

// DefaultIgnore lists hard exclusions shared by every project.
var DefaultIgnore = []string{
	".git",
	".semindex",
	"node_modules",
	"dist",
	"venv",
	"__pycache__",
	".pytest_cache",
}

// Config holds all application configuration.
type Config struct {
	DataDir   string          `mapstructure:"data_dir"`
	Vector    VectorConfig    `mapstructure:"vector"`
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	Chunker   ChunkerConfig   `mapstructure:"chunker"`
	Indexer   IndexerConfig   `mapstructure:"indexer"`
	Ignore    IgnoreConfig    `mapstructure:"ignore"`
	Log       LogConfig       `mapstructure:"log"`
}

type VectorConfig struct {
	Backend string       `mapstructure:"backend"`
	Qdrant  QdrantConfig `mapstructure:"qdrant"`
}

type QdrantConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type EmbeddingConfig struct {
	Provider    string `mapstructure:"provider"` // jina, openai, local; empty auto-detects
	APIKey      string `mapstructure:"api_key"`
	CacheSize   int    `mapstructure:"cache_size"`
	MaxAttempts int    `mapstructure:"max_attempts"`
}

type ChunkerConfig struct {
	MaxChars     int `mapstructure:"max_chars"`
	OverlapChars int `mapstructure:"overlap_chars"`
}

type IndexerConfig struct {
	Workers int `mapstructure:"workers"`
}

type IgnoreConfig struct {
	Defaults []string `mapstructure:"defaults"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// DBPath returns the SQLite database location inside the data directory
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "semindex.db")
}

// LockPath returns the path of the data directory lock file
func (c *Config) LockPath() string {
	return filepath.Join(c.DataDir, "semindex.lock")
}

// SlogLevel maps the configured level name to a slog level
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate checks configuration for issues and returns warnings.
func (c *Config) Validate() []string {
	var warnings []string

	switch c.Vector.Backend {
	case BackendSQLite, BackendQdrant:
	default:
		warnings = append(warnings, fmt.Sprintf("unknown vector backend '%s', falling back to %s", c.Vector.Backend, BackendSQLite))
		c.Vector.Backend = BackendSQLite
	}

	if c.Chunker.OverlapChars >= c.Chunker.MaxChars {
		warnings = append(warnings, fmt.Sprintf("chunker overlap_chars %d is not smaller than max_chars %d", c.Chunker.OverlapChars, c.Chunker.MaxChars))
	}

	if c.Embedding.MaxAttempts > 1 {
		warnings = append(warnings, fmt.Sprintf("embedding max_attempts is %d; failed provider calls will be retried", c.Embedding.MaxAttempts))
	}

	return warnings
}

func setDefaults(v *viper.Viper) {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	v.SetDefault("data_dir", filepath.Join(home, ".semindex"))
	v.SetDefault("vector.backend", BackendSQLite)
	v.SetDefault("vector.qdrant.host", "localhost")
	v.SetDefault("vector.qdrant.port", 6334)
	v.SetDefault("embedding.provider", "")
	v.SetDefault("embedding.cache_size", 10000)
	v.SetDefault("embedding.max_attempts", 1)
	v.SetDefault("chunker.max_chars", 1200)
	v.SetDefault("chunker.overlap_chars", 120)
	v.SetDefault("indexer.workers", runtime.NumCPU())
	v.SetDefault("ignore.defaults", DefaultIgnore)
	v.SetDefault("log.level", "info")
}

// Default returns the configuration used when no file or environment is present.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Defaults alone always decode.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Load reads configuration from an optional file and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	cfg.DataDir = expandHome(cfg.DataDir)

	if warnings := cfg.Validate(); len(warnings) > 0 {
		for _, warning := range warnings {
			fmt.Fprintf(os.Stderr, "Warning: %s\n", warning)
		}
	}

	return &cfg, nil
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
