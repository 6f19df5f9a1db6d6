// Package config loads the command-line tool's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/meigma/blastdb/internal/lookup"
	"github.com/meigma/blastdb/internal/visible"
)

// CacheConfig controls the disk block cache used for remote databases.
type CacheConfig struct {
	Dir       string `yaml:"dir"`
	MaxBytes  int64  `yaml:"max_bytes"`
	BlockSize int64  `yaml:"block_size"`
}

// HTTPConfig controls remote database access.
type HTTPConfig struct {
	Timeout string            `yaml:"timeout"`
	Headers map[string]string `yaml:"headers"`
	Pinned  bool              `yaml:"pinned"`
}

// LoggingConfig controls diagnostic output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// FASTAConfig controls dump output.
type FASTAConfig struct {
	Width       int    `yaml:"width"`
	Compression string `yaml:"compression"`
}

// Config is the top-level configuration.
type Config struct {
	// DB is the local path stem of the database.
	DB string `yaml:"db"`

	// URL is the URL stem of a remote database. It is used when DB is empty.
	URL string `yaml:"url"`

	Lookup  string        `yaml:"lookup"`
	Split   string        `yaml:"split"`
	Workers int           `yaml:"workers"`
	HTTP    HTTPConfig    `yaml:"http"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`
	FASTA   FASTAConfig   `yaml:"fasta"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Lookup: "scan",
		Split:  "none",
		HTTP: HTTPConfig{
			Timeout: "30s",
		},
		Cache: CacheConfig{
			BlockSize: 32 << 10, // 32 KiB
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "text",
		},
		FASTA: FASTAConfig{
			Width:       60,
			Compression: "none",
		},
	}
}

// Load reads configuration from r over the defaults. A nil or empty reader
// yields the defaults.
func Load(r io.Reader) (*Config, error) {
	cfg := Default()
	if r == nil {
		return cfg, nil
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) == 0 {
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads configuration from path. A missing file yields the defaults.
func LoadFile(path string) (*Config, error) {
	f, err := os.Open(path) //nolint:gosec // user-chosen config path
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, fmt.Errorf("open config file %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Validate checks values that cannot be checked by their consumers alone.
func (c *Config) Validate() error {
	if _, err := lookup.ParseMode(c.Lookup); err != nil {
		return fmt.Errorf("lookup: %w", err)
	}
	if _, err := visible.ParseSplitMode(c.Split); err != nil {
		return fmt.Errorf("split: %w", err)
	}
	switch strings.ToLower(c.FASTA.Compression) {
	case "", "none", "zstd":
	default:
		return fmt.Errorf("fasta.compression %q: want none or zstd", c.FASTA.Compression)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q: want text or json", c.Logging.Format)
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	if c.Cache.MaxBytes < 0 {
		return fmt.Errorf("cache.max_bytes %d is negative", c.Cache.MaxBytes)
	}
	if c.Cache.BlockSize < 0 {
		return fmt.Errorf("cache.block_size %d is negative", c.Cache.BlockSize)
	}
	return nil
}

// LogLevel parses Logging.Level; empty means warn.
func (c *Config) LogLevel() (slog.Level, error) {
	if c.Logging.Level == "" {
		return slog.LevelWarn, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Logging.Level)); err != nil {
		return 0, fmt.Errorf("logging.level: %w", err)
	}
	return level, nil
}

// HTTPTimeout parses HTTP.Timeout, returning def when it is empty or invalid.
// An invalid value is reported to logger.
func (c *Config) HTTPTimeout(def time.Duration, logger *slog.Logger) time.Duration {
	if c.HTTP.Timeout == "" || c.HTTP.Timeout == "0" {
		return def
	}
	d, err := time.ParseDuration(c.HTTP.Timeout)
	if err != nil {
		if logger != nil {
			logger.Warn("invalid http.timeout, using default",
				slog.String("input", c.HTTP.Timeout),
				slog.Duration("default", def),
				slog.Any("error", err))
		}
		return def
	}
	return d
}
