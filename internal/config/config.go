// Package config loads branchpoll settings from a YAML file, a .env file and
// BRANCHPOLL_* environment variables, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/branchpoll/internal/logging"
	"gopkg.in/yaml.v3"
)

// Storage backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// EnvPrefix marks the environment variables read by Load.
const EnvPrefix = "BRANCHPOLL_"

// Config is the full runtime configuration.
type Config struct {
	Backend       string        `yaml:"backend"`
	DataDir       string        `yaml:"data_dir"`
	SQLitePath    string        `yaml:"sqlite_path"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	IndentUnit    int           `yaml:"indent_unit"`

	Redis RedisConfig `yaml:"redis"`
	HTTP  HTTPConfig  `yaml:"http"`
	Log   LogConfig   `yaml:"log"`
}

// RedisConfig configures the redis backend and the distributed session lock.
type RedisConfig struct {
	Addr       string        `yaml:"addr"`
	Password   string        `yaml:"password"`
	DB         int           `yaml:"db"`
	Prefix     string        `yaml:"prefix"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

// HTTPConfig configures `branchpoll serve`.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	Metrics         bool          `yaml:"metrics"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Backend:       BackendFile,
		DataDir:       ".branchpoll",
		FlushInterval: 5 * time.Second,
		IndentUnit:    2,
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "branchpoll:",
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
			Metrics:         true,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load builds the configuration. An empty path skips the YAML file; a
// missing .env file is not an error.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(".env"); err != nil {
		return nil, err
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(cfg, os.Environ()); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks that the values are usable together.
func (c *Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendMemory, BackendFile, BackendSQLite, BackendRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}
	if c.Backend == BackendFile && c.DataDir == "" {
		errs = append(errs, errors.New("data_dir is required for the file backend"))
	}
	if c.Backend == BackendRedis && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr is required for the redis backend"))
	}
	if c.IndentUnit < 1 {
		errs = append(errs, fmt.Errorf("indent_unit must be at least 1, got %d", c.IndentUnit))
	}
	if c.FlushInterval < 0 {
		errs = append(errs, errors.New("flush_interval must not be negative"))
	}
	if c.Redis.SessionTTL < 0 {
		errs = append(errs, errors.New("redis.session_ttl must not be negative"))
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

// SnapshotPath is the JSON snapshot used by the file backend.
func (c *Config) SnapshotPath() string {
	return filepath.Join(c.DataDir, "poll_data.json")
}

// SessionsDir holds per-respondent session files of the file backend.
func (c *Config) SessionsDir() string {
	return filepath.Join(c.DataDir, "sessions")
}

// DatabasePath is the SQLite database of the sqlite backend.
func (c *Config) DatabasePath() string {
	if c.SQLitePath != "" {
		return c.SQLitePath
	}
	return filepath.Join(c.DataDir, "branchpoll.db")
}

// trimEnv keeps the BRANCHPOLL_* variables with the prefix removed.
func trimEnv(environ []string) map[string]any {
	out := make(map[string]any)
	for _, kv := range environ {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		out[strings.TrimPrefix(key, EnvPrefix)] = value
	}
	return out
}
