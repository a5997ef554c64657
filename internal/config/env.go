package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
)

// overlay lists every environment override. Nil fields were not set.
type overlay struct {
	Backend       *string        `mapstructure:"BACKEND"`
	DataDir       *string        `mapstructure:"DATA_DIR"`
	SQLitePath    *string        `mapstructure:"SQLITE_PATH"`
	FlushInterval *time.Duration `mapstructure:"FLUSH_INTERVAL"`
	IndentUnit    *int           `mapstructure:"INDENT_UNIT"`

	RedisAddr       *string        `mapstructure:"REDIS_ADDR"`
	RedisPassword   *string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB         *int           `mapstructure:"REDIS_DB"`
	RedisPrefix     *string        `mapstructure:"REDIS_PREFIX"`
	RedisSessionTTL *time.Duration `mapstructure:"REDIS_SESSION_TTL"`

	HTTPAddr            *string        `mapstructure:"HTTP_ADDR"`
	HTTPShutdownTimeout *time.Duration `mapstructure:"HTTP_SHUTDOWN_TIMEOUT"`
	HTTPMetrics         *bool          `mapstructure:"HTTP_METRICS"`

	LogLevel  *string `mapstructure:"LOG_LEVEL"`
	LogFormat *string `mapstructure:"LOG_FORMAT"`
}

// loadDotEnv exports the variables of path without overriding the real environment.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// applyEnv decodes the BRANCHPOLL_* variables of environ onto cfg.
func applyEnv(cfg *Config, environ []string) error {
	var o overlay
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           &o,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(trimEnv(environ)); err != nil {
		return fmt.Errorf("invalid %s* environment: %w", EnvPrefix, err)
	}

	set(&cfg.Backend, o.Backend)
	set(&cfg.DataDir, o.DataDir)
	set(&cfg.SQLitePath, o.SQLitePath)
	set(&cfg.FlushInterval, o.FlushInterval)
	set(&cfg.IndentUnit, o.IndentUnit)

	set(&cfg.Redis.Addr, o.RedisAddr)
	set(&cfg.Redis.Password, o.RedisPassword)
	set(&cfg.Redis.DB, o.RedisDB)
	set(&cfg.Redis.Prefix, o.RedisPrefix)
	set(&cfg.Redis.SessionTTL, o.RedisSessionTTL)

	set(&cfg.HTTP.Addr, o.HTTPAddr)
	set(&cfg.HTTP.ShutdownTimeout, o.HTTPShutdownTimeout)
	set(&cfg.HTTP.Metrics, o.HTTPMetrics)

	set(&cfg.Log.Level, o.LogLevel)
	set(&cfg.Log.Format, o.LogFormat)
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}
