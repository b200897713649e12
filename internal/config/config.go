// Package config loads goLite settings from an optional config file and
// GOLITE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"goLite/internal/logger"
	"goLite/internal/pager"
	"goLite/internal/storage"
)

// EnvPrefix is prepended to every environment variable, e.g.
// GOLITE_PAGE_SIZE or GOLITE_LOG_LEVEL.
const EnvPrefix = "GOLITE"

// ErrInvalid is returned for settings out of range.
var ErrInvalid = errors.New("config: invalid setting")

type Config struct {
	PageSize   int       `mapstructure:"page_size"`
	CachePages int       `mapstructure:"cache_pages"`
	AsyncIO    bool      `mapstructure:"async_io"`
	IOWorkers  int       `mapstructure:"io_workers"`
	ReadOnly   bool      `mapstructure:"read_only"`
	Log        LogConfig `mapstructure:"log"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("page_size", storage.DefaultPageSize)
	v.SetDefault("cache_pages", 2000)
	v.SetDefault("async_io", false)
	v.SetDefault("io_workers", 4)
	v.SetDefault("read_only", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// Default returns the built-in settings.
func Default() Config {
	cfg, _ := load(viper.New(), "")
	return cfg
}

// Load reads file (skipped when empty), then the environment, over the
// defaults.
func Load(file string) (Config, error) {
	return load(viper.New(), file)
}

func load(v *viper.Viper, file string) (Config, error) {
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that every setting is usable.
func (c Config) Validate() error {
	if !storage.ValidPageSize(c.PageSize) {
		return fmt.Errorf("%w: page_size %d is not a power of two in [512, 65536]", ErrInvalid, c.PageSize)
	}
	if c.CachePages <= 0 {
		return fmt.Errorf("%w: cache_pages must be positive", ErrInvalid)
	}
	if c.IOWorkers <= 0 {
		return fmt.Errorf("%w: io_workers must be positive", ErrInvalid)
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format %q", ErrInvalid, c.Log.Format)
	}
	return nil
}

// PagerOptions maps the settings onto pager options.
func (c Config) PagerOptions() pager.Options {
	return pager.Options{
		PageSize:   c.PageSize,
		CachePages: c.CachePages,
		AsyncIO:    c.AsyncIO,
		Workers:    c.IOWorkers,
		ReadOnly:   c.ReadOnly,
	}
}

// Logger returns the logger settings.
func (c Config) Logger() logger.Config {
	return logger.Config{Level: c.Log.Level, Format: c.Log.Format}
}
