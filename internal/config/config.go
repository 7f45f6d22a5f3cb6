// Package config loads service configuration from an optional YAML file
// and YTFETCH_* environment variables.
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

// Config is the full service configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Provider ProviderConfig `yaml:"provider"`
	Cache    CacheConfig    `yaml:"cache"`
	History  HistoryConfig  `yaml:"history"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Addr             string        `yaml:"addr"`
	CORSOrigins      []string      `yaml:"cors_origins"`
	RateLimit        float64       `yaml:"rate_limit"` // requests per second per client IP; 0 disables
	RateBurst        int           `yaml:"rate_burst"`
	RequestTimeout   time.Duration `yaml:"request_timeout"`
	PresentableLimit int           `yaml:"presentable_limit"`
}

type ProviderConfig struct {
	ProxyURL       string        `yaml:"proxy_url"`
	CookiesFile    string        `yaml:"cookies_file"`
	MaxRetries     int           `yaml:"max_retries"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff"`
	Timeout        time.Duration `yaml:"timeout"`
}

type CacheConfig struct {
	Backend       string        `yaml:"backend"` // memory, redis, none
	TTL           time.Duration `yaml:"ttl"`
	MaxEntries    int           `yaml:"max_entries"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
}

type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

type LogConfig struct {
	Verbosity int    `yaml:"verbosity"`
	File      string `yaml:"file"`
	JSON      bool   `yaml:"json"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:             ":8080",
			CORSOrigins:      []string{"*"},
			RateLimit:        5,
			RateBurst:        10,
			RequestTimeout:   30 * time.Second,
			PresentableLimit: 10,
		},
		Provider: ProviderConfig{
			MaxRetries:     2,
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     3 * time.Second,
		},
		Cache: CacheConfig{
			Backend:    "memory",
			TTL:        15 * time.Minute,
			MaxEntries: 256,
			RedisAddr:  "localhost:6379",
		},
		History: HistoryConfig{
			Path: "ytfetch-history.db",
		},
	}
}

// Load reads path (skipped when empty) over the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from YTFETCH_* variables. PORT, when set,
// replaces the listen address with ":<PORT>".
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *time.Duration) {
		if v, ok := lookup(key); ok && v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = d
		}
	}
	boolean := func(key string, dst *bool) {
		if v, ok := lookup(key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", key, err))
				return
			}
			*dst = b
		}
	}

	str("YTFETCH_ADDR", &c.Server.Addr)
	if v, ok := lookup("PORT"); ok && v != "" {
		c.Server.Addr = ":" + v
	}
	if v, ok := lookup("YTFETCH_CORS_ORIGINS"); ok && v != "" {
		c.Server.CORSOrigins = splitList(v)
	}
	float("YTFETCH_RATE_LIMIT", &c.Server.RateLimit)
	integer("YTFETCH_RATE_BURST", &c.Server.RateBurst)
	duration("YTFETCH_REQUEST_TIMEOUT", &c.Server.RequestTimeout)
	integer("YTFETCH_PRESENTABLE_LIMIT", &c.Server.PresentableLimit)

	str("YTFETCH_PROXY", &c.Provider.ProxyURL)
	str("YTFETCH_COOKIES", &c.Provider.CookiesFile)
	integer("YTFETCH_MAX_RETRIES", &c.Provider.MaxRetries)
	duration("YTFETCH_PROVIDER_TIMEOUT", &c.Provider.Timeout)

	str("YTFETCH_CACHE", &c.Cache.Backend)
	duration("YTFETCH_CACHE_TTL", &c.Cache.TTL)
	integer("YTFETCH_CACHE_MAX_ENTRIES", &c.Cache.MaxEntries)
	str("YTFETCH_REDIS_ADDR", &c.Cache.RedisAddr)
	str("YTFETCH_REDIS_PASSWORD", &c.Cache.RedisPassword)
	integer("YTFETCH_REDIS_DB", &c.Cache.RedisDB)

	boolean("YTFETCH_HISTORY", &c.History.Enabled)
	str("YTFETCH_HISTORY_PATH", &c.History.Path)

	integer("YTFETCH_VERBOSITY", &c.Log.Verbosity)
	str("YTFETCH_LOG_FILE", &c.Log.File)
	boolean("YTFETCH_LOG_JSON", &c.Log.JSON)

	return errors.Join(errs...)
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("server.rate_limit must be >= 0"))
	}
	if c.Server.RateLimit > 0 && c.Server.RateBurst < 1 {
		errs = append(errs, errors.New("server.rate_burst must be >= 1 when rate limiting"))
	}
	if c.Server.PresentableLimit < 0 {
		errs = append(errs, errors.New("server.presentable_limit must be >= 0"))
	}
	if c.Provider.MaxRetries < 0 {
		errs = append(errs, errors.New("provider.max_retries must be >= 0"))
	}
	switch c.Cache.Backend {
	case "memory", "none":
	case "redis":
		if c.Cache.RedisAddr == "" {
			errs = append(errs, errors.New("cache.redis_addr is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q must be memory, redis or none", c.Cache.Backend))
	}
	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, errors.New("history.path is required when history is enabled"))
	}
	return errors.Join(errs...)
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
