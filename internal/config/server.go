// SPDX-License-Identifier: MIT

package config

import (
	"fmt"
	"net"
	"strings"
	"time"
)

const serverEnvPrefix = "EVENTD_"

// StoreConfig selects the event store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"` // memory|sqlite|badger
	Path    string `yaml:"path"`
}

// CacheConfig selects the latest-event cache.
type CacheConfig struct {
	Backend       string        `yaml:"backend"` // none|memory|redis
	TTL           time.Duration `yaml:"ttl"`
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
}

// RateLimitConfig configures per-IP request limiting.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
}

// ServerConfig drives cmd/eventd.
type ServerConfig struct {
	Listen          string          `yaml:"listen"`
	MetricsListen   string          `yaml:"metrics_listen"`
	ContextPath     string          `yaml:"context_path"`
	ShutdownTimeout time.Duration   `yaml:"shutdown_timeout"`
	LogLevel        string          `yaml:"log_level"`
	Store           StoreConfig     `yaml:"store"`
	Cache           CacheConfig     `yaml:"cache"`
	RateLimit       RateLimitConfig `yaml:"rate_limit"`
	Tracing         TracingConfig   `yaml:"tracing"`
}

// DefaultServer serves /event on :8080 from a local SQLite file.
func DefaultServer() ServerConfig {
	return ServerConfig{
		Listen:          ":8080",
		ContextPath:     "/event",
		ShutdownTimeout: 10 * time.Second,
		LogLevel:        "info",
		Store: StoreConfig{
			Backend: "sqlite",
			Path:    "events.db",
		},
		Cache: CacheConfig{
			Backend:   "memory",
			TTL:       5 * time.Second,
			RedisAddr: "localhost:6379",
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: 6000,
		},
		Tracing: TracingConfig{
			Exporter:     "http",
			Endpoint:     "localhost:4318",
			SamplingRate: 1.0,
		},
	}
}

// ServerLoader loads a ServerConfig with precedence ENV > File > Defaults.
type ServerLoader struct {
	path string
	env  *envTracker
}

// NewServerLoader creates a loader; an empty path skips the file layer.
func NewServerLoader(path string) *ServerLoader {
	return &ServerLoader{path: path, env: newEnvTracker(serverEnvPrefix)}
}

// ConsumedEnvKeys lists the environment keys the last Load read.
func (l *ServerLoader) ConsumedEnvKeys() []string { return l.env.Consumed() }

// Load returns the validated configuration.
func (l *ServerLoader) Load() (ServerConfig, error) {
	cfg := DefaultServer()

	if l.path != "" {
		if err := decodeFile(l.path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config file: %w", err)
		}
	}

	e := l.env
	cfg.Listen = e.str("LISTEN", cfg.Listen)
	cfg.MetricsListen = e.str("METRICS_LISTEN", cfg.MetricsListen)
	cfg.ContextPath = e.str("CONTEXT_PATH", cfg.ContextPath)
	cfg.ShutdownTimeout = e.duration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.LogLevel = e.str("LOG_LEVEL", cfg.LogLevel)
	cfg.Store.Backend = e.str("STORE_BACKEND", cfg.Store.Backend)
	cfg.Store.Path = e.str("STORE_PATH", cfg.Store.Path)
	cfg.Cache.Backend = e.str("CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.TTL = e.duration("CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.RedisAddr = e.str("REDIS_ADDR", cfg.Cache.RedisAddr)
	cfg.Cache.RedisPassword = e.str("REDIS_PASSWORD", cfg.Cache.RedisPassword)
	cfg.Cache.RedisDB = e.integer("REDIS_DB", cfg.Cache.RedisDB)
	cfg.RateLimit.Enabled = e.boolean("RATE_LIMIT_ENABLED", cfg.RateLimit.Enabled)
	cfg.RateLimit.RequestsPerMinute = e.integer("RATE_LIMIT_RPM", cfg.RateLimit.RequestsPerMinute)
	mergeTracingEnv(e, &cfg.Tracing)

	cfg.ContextPath = normalizeContextPath(cfg.ContextPath)

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// normalizeContextPath yields "" or "/segment" without a trailing slash.
func normalizeContextPath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.TrimRight(p, "/")
	if p == "" {
		return ""
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return p
}

// Validate checks listener addresses and backend selections.
func (c ServerConfig) Validate() error {
	if _, _, err := net.SplitHostPort(c.Listen); err != nil {
		return fmt.Errorf("%w: listen %q: %v", ErrInvalidConfig, c.Listen, err)
	}
	if c.MetricsListen != "" {
		if _, _, err := net.SplitHostPort(c.MetricsListen); err != nil {
			return fmt.Errorf("%w: metrics_listen %q: %v", ErrInvalidConfig, c.MetricsListen, err)
		}
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("%w: shutdown_timeout must be positive", ErrInvalidConfig)
	}
	switch c.Store.Backend {
	case "memory":
	case "sqlite", "badger":
		if strings.TrimSpace(c.Store.Path) == "" {
			return fmt.Errorf("%w: store.path is required for %s", ErrInvalidConfig, c.Store.Backend)
		}
	default:
		return fmt.Errorf("%w: unknown store backend %q (supported: memory, sqlite, badger)", ErrInvalidConfig, c.Store.Backend)
	}
	switch c.Cache.Backend {
	case "none", "":
	case "memory", "redis":
		if c.Cache.TTL <= 0 {
			return fmt.Errorf("%w: cache.ttl must be positive", ErrInvalidConfig)
		}
		if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
			return fmt.Errorf("%w: cache.redis_addr is required for redis", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown cache backend %q (supported: none, memory, redis)", ErrInvalidConfig, c.Cache.Backend)
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("%w: rate_limit.requests_per_minute must be positive", ErrInvalidConfig)
	}
	return c.Tracing.validate()
}
