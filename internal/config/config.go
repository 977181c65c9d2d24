// Package config defines the tpwatch configuration and its validation.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/tpwatch/internal/pipeline"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by TPWATCH_* environment
// variables.
type Config struct {
	GW2       GW2Config       `toml:"gw2"`
	Store     StoreConfig     `toml:"store"`
	Postgres  PostgresConfig  `toml:"postgres"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Collector CollectorConfig `toml:"collector"`
	Archive   ArchiveConfig   `toml:"archive"`
	Server    ServerConfig    `toml:"server"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// GW2Config selects and configures the price source.
type GW2Config struct {
	// Source is "api" for the live API or "replay" for recorded fixtures.
	Source      string   `toml:"source"`
	BaseURL     string   `toml:"base_url"`
	HTTPTimeout duration `toml:"http_timeout"`
	// ReplayDir holds {item_id}.json listings fixtures when Source is "replay".
	ReplayDir string `toml:"replay_dir"`
}

// StoreConfig selects the price store backend.
type StoreConfig struct {
	Backend string `toml:"backend"` // memory | postgres | redis
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters. Redis is used when it is
// the store backend and, when Enabled, as the event bus and lock manager.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// CollectorConfig lists the watched items and how often they are recorded.
type CollectorConfig struct {
	Items       []uint32 `toml:"items"`
	Interval    duration `toml:"interval"`
	Concurrency int      `toml:"concurrency"`
	// LockTTL bounds how long one instance holds the collector lock. Only
	// used when Redis is enabled.
	LockTTL duration `toml:"lock_ttl"`
}

// ArchiveConfig controls the cold-storage archive.
type ArchiveConfig struct {
	Enabled bool   `toml:"enabled"`
	Cron    string `toml:"cron"`
	Prefix  string `toml:"prefix"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
}

// duration wraps time.Duration so TOML strings like "5m" decode into it.
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with the values used when the TOML
// file leaves a setting out.
func Defaults() Config {
	return Config{
		GW2: GW2Config{
			Source:      "api",
			BaseURL:     "https://api.guildwars2.com/v2",
			HTTPTimeout: duration{30 * time.Second},
			ReplayDir:   "testdata/listings",
		},
		Store: StoreConfig{Backend: "memory"},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "tpwatch",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "tpwatch-archive",
			ForcePathStyle: true,
		},
		Collector: CollectorConfig{
			Interval:    duration{5 * time.Minute},
			Concurrency: 4,
			LockTTL:     duration{4 * time.Minute},
		},
		Archive: ArchiveConfig{
			Cron:   "0 3 * * *",
			Prefix: "archive/prices",
		},
		Server: ServerConfig{
			Port: 8080,
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

var (
	validModes     = map[string]bool{"once": true, "collect": true, "server": true, "full": true}
	validBackends  = map[string]bool{"memory": true, "postgres": true, "redis": true}
	validSources   = map[string]bool{"api": true, "replay": true}
	validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
)

// Collects reports whether the mode runs the collector.
func (c *Config) Collects() bool {
	switch strings.ToLower(c.Mode) {
	case "once", "collect", "full":
		return true
	}
	return false
}

// Serves reports whether the mode runs the HTTP server.
func (c *Config) Serves() bool {
	switch strings.ToLower(c.Mode) {
	case "server", "full":
		return true
	}
	return false
}

// UsesRedis reports whether any component needs a Redis connection.
func (c *Config) UsesRedis() bool {
	return c.Redis.Enabled || strings.EqualFold(c.Store.Backend, "redis")
}

// Validate checks c for invalid or missing values and returns every problem
// found, joined.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if !validModes[strings.ToLower(c.Mode)] {
		add("config: invalid mode %q (must be once, collect, server or full)", c.Mode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		add("config: invalid log_level %q", c.LogLevel)
	}

	if !validSources[strings.ToLower(c.GW2.Source)] {
		add("config: gw2.source %q must be api or replay", c.GW2.Source)
	}
	if strings.EqualFold(c.GW2.Source, "replay") && c.GW2.ReplayDir == "" {
		add("config: gw2.replay_dir is required when gw2.source is replay")
	}
	if c.GW2.HTTPTimeout.Duration < 0 {
		add("config: gw2.http_timeout must not be negative")
	}

	if !validBackends[strings.ToLower(c.Store.Backend)] {
		add("config: store.backend %q must be memory, postgres or redis", c.Store.Backend)
	}
	if strings.EqualFold(c.Store.Backend, "postgres") && c.Postgres.DSN == "" && c.Postgres.Host == "" {
		add("config: postgres.dsn or postgres.host is required for the postgres backend")
	}
	if c.UsesRedis() && c.Redis.Addr == "" {
		add("config: redis.addr is required")
	}

	if c.Collects() {
		if len(c.Collector.Items) == 0 {
			add("config: collector.items must list at least one item id in mode %q", c.Mode)
		}
		for _, id := range c.Collector.Items {
			if id == 0 {
				add("config: collector.items contains invalid item id 0")
				break
			}
		}
		if c.Collector.Interval.Duration <= 0 {
			add("config: collector.interval must be positive")
		}
		if c.Collector.Concurrency < 1 {
			add("config: collector.concurrency must be at least 1")
		}
		if c.Redis.Enabled && c.Collector.LockTTL.Duration <= 0 {
			add("config: collector.lock_ttl must be positive when redis is enabled")
		}
	}

	if c.Archive.Enabled {
		if c.S3.Bucket == "" || c.S3.Region == "" {
			add("config: s3.bucket and s3.region are required when archive is enabled")
		}
		if err := pipeline.ValidateCron(c.Archive.Cron); err != nil {
			add("config: archive.cron %q: %w", c.Archive.Cron, err)
		}
	}

	if c.Serves() && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		add("config: server.port %d out of range", c.Server.Port)
	}

	return errors.Join(errs...)
}
