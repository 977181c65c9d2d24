package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads the TOML file at path over Defaults(), loads .env if present
// and applies TPWATCH_* environment overrides. An empty path skips the file.
// The result is not validated; call Validate.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}

	// A missing .env is fine.
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// applyEnvOverrides overwrites fields whose TPWATCH_* variable is set, so
// secrets can be injected at deploy time.
func applyEnvOverrides(cfg *Config) {
	// ── GW2 ──
	setStr(&cfg.GW2.Source, "TPWATCH_GW2_SOURCE")
	setStr(&cfg.GW2.BaseURL, "TPWATCH_GW2_BASE_URL")
	setDuration(&cfg.GW2.HTTPTimeout, "TPWATCH_GW2_HTTP_TIMEOUT")
	setStr(&cfg.GW2.ReplayDir, "TPWATCH_GW2_REPLAY_DIR")

	// ── Store ──
	setStr(&cfg.Store.Backend, "TPWATCH_STORE_BACKEND")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "TPWATCH_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "TPWATCH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "TPWATCH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "TPWATCH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "TPWATCH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "TPWATCH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "TPWATCH_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "TPWATCH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "TPWATCH_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "TPWATCH_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "TPWATCH_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "TPWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "TPWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "TPWATCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "TPWATCH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "TPWATCH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "TPWATCH_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "TPWATCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "TPWATCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "TPWATCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "TPWATCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "TPWATCH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "TPWATCH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "TPWATCH_S3_FORCE_PATH_STYLE")

	// ── Collector ──
	setItemIDs(&cfg.Collector.Items, "TPWATCH_COLLECTOR_ITEMS")
	setDuration(&cfg.Collector.Interval, "TPWATCH_COLLECTOR_INTERVAL")
	setInt(&cfg.Collector.Concurrency, "TPWATCH_COLLECTOR_CONCURRENCY")
	setDuration(&cfg.Collector.LockTTL, "TPWATCH_COLLECTOR_LOCK_TTL")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "TPWATCH_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Cron, "TPWATCH_ARCHIVE_CRON")
	setStr(&cfg.Archive.Prefix, "TPWATCH_ARCHIVE_PREFIX")

	// ── Server ──
	setInt(&cfg.Server.Port, "TPWATCH_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "TPWATCH_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "TPWATCH_SERVER_API_KEY")

	// ── Top-level ──
	setStr(&cfg.Mode, "TPWATCH_MODE")
	setStr(&cfg.LogLevel, "TPWATCH_LOG_LEVEL")
}

// Each helper only touches dst when the variable is set, non-empty and
// parses.

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		*dst = n
	}
}

func setBool(dst *bool, key string) {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		*dst = b
	}
}

func setDuration(dst *duration, key string) {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		dst.Duration = d
	}
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func setStringSlice(dst *[]string, key string) {
	if parts := splitList(os.Getenv(key)); len(parts) > 0 {
		*dst = parts
	}
}

// setItemIDs parses a comma-separated id list. The whole value is ignored
// if any entry is not a valid id.
func setItemIDs(dst *[]uint32, key string) {
	parts := splitList(os.Getenv(key))
	if len(parts) == 0 {
		return
	}
	ids := make([]uint32, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.ParseUint(p, 10, 32)
		if err != nil || n == 0 {
			return
		}
		ids = append(ids, uint32(n))
	}
	*dst = ids
}
