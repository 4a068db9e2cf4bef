// Package config parses and validates all application configuration from
// environment variables using caarlos0/env/v11.
//
// Call [Load] once at startup; pass the resulting [Config] to subcommands.
// Server exits if any field tagged "required" is missing.
package config

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration sourced from environment variables.
// Field defaults are given by the envDefault tags.
type Config struct {
	// ── Database ─────────────────────────────────────────────────────────────────
	DatabaseURL          string        `env:"DATABASE_URL,required"`
	DBMaxConns           int32         `env:"DB_MAX_CONNS"            envDefault:"25"`
	DBMaxConnIdleTime    time.Duration `env:"DB_MAX_CONN_IDLE_TIME"   envDefault:"5m"`
	DBStatementTimeoutMS int           `env:"DB_STATEMENT_TIMEOUT_MS" envDefault:"14000"`

	// ── Server ───────────────────────────────────────────────────────────────────
	ListenAddr             string `env:"LISTEN_ADDR"              envDefault:":8080"`
	AppEnv                 string `env:"APP_ENV"                  envDefault:"development"`
	ShutdownTimeoutSeconds int    `env:"SHUTDOWN_TIMEOUT_SECONDS" envDefault:"60"`

	// ── Worker pool ──────────────────────────────────────────────────────────────
	WorkerCount               int           `env:"WORKER_POOL_SIZE"                  envDefault:"4"`
	WorkerLeaseTTLSeconds     int           `env:"WORKER_LEASE_TTL_SECONDS"          envDefault:"300"`
	WorkerPollInterval        time.Duration `env:"WORKER_POLL_INTERVAL"              envDefault:"1s"`
	WorkerMaxRetries          int32         `env:"WORKER_MAX_RETRIES"                envDefault:"3"`
	MetricsSnapshotIntervalS  int           `env:"METRICS_SNAPSHOT_INTERVAL_SECONDS" envDefault:"60"`

	// ── Admission control ────────────────────────────────────────────────────────
	DefaultRateLimitPerMinute int32 `env:"DEFAULT_RATE_LIMIT_PER_MINUTE" envDefault:"60"`
	DefaultMaxConcurrentJobs  int32 `env:"DEFAULT_MAX_CONCURRENT_JOBS"   envDefault:"10"`

	// ── Observer gateway ─────────────────────────────────────────────────────────
	// Optional fire-and-forget webhook delivery of lifecycle events, in
	// addition to the websocket event stream. Both are empty by default.
	ObserverWebhookURL    string `env:"OBSERVER_WEBHOOK_URL"`
	ObserverWebhookSecret string `env:"OBSERVER_WEBHOOK_SECRET"`

	// ── Logging ──────────────────────────────────────────────────────────────────
	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Load parses and returns Config from environment variables.
// Returns an error if any required field is missing.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// IsDevelopment reports whether the application is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// LeaseTTL returns WorkerLeaseTTLSeconds as a time.Duration.
func (c *Config) LeaseTTL() time.Duration {
	return time.Duration(c.WorkerLeaseTTLSeconds) * time.Second
}

// MetricsSnapshotInterval returns MetricsSnapshotIntervalS as a time.Duration.
func (c *Config) MetricsSnapshotInterval() time.Duration {
	return time.Duration(c.MetricsSnapshotIntervalS) * time.Second
}
