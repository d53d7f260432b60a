// Package config loads Watchpost's process configuration from the
// environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	ListenAddr string
	StaticDir  string

	DatabaseType string // "sqlite" or "postgres"
	DatabasePath string // sqlite file path
	DatabaseURL  string // postgres connection URL

	MonitorRateLimitPerHour int
	HeartbeatRetentionDays  int
	RemoteProbeMaxSkew      time.Duration

	ProbeWorkerConcurrency int
	SchedulerResyncPeriod  time.Duration

	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SMTPTLS      bool
}

func Default() Config {
	return Config{
		ListenAddr:              ":8080",
		StaticDir:               "./web/dist",
		DatabaseType:            "sqlite",
		DatabasePath:            "watchpost.db",
		MonitorRateLimitPerHour: 10,
		HeartbeatRetentionDays:  90,
		RemoteProbeMaxSkew:      15 * time.Minute,
		ProbeWorkerConcurrency:  64,
		SchedulerResyncPeriod:   30 * time.Second,
		SMTPPort:                587,
	}
}

// Load reads environment variables over the defaults. Unset variables keep
// their default value; malformed ones are a fatal config error.
func Load() (Config, error) {
	cfg := Default()

	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("STATIC_DIR"); v != "" {
		cfg.StaticDir = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseType = "postgres"
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("DATABASE_PATH"); v != "" {
		cfg.DatabasePath = v
	}

	if err := setInt(&cfg.MonitorRateLimitPerHour, "MONITOR_RATE_LIMIT"); err != nil {
		return Config{}, err
	}
	if err := setInt(&cfg.HeartbeatRetentionDays, "HEARTBEAT_RETENTION_DAYS"); err != nil {
		return Config{}, err
	}
	if err := setInt(&cfg.ProbeWorkerConcurrency, "PROBE_WORKER_CONCURRENCY"); err != nil {
		return Config{}, err
	}

	if v := os.Getenv("REMOTE_PROBE_MAX_SKEW"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid REMOTE_PROBE_MAX_SKEW: %w", err)
		}
		cfg.RemoteProbeMaxSkew = d
	}
	if v := os.Getenv("SCHEDULER_RESYNC_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid SCHEDULER_RESYNC_INTERVAL: %w", err)
		}
		cfg.SchedulerResyncPeriod = d
	}

	cfg.SMTPHost = os.Getenv("SMTP_HOST")
	cfg.SMTPUsername = os.Getenv("SMTP_USERNAME")
	cfg.SMTPPassword = os.Getenv("SMTP_PASSWORD")
	cfg.SMTPFrom = os.Getenv("SMTP_FROM")
	if err := setInt(&cfg.SMTPPort, "SMTP_PORT"); err != nil {
		return Config{}, err
	}
	if v := os.Getenv("SMTP_TLS"); v != "" {
		cfg.SMTPTLS = v == "true" || v == "1"
	}

	return cfg, nil
}

// EmailConfigured reports whether enough SMTP configuration is present to
// attempt email delivery (§4.G: missing SMTP disables email but keeps
// channel CRUD working).
func (c Config) EmailConfigured() bool {
	return c.SMTPHost != "" && c.SMTPFrom != ""
}

func setInt(dst *int, env string) error {
	v := os.Getenv(env)
	if v == "" {
		return nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", env, err)
	}
	*dst = i
	return nil
}
