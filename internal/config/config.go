// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

// Package config loads ArtSwap configuration with koanf.
//
// Precedence, lowest first: struct defaults, YAML file (CONFIG_PATH or the
// first of DefaultConfigPaths that exists), environment variables listed in
// envMappings. Unknown environment variables are ignored.
package config

import "time"

// Config is the complete application configuration.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	Database   DatabaseConfig   `koanf:"database"`
	Logging    LoggingConfig    `koanf:"logging"`
	Security   SecurityConfig   `koanf:"security"`
	Abuse      AbuseConfig      `koanf:"abuse"`
	Candidates CandidatesConfig `koanf:"candidates"`
	Collab     CollabConfig     `koanf:"collab"`
	Queue      QueueConfig      `koanf:"queue"`
	Core       CoreConfig       `koanf:"core"`
	Notify     NotifyConfig     `koanf:"notify"`
	Events     EventsConfig     `koanf:"events"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `koanf:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
	Environment     string        `koanf:"environment" validate:"oneof=development staging production"`
}

// DatabaseConfig selects and tunes the Interaction Store driver.
type DatabaseConfig struct {
	// Driver is duckdb or memory.
	Driver    string `koanf:"driver" validate:"oneof=duckdb memory"`
	Path      string `koanf:"path" validate:"required_if=Driver duckdb"`
	MaxMemory string `koanf:"max_memory"`
	// Threads is the DuckDB thread count; 0 means NumCPU.
	Threads      int           `koanf:"threads" validate:"gte=0"`
	QueryTimeout time.Duration `koanf:"query_timeout" validate:"gte=0"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// SecurityConfig holds authentication, authorization and HTTP limits.
type SecurityConfig struct {
	JWTSecret string        `koanf:"jwt_secret"`
	TokenTTL  time.Duration `koanf:"token_ttl" validate:"gt=0"`

	// Moderators and Admins are user ids granted the casbin roles.
	Moderators []string `koanf:"moderators"`
	Admins     []string `koanf:"admins"`

	CORSOrigins []string `koanf:"cors_origins"`

	// RateLimitRequests per RateLimitWindow per client IP; 0 disables.
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gt=0"`
}

// AbuseConfig holds the upload and report thresholds.
type AbuseConfig struct {
	UploadShortWindow       time.Duration `koanf:"upload_short_window" validate:"gt=0"`
	UploadShortCap          int           `koanf:"upload_short_cap" validate:"gte=1"`
	UploadDailyCap          int           `koanf:"upload_daily_cap" validate:"gte=1"`
	UploadWeeklyThreshold   int           `koanf:"upload_weekly_threshold" validate:"gte=1"`
	UploadThrottledDailyCap int           `koanf:"upload_throttled_daily_cap" validate:"gte=1"`

	ReportDailyCap int `koanf:"report_daily_cap" validate:"gte=1"`

	EscalationMonthlyWindow    time.Duration `koanf:"escalation_monthly_window" validate:"gt=0"`
	EscalationMonthlyThreshold int           `koanf:"escalation_monthly_threshold" validate:"gte=1"`
	EscalationShortWindow      time.Duration `koanf:"escalation_short_window" validate:"gt=0"`
	EscalationShortThreshold   int           `koanf:"escalation_short_threshold" validate:"gte=1"`
}

// CandidatesConfig tunes the heuristic candidate generator.
type CandidatesConfig struct {
	MaxReports    int           `koanf:"max_reports" validate:"gte=0"`
	DislikeWindow time.Duration `koanf:"dislike_window" validate:"gt=0"`
	// Oversample multiplies the requested count when reading from the store
	// so equal-count groups can be shuffled.
	Oversample int   `koanf:"oversample" validate:"gte=1,lte=100"`
	Seed       int64 `koanf:"seed"`
}

// CollabConfig tunes the collaborative filter.
type CollabConfig struct {
	Weighting          string        `koanf:"weighting" validate:"oneof=linear tiered"`
	TopK               int           `koanf:"top_k" validate:"gte=1"`
	RebuildItemDelta   int           `koanf:"rebuild_item_delta" validate:"gte=0"`
	RebuildMinInterval time.Duration `koanf:"rebuild_min_interval" validate:"gte=0"`
	SimilarityEvery    int           `koanf:"similarity_every" validate:"gte=1"`
	SimilarityMaxAge   time.Duration `koanf:"similarity_max_age" validate:"gt=0"`
	DislikeWindow      time.Duration `koanf:"dislike_window" validate:"gt=0"`
	RefreshInterval    time.Duration `koanf:"refresh_interval" validate:"gt=0"`
	Seed               int64         `koanf:"seed"`
}

// QueueConfig tunes the per-user recommendation cache.
type QueueConfig struct {
	BatchSize int `koanf:"batch_size" validate:"gte=1,lte=500"`
}

// CoreConfig tunes the facade.
type CoreConfig struct {
	DuplicateImplicitLike bool `koanf:"duplicate_implicit_like"`
	LockStripes           int  `koanf:"lock_stripes" validate:"gte=1"`
	TimingWindow          int  `koanf:"timing_window" validate:"gte=1"`
	TimingWorst           int  `koanf:"timing_worst" validate:"gte=1"`
	// MaxServeAttempts bounds how many invalid queue heads are skipped per request.
	MaxServeAttempts int `koanf:"max_serve_attempts" validate:"gte=1"`
}

// NotifyConfig tunes the idle-user notification sweep.
type NotifyConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Interval   time.Duration `koanf:"interval" validate:"gt=0"`
	IdleAfter  time.Duration `koanf:"idle_after" validate:"gt=0"`
	MinGap     time.Duration `koanf:"min_gap" validate:"gt=0"`
	BatchLimit int           `koanf:"batch_limit" validate:"gte=1"`
	PerSecond  float64       `koanf:"per_second" validate:"gt=0"`

	// LedgerPath is the badger directory; empty keeps the ledger in memory.
	LedgerPath string        `koanf:"ledger_path"`
	LedgerTTL  time.Duration `koanf:"ledger_ttl" validate:"gt=0"`

	// Notifier is log or webhook.
	Notifier       string        `koanf:"notifier" validate:"oneof=log webhook"`
	WebhookURL     string        `koanf:"webhook_url" validate:"omitempty,url"`
	WebhookTimeout time.Duration `koanf:"webhook_timeout" validate:"gt=0"`
}

// EventsConfig tunes the in-process event bus.
type EventsConfig struct {
	BufferSize           int64         `koanf:"buffer_size" validate:"gte=0"`
	RetryMax             int           `koanf:"retry_max" validate:"gte=0"`
	RetryInitialInterval time.Duration `koanf:"retry_initial_interval" validate:"gt=0"`
	AuditEnabled         bool          `koanf:"audit_enabled"`
}

// SupervisorConfig tunes the suture tree.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gt=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gt=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gt=0"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gt=0"`
}

// Addr returns host:port for the HTTP listener.
func (s ServerConfig) Addr() string {
	return joinHostPort(s.Host, s.Port)
}
