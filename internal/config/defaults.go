// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package config

import (
	"net"
	"strconv"
	"time"
)

// defaultConfig returns the defaults loaded as the first koanf layer.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			Environment:     "development",
		},
		Database: DatabaseConfig{
			Driver:       "duckdb",
			Path:         "/data/artswap.duckdb",
			MaxMemory:    "1GB",
			QueryTimeout: 10 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Security: SecurityConfig{
			TokenTTL:          24 * time.Hour,
			RateLimitRequests: 300,
			RateLimitWindow:   time.Minute,
		},
		Abuse: AbuseConfig{
			UploadShortWindow:          10 * time.Minute,
			UploadShortCap:             50,
			UploadDailyCap:             150,
			UploadWeeklyThreshold:      400,
			UploadThrottledDailyCap:    50,
			ReportDailyCap:             20,
			EscalationMonthlyWindow:    30 * 24 * time.Hour,
			EscalationMonthlyThreshold: 15,
			EscalationShortWindow:      24 * time.Hour,
			EscalationShortThreshold:   5,
		},
		Candidates: CandidatesConfig{
			MaxReports:    2,
			DislikeWindow: time.Hour,
			Oversample:    4,
		},
		Collab: CollabConfig{
			Weighting:          "linear",
			TopK:               50,
			RebuildItemDelta:   25,
			RebuildMinInterval: 15 * time.Minute,
			SimilarityEvery:    3,
			SimilarityMaxAge:   2 * time.Hour,
			DislikeWindow:      time.Hour,
			RefreshInterval:    5 * time.Minute,
		},
		Queue: QueueConfig{
			BatchSize: 10,
		},
		Core: CoreConfig{
			DuplicateImplicitLike: true,
			LockStripes:           64,
			TimingWindow:          1000,
			TimingWorst:           10,
			MaxServeAttempts:      25,
		},
		Notify: NotifyConfig{
			Enabled:        true,
			Interval:       5 * time.Minute,
			IdleAfter:      24 * time.Hour,
			MinGap:         24 * time.Hour,
			BatchLimit:     100,
			PerSecond:      5,
			LedgerTTL:      7 * 24 * time.Hour,
			Notifier:       "log",
			WebhookTimeout: 5 * time.Second,
		},
		Events: EventsConfig{
			BufferSize:           256,
			RetryMax:             3,
			RetryInitialInterval: 100 * time.Millisecond,
			AuditEnabled:         true,
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}

// Default returns the built-in defaults without reading files or the
// environment. Used by tests and tools that need a complete Config.
func Default() Config {
	return *defaultConfig()
}

func joinHostPort(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}
