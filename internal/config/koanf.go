// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/artswap/config.yaml",
	"/etc/artswap/config.yml",
}

// ConfigPathEnvVar overrides the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// Load builds the configuration from defaults, file and environment, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// findConfigFile returns CONFIG_PATH if it exists, else the first default path found.
func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths arrive from the environment as comma-separated strings.
var sliceConfigPaths = []string{
	"security.moderators",
	"security.admins",
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok || s == "" {
			continue
		}
		var parts []string
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps environment variable names (lowercased) to koanf paths.
var envMappings = map[string]string{
	"http_host":             "server.host",
	"http_port":             "server.port",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"environment":           "server.environment",

	"store_driver":         "database.driver",
	"duckdb_path":          "database.path",
	"duckdb_max_memory":    "database.max_memory",
	"duckdb_threads":       "database.threads",
	"duckdb_query_timeout": "database.query_timeout",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"jwt_secret":          "security.jwt_secret",
	"jwt_token_ttl":       "security.token_ttl",
	"moderator_ids":       "security.moderators",
	"admin_ids":           "security.admins",
	"cors_origins":        "security.cors_origins",
	"rate_limit_requests": "security.rate_limit_requests",
	"rate_limit_window":   "security.rate_limit_window",

	"abuse_upload_short_window":          "abuse.upload_short_window",
	"abuse_upload_short_cap":             "abuse.upload_short_cap",
	"abuse_upload_daily_cap":             "abuse.upload_daily_cap",
	"abuse_upload_weekly_threshold":      "abuse.upload_weekly_threshold",
	"abuse_upload_throttled_daily_cap":   "abuse.upload_throttled_daily_cap",
	"abuse_report_daily_cap":             "abuse.report_daily_cap",
	"abuse_escalation_monthly_threshold": "abuse.escalation_monthly_threshold",
	"abuse_escalation_short_threshold":   "abuse.escalation_short_threshold",

	"candidates_max_reports": "candidates.max_reports",
	"candidates_seed":        "candidates.seed",

	"collab_weighting":            "collab.weighting",
	"collab_top_k":                "collab.top_k",
	"collab_rebuild_item_delta":   "collab.rebuild_item_delta",
	"collab_rebuild_min_interval": "collab.rebuild_min_interval",
	"collab_similarity_every":     "collab.similarity_every",
	"collab_similarity_max_age":   "collab.similarity_max_age",
	"collab_refresh_interval":     "collab.refresh_interval",
	"collab_seed":                 "collab.seed",

	"queue_batch_size": "queue.batch_size",

	"core_duplicate_implicit_like": "core.duplicate_implicit_like",

	"notify_enabled":         "notify.enabled",
	"notify_interval":        "notify.interval",
	"notify_idle_after":      "notify.idle_after",
	"notify_min_gap":         "notify.min_gap",
	"notify_batch_limit":     "notify.batch_limit",
	"notify_per_second":      "notify.per_second",
	"notify_ledger_path":     "notify.ledger_path",
	"notify_ledger_ttl":      "notify.ledger_ttl",
	"notify_notifier":        "notify.notifier",
	"notify_webhook_url":     "notify.webhook_url",
	"notify_webhook_timeout": "notify.webhook_timeout",

	"events_buffer_size":   "events.buffer_size",
	"events_retry_max":     "events.retry_max",
	"events_audit_enabled": "events.audit_enabled",
}

// envTransformFunc returns "" for unmapped variables so koanf skips them.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
