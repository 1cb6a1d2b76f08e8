// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// isolate points CONFIG_PATH at a missing file and runs from an empty
// directory so no stray config.yaml is picked up.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv(ConfigPathEnvVar, filepath.Join(dir, "missing.yaml"))
	t.Setenv("JWT_SECRET", testSecret)
	return dir
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	checks := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"upload short window", cfg.Abuse.UploadShortWindow, 10 * time.Minute},
		{"upload short cap", cfg.Abuse.UploadShortCap, 50},
		{"upload daily cap", cfg.Abuse.UploadDailyCap, 150},
		{"weekly threshold", cfg.Abuse.UploadWeeklyThreshold, 400},
		{"throttled daily cap", cfg.Abuse.UploadThrottledDailyCap, 50},
		{"report daily cap", cfg.Abuse.ReportDailyCap, 20},
		{"monthly escalation", cfg.Abuse.EscalationMonthlyThreshold, 15},
		{"short escalation", cfg.Abuse.EscalationShortThreshold, 5},
		{"max reports", cfg.Candidates.MaxReports, 2},
		{"dislike window", cfg.Candidates.DislikeWindow, time.Hour},
		{"top k", cfg.Collab.TopK, 50},
		{"rebuild delta", cfg.Collab.RebuildItemDelta, 25},
		{"rebuild interval", cfg.Collab.RebuildMinInterval, 15 * time.Minute},
		{"similarity every", cfg.Collab.SimilarityEvery, 3},
		{"similarity age", cfg.Collab.SimilarityMaxAge, 2 * time.Hour},
		{"batch size", cfg.Queue.BatchSize, 10},
		{"implicit like", cfg.Core.DuplicateImplicitLike, true},
		{"timing window", cfg.Core.TimingWindow, 1000},
		{"notify interval", cfg.Notify.Interval, 5 * time.Minute},
		{"ledger ttl", cfg.Notify.LedgerTTL, 7 * 24 * time.Hour},
		{"query timeout", cfg.Database.QueryTimeout, 10 * time.Second},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadDefaults(t *testing.T) {
	isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr() = %q", cfg.Server.Addr())
	}
	if cfg.Collab.Weighting != "linear" {
		t.Errorf("Weighting = %q", cfg.Collab.Weighting)
	}
	if cfg.Security.JWTSecret != testSecret {
		t.Errorf("JWTSecret not taken from env")
	}
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "artswap.yaml")
	yaml := `
server:
  port: 9000
collab:
  weighting: tiered
  top_k: 20
abuse:
  upload_short_cap: 30
security:
  moderators: ["7", "8"]
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "9100")
	t.Setenv("ADMIN_IDS", " 1, 2 ,")
	t.Setenv("NOTIFY_INTERVAL", "90s")
	t.Setenv("UNRELATED_VARIABLE", "ignored")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("Port = %d, want env override 9100", cfg.Server.Port)
	}
	if cfg.Collab.Weighting != "tiered" || cfg.Collab.TopK != 20 {
		t.Errorf("collab = %+v", cfg.Collab)
	}
	if cfg.Abuse.UploadShortCap != 30 || cfg.Abuse.UploadDailyCap != 150 {
		t.Errorf("abuse = %+v", cfg.Abuse)
	}
	if strings.Join(cfg.Security.Moderators, ",") != "7,8" {
		t.Errorf("Moderators = %v", cfg.Security.Moderators)
	}
	if strings.Join(cfg.Security.Admins, ",") != "1,2" {
		t.Errorf("Admins = %v", cfg.Security.Admins)
	}
	if cfg.Notify.Interval != 90*time.Second {
		t.Errorf("Notify.Interval = %v", cfg.Notify.Interval)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		c := defaultConfig()
		c.Security.JWTSecret = testSecret
		return c
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"short secret", func(c *Config) { c.Security.JWTSecret = "x" }, "JWT_SECRET"},
		{"bad weighting", func(c *Config) { c.Collab.Weighting = "cubic" }, "collab.weighting"},
		{"zero batch", func(c *Config) { c.Queue.BatchSize = 0 }, "queue.batch_size"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "LOG_LEVEL"},
		{"bad moderator id", func(c *Config) { c.Security.Moderators = []string{"abc"} }, "not a positive user id"},
		{"throttled above daily", func(c *Config) { c.Abuse.UploadThrottledDailyCap = 500 }, "upload_throttled_daily_cap"},
		{"webhook without url", func(c *Config) { c.Notify.Notifier = "webhook" }, "NOTIFY_WEBHOOK_URL"},
		{"webhook bad url", func(c *Config) {
			c.Notify.Notifier = "webhook"
			c.Notify.WebhookURL = "not a url"
		}, "notify.webhook_url"},
		{"memory driver needs no path", func(c *Config) {
			c.Database.Driver = "memory"
			c.Database.Path = ""
		}, ""},
		{"duckdb needs path", func(c *Config) { c.Database.Path = "" }, "database.path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"DUCKDB_PATH":      "database.path",
		"log_level":        "logging.level",
		"COLLAB_WEIGHTING": "collab.weighting",
		"PATH":             "",
		"HOME":             "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}
