// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

// Package abuse bounds upload and report volume per user.
//
// The Gate keeps no counters. Every decision is a count over the store in a
// sliding window ending now, so restarts and multiple processes agree. Limits
// only gate the next attempted action; nothing already stored is revisited.
//
// Uploads pass three nested windows:
//
//	short  (10m)  cap 50
//	daily  (24h)  cap 150, or 50 once the weekly volume exceeds 400
//	weekly (7d)   threshold that switches the daily cap
//
// Reports have a flat daily cap. A user who reported too many distinct other
// users is moved to upload_blocked (see IsUploadBlocked).
package abuse

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/artswap/internal/config"
	"github.com/tomtom215/artswap/internal/events"
	"github.com/tomtom215/artswap/internal/metrics"
	"github.com/tomtom215/artswap/internal/models"
)

const (
	day  = 24 * time.Hour
	week = 7 * day

	actionUpload = "upload"
	actionReport = "report"
)

// Store is the slice of the interaction store the gate reads and writes.
type Store interface {
	CountUploads(ctx context.Context, user models.UserID, since time.Time) (int, error)
	CountReportsFiled(ctx context.Context, user models.UserID, since time.Time) (int, error)
	CountReportedOwners(ctx context.Context, user models.UserID, since time.Time) (int, error)
	GetUser(ctx context.Context, id models.UserID) (*models.User, error)
	SetModerationState(ctx context.Context, id models.UserID, state models.ModerationState) error
}

// Gate is the upload/report policy.
type Gate struct {
	store  Store
	cfg    config.AbuseConfig
	events events.Publisher
	log    zerolog.Logger
	now    func() time.Time
}

// New creates a Gate. pub may be nil.
func New(store Store, cfg config.AbuseConfig, pub events.Publisher, log zerolog.Logger) *Gate {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Gate{
		store:  store,
		cfg:    cfg,
		events: pub,
		log:    log,
		now:    time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (g *Gate) WithClock(now func() time.Time) *Gate {
	g.now = now
	return g
}

// CanUpload returns nil or a *models.RateLimitError.
func (g *Gate) CanUpload(ctx context.Context, user models.UserID) error {
	now := g.now()

	short, err := g.store.CountUploads(ctx, user, now.Add(-g.cfg.UploadShortWindow))
	if err != nil {
		return fmt.Errorf("count uploads in short window: %w", err)
	}
	if short >= g.cfg.UploadShortCap {
		return g.reject(actionUpload, "short_window", g.cfg.UploadShortWindow, g.cfg.UploadShortCap)
	}

	weekly, err := g.store.CountUploads(ctx, user, now.Add(-week))
	if err != nil {
		return fmt.Errorf("count uploads in weekly window: %w", err)
	}
	dailyCap, reason := g.cfg.UploadDailyCap, "daily_cap"
	if weekly > g.cfg.UploadWeeklyThreshold {
		dailyCap, reason = g.cfg.UploadThrottledDailyCap, "throttled_daily_cap"
	}

	daily, err := g.store.CountUploads(ctx, user, now.Add(-day))
	if err != nil {
		return fmt.Errorf("count uploads in daily window: %w", err)
	}
	if daily >= dailyCap {
		return g.reject(actionUpload, reason, day, dailyCap)
	}
	return nil
}

// CanReport returns nil or a *models.RateLimitError.
func (g *Gate) CanReport(ctx context.Context, user models.UserID) error {
	filed, err := g.store.CountReportsFiled(ctx, user, g.now().Add(-day))
	if err != nil {
		return fmt.Errorf("count reports filed: %w", err)
	}
	if filed >= g.cfg.ReportDailyCap {
		return g.reject(actionReport, "daily_cap", day, g.cfg.ReportDailyCap)
	}
	return nil
}

// IsUploadBlocked reports whether the user reported more distinct other users
// than either escalation threshold allows. The outcome is persisted as the
// user's moderation state; a transition to blocked publishes
// user.upload_blocked.
func (g *Gate) IsUploadBlocked(ctx context.Context, user models.UserID) (bool, error) {
	now := g.now()

	monthly, err := g.store.CountReportedOwners(ctx, user, now.Add(-g.cfg.EscalationMonthlyWindow))
	if err != nil {
		return false, fmt.Errorf("count reported owners (monthly): %w", err)
	}
	blocked := monthly > g.cfg.EscalationMonthlyThreshold
	if !blocked {
		short, err := g.store.CountReportedOwners(ctx, user, now.Add(-g.cfg.EscalationShortWindow))
		if err != nil {
			return false, fmt.Errorf("count reported owners (short): %w", err)
		}
		blocked = short > g.cfg.EscalationShortThreshold
	}

	want := models.ModerationNormal
	if blocked {
		want = models.ModerationUploadBlocked
	}

	current := models.ModerationNormal
	u, err := g.store.GetUser(ctx, user)
	switch {
	case err == nil:
		current = u.ModerationState
	case errors.Is(err, models.ErrUserNotFound):
	default:
		return blocked, fmt.Errorf("load user %d: %w", user, err)
	}
	if current == want {
		return blocked, nil
	}

	if err := g.store.SetModerationState(ctx, user, want); err != nil {
		return blocked, fmt.Errorf("persist moderation state: %w", err)
	}
	g.log.Info().
		Int64("user_id", int64(user)).
		Str("from", string(current)).
		Str("to", string(want)).
		Int("reported_owners_monthly", monthly).
		Msg("Moderation state changed")

	if blocked {
		metrics.UsersUploadBlocked.Inc()
		ev := models.AuditEvent{
			Type:       models.EventUserUploadBlocked,
			ActorID:    user,
			OccurredAt: now.UTC(),
		}
		if err := g.events.Publish(ctx, ev); err != nil {
			g.log.Warn().Err(err).Int64("user_id", int64(user)).Msg("Failed to publish upload block event")
		}
	}
	return blocked, nil
}

// NoteUpload records an accepted upload.
func (g *Gate) NoteUpload(_ context.Context, user models.UserID) {
	metrics.RecordGateAccepted(actionUpload)
	g.log.Debug().Int64("user_id", int64(user)).Msg("Upload accepted")
}

// NoteReport records an accepted report.
func (g *Gate) NoteReport(_ context.Context, user models.UserID) {
	metrics.RecordGateAccepted(actionReport)
	g.log.Debug().Int64("user_id", int64(user)).Msg("Report accepted")
}

// reject builds the rate limit error. RetryAfter is the full window: the
// oldest counted action is at most that far from leaving it.
func (g *Gate) reject(action, reason string, window time.Duration, limit int) error {
	metrics.RecordGateRejection(action, reason)
	return &models.RateLimitError{
		Action:     action,
		Window:     window,
		Limit:      limit,
		RetryAfter: window,
	}
}
