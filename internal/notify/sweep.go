// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

// Package notify pushes a fresh recommendation to users who have been idle
// for a while.
//
// Each sweep selects idle users not notified recently, asks the core for their
// next recommendation and delivers it through a Notifier. A badger ledger
// keeps (user, item) pairs for a TTL so the same item is never pushed twice.
// Deliveries are paced with a token bucket.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/artswap/internal/config"
	"github.com/tomtom215/artswap/internal/events"
	"github.com/tomtom215/artswap/internal/metrics"
	"github.com/tomtom215/artswap/internal/models"
	"github.com/tomtom215/artswap/internal/store"
)

// UserSource selects and marks users due a notification.
type UserSource interface {
	UsersToNotify(ctx context.Context, q store.NotifyQuery) ([]models.UserID, error)
	MarkNotified(ctx context.Context, id models.UserID, at time.Time) error
}

// Recommender serves the next recommendation for a user. A nil result means
// there is nothing to show.
type Recommender interface {
	NextRecommendation(ctx context.Context, user models.UserID) (*models.Recommendation, error)
}

// SweepResult counts what one sweep did.
type SweepResult struct {
	Candidates int
	Sent       int
	Skipped    int
	Failed     int
}

// Sweeper runs notification sweeps.
type Sweeper struct {
	users    UserSource
	rec      Recommender
	ledger   *Ledger
	notifier Notifier
	limiter  *rate.Limiter
	events   events.Publisher
	cfg      config.NotifyConfig
	log      zerolog.Logger
	now      func() time.Time
}

// NewSweeper creates a Sweeper. pub may be nil.
func NewSweeper(users UserSource, rec Recommender, ledger *Ledger, notifier Notifier, cfg config.NotifyConfig, pub events.Publisher, log zerolog.Logger) *Sweeper {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Sweeper{
		users:    users,
		rec:      rec,
		ledger:   ledger,
		notifier: notifier,
		limiter:  rate.NewLimiter(rate.Limit(cfg.PerSecond), 1),
		events:   pub,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (s *Sweeper) WithClock(now func() time.Time) *Sweeper {
	s.now = now
	return s
}

// Sweep notifies one batch of idle users. Per-user failures are logged and
// counted; only a failure to select users aborts the sweep.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	now := s.now()
	users, err := s.users.UsersToNotify(ctx, store.NotifyQuery{
		IdleSince:      now.Add(-s.cfg.IdleAfter),
		NotifiedBefore: now.Add(-s.cfg.MinGap),
		Limit:          s.cfg.BatchLimit,
	})
	if err != nil {
		return SweepResult{}, fmt.Errorf("select users to notify: %w", err)
	}

	res := SweepResult{Candidates: len(users)}
	for _, user := range users {
		if err := s.limiter.Wait(ctx); err != nil {
			return res, err
		}

		sent, err := s.notifyUser(ctx, user)
		switch {
		case err != nil:
			res.Failed++
			s.log.Warn().Err(err).Str("user_id", user.String()).Msg("Notification failed")
		case sent:
			res.Sent++
		default:
			res.Skipped++
			metrics.NotificationsSkipped.Inc()
		}
	}
	return res, nil
}

func (s *Sweeper) notifyUser(ctx context.Context, user models.UserID) (bool, error) {
	rec, err := s.rec.NextRecommendation(ctx, user)
	if err != nil {
		return false, fmt.Errorf("next recommendation: %w", err)
	}
	if rec == nil {
		return false, nil
	}

	seen, err := s.ledger.Delivered(ctx, user, rec.ItemID)
	if err != nil {
		return false, err
	}
	if seen {
		return false, nil
	}

	now := s.now()
	n := Notification{
		ID:             uuid.New().String(),
		UserID:         user,
		Recommendation: *rec,
		CreatedAt:      now,
	}
	err = s.notifier.Notify(ctx, n)
	metrics.RecordNotification(s.notifier.Name(), err)
	if err != nil {
		return false, err
	}

	if err := s.users.MarkNotified(ctx, user, now); err != nil {
		return true, fmt.Errorf("mark notified: %w", err)
	}
	if err := s.ledger.Record(ctx, user, rec.ItemID, now); err != nil && !errors.Is(err, ErrAlreadyDelivered) {
		return true, err
	}

	if err := s.events.Publish(ctx, models.AuditEvent{
		Type:       models.EventNotificationPushed,
		ActorID:    user,
		ItemID:     rec.ItemID,
		OccurredAt: now,
		Details:    map[string]string{"notifier": s.notifier.Name(), "notification_id": n.ID},
	}); err != nil {
		s.log.Debug().Err(err).Msg("Failed to publish notification event")
	}
	return true, nil
}

// Serve runs sweeps every cfg.Interval until ctx is canceled. It satisfies
// suture.Service.
func (s *Sweeper) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			start := time.Now()
			res, err := s.Sweep(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.log.Error().Err(err).Msg("Notification sweep failed")
				continue
			}
			if res.Candidates > 0 {
				s.log.Info().
					Int("candidates", res.Candidates).
					Int("sent", res.Sent).
					Int("skipped", res.Skipped).
					Int("failed", res.Failed).
					Dur("duration", time.Since(start)).
					Msg("Notification sweep complete")
			}
		}
	}
}

func (s *Sweeper) String() string { return "notify-sweeper" }
