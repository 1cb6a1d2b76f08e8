// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

// Package core is the external interface of the recommendation and
// moderation engine. Transports (the HTTP API, the notification sweep) call
// Core; Core coordinates the store, the abuse gate, the recommenders, the
// queue cache and the moderation workflow.
//
// Read-modify-write sequences for one user (upload, score, report) run under
// a per-user lock so two concurrent uploads cannot both pass the rate limit.
package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/artswap/internal/authz"
	"github.com/tomtom215/artswap/internal/config"
	"github.com/tomtom215/artswap/internal/events"
	"github.com/tomtom215/artswap/internal/metrics"
	"github.com/tomtom215/artswap/internal/models"
	"github.com/tomtom215/artswap/internal/moderation"
	"github.com/tomtom215/artswap/internal/recommend/collab"
	"github.com/tomtom215/artswap/internal/store"
)

const maxEventsLimit = 500

// UploadGate is the abuse gate as seen by uploads.
type UploadGate interface {
	IsUploadBlocked(ctx context.Context, user models.UserID) (bool, error)
	CanUpload(ctx context.Context, user models.UserID) error
	NoteUpload(ctx context.Context, user models.UserID)
}

// Filter is the collaborative filter.
type Filter interface {
	Observe(user models.UserID, item models.ItemID, score models.Score)
	Forget(item models.ItemID)
	Stats() collab.Stats
	Evaluate() collab.Evaluation
}

// Queue is the recommendation cache.
type Queue interface {
	Next(ctx context.Context, user models.UserID) (*models.Recommendation, error)
	Invalidate(user models.UserID)
	PurgeItem(item models.ItemID)
}

// Moderation is the report/block workflow.
type Moderation interface {
	Report(ctx context.Context, user models.UserID, item models.ItemID) (moderation.ReportOutcome, error)
	Block(ctx context.Context, actor models.Actor, item models.ItemID) error
	PendingReports(ctx context.Context, actor models.Actor, limit int) ([]models.ReportSummary, error)
}

// Deps are the collaborators of Core.
type Deps struct {
	Store      store.Store
	Gate       UploadGate
	Filter     Filter
	Queue      Queue
	Moderation Moderation
	Authorizer moderation.Authorizer
	Events     events.Publisher
}

// CollabReport is the debug view of the collaborative filter.
type CollabReport struct {
	Stats      collab.Stats      `json:"stats"`
	Evaluation collab.Evaluation `json:"evaluation"`
}

// Core is safe for concurrent use.
type Core struct {
	store      store.Store
	gate       UploadGate
	filter     Filter
	queue      Queue
	moderation Moderation
	authz      moderation.Authorizer
	events     events.Publisher

	cfg     config.CoreConfig
	locks   *stripedLocks
	timings *metrics.Timings
	log     zerolog.Logger
	now     func() time.Time
}

// New creates a Core.
func New(deps Deps, cfg config.CoreConfig, log zerolog.Logger) *Core {
	pub := deps.Events
	if pub == nil {
		pub = events.Nop{}
	}
	return &Core{
		store:      deps.Store,
		gate:       deps.Gate,
		filter:     deps.Filter,
		queue:      deps.Queue,
		moderation: deps.Moderation,
		authz:      deps.Authorizer,
		events:     pub,
		cfg:        cfg,
		locks:      newStripedLocks(cfg.LockStripes),
		timings:    metrics.NewTimings(cfg.TimingWindow, cfg.TimingWorst),
		log:        log,
		now:        time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (c *Core) WithClock(now func() time.Time) *Core {
	c.now = now
	return c
}

// Upload stores a new item for user.
//
// Users moved to upload_blocked get ErrReportThresholdBlocked. Rate limits
// return *models.RateLimitError. A fingerprint or ref collision returns
// *models.DuplicateContentError; when enabled, a duplicate of someone else's
// item is recorded as an implicit like from the uploader.
func (c *Core) Upload(ctx context.Context, user models.UserID, fingerprint, ref string) (item *models.Item, err error) {
	defer c.observe("upload", time.Now(), &err)

	fingerprint, ref = strings.TrimSpace(fingerprint), strings.TrimSpace(ref)
	if user <= 0 || fingerprint == "" || ref == "" {
		return nil, fmt.Errorf("upload requires user, fingerprint and ref: %w", models.ErrInvalidArgument)
	}

	unlock := c.locks.lock(user)
	defer unlock()

	blocked, err := c.gate.IsUploadBlocked(ctx, user)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, models.ErrReportThresholdBlocked
	}
	if err := c.gate.CanUpload(ctx, user); err != nil {
		return nil, err
	}

	now := c.now()
	item, err = c.store.CreateItem(ctx, models.NewItem{
		OwnerID:     user,
		Fingerprint: fingerprint,
		Ref:         ref,
		CreatedAt:   now,
	})
	if err != nil {
		var dup *models.DuplicateContentError
		if errors.As(err, &dup) {
			c.implicitLike(ctx, user, dup, fingerprint, ref, now)
		}
		return nil, err
	}

	c.gate.NoteUpload(ctx, user)
	c.filter.Observe(user, item.ID, models.ScoreSelfUpload)
	c.publish(ctx, models.AuditEvent{
		Type:       models.EventItemUploaded,
		ActorID:    user,
		ItemID:     item.ID,
		Score:      models.ScoreSelfUpload,
		OccurredAt: now,
		Details:    map[string]string{"ref": item.Ref},
	})
	return item, nil
}

// implicitLike records a +1 from user on the existing item when user is not
// its owner and has not scored it yet. Failures are logged only.
func (c *Core) implicitLike(ctx context.Context, user models.UserID, dup *models.DuplicateContentError, fingerprint, ref string, now time.Time) {
	if !c.cfg.DuplicateImplicitLike {
		return
	}
	existing := dup.Existing
	if existing == nil {
		found, err := c.store.FindDuplicate(ctx, fingerprint, ref)
		if err != nil {
			c.log.Debug().Err(err).Msg("Duplicate item lookup failed")
			return
		}
		existing = found
	}
	if existing.OwnerID == user || existing.Blocked {
		return
	}

	scored, err := c.store.HasInteraction(ctx, user, existing.ID)
	if err != nil || scored {
		return
	}
	if _, err := c.store.UpsertInteraction(ctx, models.Interaction{
		UserID:    user,
		ItemID:    existing.ID,
		Score:     models.ScoreLike,
		CreatedAt: now,
	}); err != nil {
		c.log.Warn().Err(err).Int64("item_id", int64(existing.ID)).Msg("Failed to record implicit like")
		return
	}
	c.filter.Observe(user, existing.ID, models.ScoreLike)
}

// NextRecommendation returns the next item to show user, or nil when there is
// nothing left. Queue heads that were deleted, blocked or scored since they
// were queued are skipped.
func (c *Core) NextRecommendation(ctx context.Context, user models.UserID) (rec *models.Recommendation, err error) {
	defer c.observe("next_recommendation", time.Now(), &err)

	for attempt := 0; attempt < c.cfg.MaxServeAttempts; attempt++ {
		rec, err = c.queue.Next(ctx, user)
		if err != nil || rec == nil {
			return nil, err
		}

		item, ok, err := c.servable(ctx, user, rec.ItemID)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}

		rec.Ref = item.Ref
		rec.OwnerID = item.OwnerID
		metrics.RecordServed(rec.Source)
		return rec, nil
	}

	c.log.Warn().Str("user_id", user.String()).Int("attempts", c.cfg.MaxServeAttempts).
		Msg("No valid recommendation within serve attempts")
	return nil, nil
}

func (c *Core) servable(ctx context.Context, user models.UserID, id models.ItemID) (*models.Item, bool, error) {
	item, err := c.store.GetItem(ctx, id)
	if errors.Is(err, models.ErrItemNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	if item.Blocked || item.OwnerID == user {
		return nil, false, nil
	}
	scored, err := c.store.HasInteraction(ctx, user, id)
	if err != nil {
		return nil, false, err
	}
	return item, !scored, nil
}

// Score records a like (+1) or dislike (-1). Re-scoring replaces the previous
// value. A dislike clears the user's queue.
func (c *Core) Score(ctx context.Context, user models.UserID, ref string, value models.Score) (err error) {
	defer c.observe("score", time.Now(), &err)

	if value != models.ScoreLike && value != models.ScoreDislike {
		return fmt.Errorf("score %d: %w", value, models.ErrInvalidScore)
	}
	item, err := c.store.GetItemByRef(ctx, ref)
	if err != nil {
		return err
	}
	if item.Blocked {
		return models.ErrItemBlocked
	}
	if item.OwnerID == user {
		return fmt.Errorf("cannot score own item: %w", models.ErrInvalidArgument)
	}

	unlock := c.locks.lock(user)
	defer unlock()

	now := c.now()
	if _, err := c.store.UpsertInteraction(ctx, models.Interaction{
		UserID:    user,
		ItemID:    item.ID,
		Score:     value,
		CreatedAt: now,
	}); err != nil {
		return fmt.Errorf("failed to record score: %w", err)
	}

	c.filter.Observe(user, item.ID, value)
	if value.IsNegative() {
		c.queue.Invalidate(user)
	}

	c.publish(ctx, models.AuditEvent{
		Type:       models.EventInteractionScored,
		ActorID:    user,
		ItemID:     item.ID,
		Score:      value,
		OccurredAt: now,
	})
	return nil
}

// Report files a report from user against the item with ref.
func (c *Core) Report(ctx context.Context, user models.UserID, ref string) (out moderation.ReportOutcome, err error) {
	defer c.observe("report", time.Now(), &err)

	item, err := c.store.GetItemByRef(ctx, ref)
	if err != nil {
		return moderation.ReportOutcome{}, err
	}

	unlock := c.locks.lock(user)
	defer unlock()
	return c.moderation.Report(ctx, user, item.ID)
}

// Block blocks the item with ref on behalf of a moderator.
func (c *Core) Block(ctx context.Context, actor models.Actor, ref string) (err error) {
	defer c.observe("block", time.Now(), &err)

	item, err := c.store.GetItemByRef(ctx, ref)
	if err != nil {
		return err
	}
	return c.moderation.Block(ctx, actor, item.ID)
}

// UserStats returns activity counters. Unknown users get zero stats.
func (c *Core) UserStats(ctx context.Context, user models.UserID) (stats models.UserStats, err error) {
	defer c.observe("user_stats", time.Now(), &err)
	return c.store.UserStats(ctx, user)
}

// DeleteItem removes an item owned by user together with its interactions,
// reports and block record.
func (c *Core) DeleteItem(ctx context.Context, user models.UserID, ref string) (err error) {
	defer c.observe("delete_item", time.Now(), &err)

	item, err := c.store.GetItemByRef(ctx, ref)
	if err != nil {
		return err
	}
	if item.OwnerID != user {
		return fmt.Errorf("delete item %d: %w", item.ID, models.ErrForbidden)
	}
	if err := c.store.DeleteItem(ctx, item.ID); err != nil {
		return err
	}

	c.filter.Forget(item.ID)
	c.queue.PurgeItem(item.ID)
	c.publish(ctx, models.AuditEvent{
		Type:       models.EventItemDeleted,
		ActorID:    user,
		ItemID:     item.ID,
		OccurredAt: c.now(),
		Details:    map[string]string{"ref": item.Ref},
	})
	return nil
}

// Touch creates the user or refreshes name, language and last activity.
func (c *Core) Touch(ctx context.Context, p models.Profile) (err error) {
	defer c.observe("touch", time.Now(), &err)
	if p.ID <= 0 {
		return fmt.Errorf("touch: %w", models.ErrInvalidArgument)
	}
	return c.store.TouchUser(ctx, p, c.now())
}

// PendingReports is the moderator review queue.
func (c *Core) PendingReports(ctx context.Context, actor models.Actor, limit int) (rows []models.ReportSummary, err error) {
	defer c.observe("pending_reports", time.Now(), &err)
	return c.moderation.PendingReports(ctx, actor, limit)
}

// AuditLog lists the most recent audit events.
func (c *Core) AuditLog(ctx context.Context, actor models.Actor, limit int) ([]models.AuditEvent, error) {
	if err := c.authz.Authorize(actor, authz.ObjectEvents, authz.ActionRead); err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxEventsLimit {
		limit = maxEventsLimit
	}
	return c.store.ListEvents(ctx, limit)
}

// Timings returns the rolling per-operation timing summaries.
func (c *Core) Timings(actor models.Actor) ([]metrics.TimingSummary, error) {
	if err := c.authz.Authorize(actor, authz.ObjectDebug, authz.ActionRead); err != nil {
		return nil, err
	}
	return c.timings.Summaries(), nil
}

// Collab returns the collaborative filter snapshot statistics and the
// accuracy self-check.
func (c *Core) Collab(actor models.Actor) (CollabReport, error) {
	if err := c.authz.Authorize(actor, authz.ObjectDebug, authz.ActionRead); err != nil {
		return CollabReport{}, err
	}
	return CollabReport{Stats: c.filter.Stats(), Evaluation: c.filter.Evaluate()}, nil
}

// Ready pings the store.
func (c *Core) Ready(ctx context.Context) error {
	return c.store.Ping(ctx)
}

func (c *Core) observe(operation string, start time.Time, err *error) {
	c.timings.Since(operation, start, *err)
}

func (c *Core) publish(ctx context.Context, ev models.AuditEvent) {
	if err := c.events.Publish(ctx, ev); err != nil {
		c.log.Warn().Err(err).Str("event_type", string(ev.Type)).Msg("Failed to publish event")
	}
}
