// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

// Package moderation implements user reports, moderator blocks and the
// review queue.
//
// A report is recorded once per (user, item). It also stores a -2 interaction
// for the reporter so the item is treated as strongly disliked, and clears the
// reporter's recommendation queue. A block is terminal: the item disappears
// from the collaborative filter and every queue, and there is no unblock.
package moderation

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/artswap/internal/authz"
	"github.com/tomtom215/artswap/internal/events"
	"github.com/tomtom215/artswap/internal/models"
)

const (
	defaultPendingLimit = 50
	maxPendingLimit     = 500
)

// Store is the slice of the interaction store the workflow uses.
type Store interface {
	GetItem(ctx context.Context, id models.ItemID) (*models.Item, error)
	HasReport(ctx context.Context, user models.UserID, item models.ItemID) (bool, error)
	FileReport(ctx context.Context, r models.Report) (bool, error)
	BlockItem(ctx context.Context, item models.ItemID, moderator models.UserID, at time.Time) (bool, error)
	PendingReports(ctx context.Context, limit int) ([]models.ReportSummary, error)
}

// ReportGate limits report volume.
type ReportGate interface {
	CanReport(ctx context.Context, user models.UserID) error
	NoteReport(ctx context.Context, user models.UserID)
}

// Forgetter drops an item from collaborative predictions.
type Forgetter interface {
	Forget(item models.ItemID)
}

// Observer records a single score between collaborative rebuilds.
type Observer interface {
	Observe(user models.UserID, item models.ItemID, score models.Score)
}

// Queues is the recommendation cache.
type Queues interface {
	Invalidate(user models.UserID)
	PurgeItem(item models.ItemID)
}

// Authorizer checks moderator permissions.
type Authorizer interface {
	Authorize(actor models.Actor, object, action string) error
}

// Filter is the collaborative filter as seen by moderation.
type Filter interface {
	Forgetter
	Observer
}

// ReportOutcome describes what a Report call did.
type ReportOutcome struct {
	// Duplicate is true when the user had already reported the item.
	Duplicate bool `json:"duplicate"`

	// ItemBlocked is true when the item was blocked before the report.
	ItemBlocked bool `json:"item_blocked"`

	// Recorded is true when a new report was stored.
	Recorded bool `json:"recorded"`
}

// Workflow coordinates reports and blocks.
type Workflow struct {
	store  Store
	gate   ReportGate
	filter Filter
	queues Queues
	authz  Authorizer
	events events.Publisher
	log    zerolog.Logger
	now    func() time.Time
}

// New creates a Workflow. pub may be nil.
func New(st Store, gate ReportGate, filter Filter, queues Queues, az Authorizer, pub events.Publisher, log zerolog.Logger) *Workflow {
	if pub == nil {
		pub = events.Nop{}
	}
	return &Workflow{
		store:  st,
		gate:   gate,
		filter: filter,
		queues: queues,
		authz:  az,
		events: pub,
		log:    log,
		now:    time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (w *Workflow) WithClock(now func() time.Time) *Workflow {
	w.now = now
	return w
}

// Report files a complaint from user against item.
//
// A repeated report, or a report against an already blocked item, is a no-op
// and is not counted against the daily report cap. Owners cannot report
// their own items.
func (w *Workflow) Report(ctx context.Context, user models.UserID, item models.ItemID) (ReportOutcome, error) {
	it, err := w.store.GetItem(ctx, item)
	if err != nil {
		return ReportOutcome{}, fmt.Errorf("report item %d: %w", item, err)
	}
	if it.OwnerID == user {
		return ReportOutcome{}, fmt.Errorf("cannot report own item: %w", models.ErrInvalidArgument)
	}

	dup, err := w.store.HasReport(ctx, user, item)
	if err != nil {
		return ReportOutcome{}, fmt.Errorf("report item %d: %w", item, err)
	}
	if dup {
		return ReportOutcome{Duplicate: true}, nil
	}
	if it.Blocked {
		return ReportOutcome{ItemBlocked: true}, nil
	}

	if err := w.gate.CanReport(ctx, user); err != nil {
		return ReportOutcome{}, err
	}

	now := w.now()
	created, err := w.store.FileReport(ctx, models.Report{UserID: user, ItemID: item, CreatedAt: now})
	if err != nil {
		return ReportOutcome{}, fmt.Errorf("failed to file report: %w", err)
	}
	if !created {
		return ReportOutcome{Duplicate: true}, nil
	}

	w.gate.NoteReport(ctx, user)
	w.filter.Observe(user, item, models.ScoreReport)
	w.queues.Invalidate(user)

	w.publish(ctx, models.AuditEvent{
		Type:       models.EventItemReported,
		ActorID:    user,
		ItemID:     item,
		Score:      models.ScoreReport,
		OccurredAt: now,
		Details:    map[string]string{"owner_id": it.OwnerID.String()},
	})

	w.log.Info().
		Str("user_id", user.String()).
		Int64("item_id", int64(item)).
		Int("report_count", it.ReportCount+1).
		Msg("Item reported")

	return ReportOutcome{Recorded: true}, nil
}

// Block marks item as blocked on behalf of a moderator. Blocking an already
// blocked item succeeds without side effects beyond purging queues again.
func (w *Workflow) Block(ctx context.Context, actor models.Actor, item models.ItemID) error {
	if err := w.authz.Authorize(actor, authz.ObjectItems, authz.ActionBlock); err != nil {
		return err
	}

	it, err := w.store.GetItem(ctx, item)
	if err != nil {
		return fmt.Errorf("block item %d: %w", item, err)
	}

	now := w.now()
	created, err := w.store.BlockItem(ctx, item, actor.ID, now)
	if err != nil {
		return fmt.Errorf("failed to block item %d: %w", item, err)
	}

	w.filter.Forget(item)
	w.queues.PurgeItem(item)

	if !created {
		w.log.Debug().Int64("item_id", int64(item)).Msg("Item already blocked")
		return nil
	}

	w.publish(ctx, models.AuditEvent{
		Type:       models.EventItemBlocked,
		ActorID:    actor.ID,
		ItemID:     item,
		OccurredAt: now,
		Details: map[string]string{
			"owner_id": it.OwnerID.String(),
			"reports":  fmt.Sprint(it.ReportCount),
		},
	})

	w.log.Info().
		Str("moderator_id", actor.ID.String()).
		Int64("item_id", int64(item)).
		Str("owner_id", it.OwnerID.String()).
		Msg("Item blocked")
	return nil
}

// PendingReports lists reported items that are not blocked yet, most
// reported first. limit <= 0 selects the default page size.
func (w *Workflow) PendingReports(ctx context.Context, actor models.Actor, limit int) ([]models.ReportSummary, error) {
	if err := w.authz.Authorize(actor, authz.ObjectReports, authz.ActionReview); err != nil {
		return nil, err
	}
	switch {
	case limit <= 0:
		limit = defaultPendingLimit
	case limit > maxPendingLimit:
		limit = maxPendingLimit
	}

	rows, err := w.store.PendingReports(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending reports: %w", err)
	}
	return rows, nil
}

func (w *Workflow) publish(ctx context.Context, ev models.AuditEvent) {
	if err := w.events.Publish(ctx, ev); err != nil {
		w.log.Warn().Err(err).Str("event_type", string(ev.Type)).Msg("Failed to publish moderation event")
	}
}
