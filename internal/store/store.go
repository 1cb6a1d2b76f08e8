// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

// Package store defines the Interaction Store contract used by the
// recommendation and moderation core, the typed queries passed
// through it, and an in-memory driver.
//
// The DuckDB driver lives in internal/database. Both drivers satisfy Store and
// are exercised by the same behavioural tests.
package store

import (
	"context"
	"time"

	"github.com/tomtom215/artswap/internal/models"
)

// CandidateQuery selects unseen items for the heuristic candidate path.
type CandidateQuery struct {
	// UserID is the viewer; items they scored are excluded.
	UserID models.UserID

	// ExcludeOwner drops items owned by this user. Zero disables the filter.
	ExcludeOwner models.UserID

	// MaxReports drops items with more than this many reports.
	MaxReports int

	// Limit caps the number of rows. Zero means no cap.
	Limit int

	// Seed keys the pseudo-random order of items with equal score counts.
	// The order is applied before Limit, so every tied item can be returned.
	// Callers keep it below 1<<31.
	Seed int64
}

// CandidateRow is an item with the aggregates the generator orders by.
type CandidateRow struct {
	Item       models.Item
	ScoreCount int
}

// InteractionQuery selects interactions for matrix building.
type InteractionQuery struct {
	// ExcludeBlocked drops interactions on blocked items.
	ExcludeBlocked bool

	// UserID restricts to one user. Zero selects all users.
	UserID models.UserID
}

// NotifyQuery selects users due a notification.
type NotifyQuery struct {
	// IdleSince selects users whose last activity is at or before this time.
	IdleSince time.Time

	// NotifiedBefore selects users never notified or notified at or before this time.
	NotifiedBefore time.Time

	Limit int
}

// ItemStore reads and writes items.
type ItemStore interface {
	// CreateItem inserts the item together with the owner's self-upload
	// interaction. A fingerprint or ref collision returns *models.DuplicateContentError.
	CreateItem(ctx context.Context, item models.NewItem) (*models.Item, error)

	// FindDuplicate returns the item holding fingerprint or ref, or models.ErrItemNotFound.
	FindDuplicate(ctx context.Context, fingerprint, ref string) (*models.Item, error)

	GetItem(ctx context.Context, id models.ItemID) (*models.Item, error)
	GetItemByRef(ctx context.Context, ref string) (*models.Item, error)

	// DeleteItem removes the item and cascades interactions, reports and block.
	DeleteItem(ctx context.Context, id models.ItemID) error

	// CountItems counts all items, blocked or not.
	CountItems(ctx context.Context) (int, error)

	// ListCandidates returns rows ordered by ascending score count, ties in
	// an order keyed by q.Seed.
	ListCandidates(ctx context.Context, q CandidateQuery) ([]CandidateRow, error)
}

// InteractionStore reads and writes interactions.
type InteractionStore interface {
	// UpsertInteraction inserts or replaces the score for the pair. created is
	// false when an existing row was updated.
	UpsertInteraction(ctx context.Context, in models.Interaction) (created bool, err error)

	HasInteraction(ctx context.Context, user models.UserID, item models.ItemID) (bool, error)

	// ListInteractions returns interactions ordered by user then item.
	ListInteractions(ctx context.Context, q InteractionQuery) ([]models.Interaction, error)

	// RecentlyDislikedOwners returns distinct owners of items the user scored
	// negatively at or after since, most recent first, excluding the user.
	RecentlyDislikedOwners(ctx context.Context, user models.UserID, since time.Time, limit int) ([]models.UserID, error)

	// CountUploads counts items the user created at or after since. Deleted
	// items still count.
	CountUploads(ctx context.Context, user models.UserID, since time.Time) (int, error)
}

// ModerationStore reads and writes reports, blocks and the audit log.
type ModerationStore interface {
	// CreateReport returns created=false when the pair was already reported.
	CreateReport(ctx context.Context, r models.Report) (created bool, err error)

	// FileReport stores the report and the reporter's report-score
	// interaction together, or neither. created is false, and nothing is
	// written, when the pair was already reported.
	FileReport(ctx context.Context, r models.Report) (created bool, err error)

	HasReport(ctx context.Context, user models.UserID, item models.ItemID) (bool, error)

	// BlockItem returns created=false when the item was already blocked.
	BlockItem(ctx context.Context, item models.ItemID, moderator models.UserID, at time.Time) (created bool, err error)

	// CountReportsFiled counts reports the user filed at or after since.
	CountReportsFiled(ctx context.Context, user models.UserID, since time.Time) (int, error)

	// CountReportedOwners counts distinct other users whose non-blocked items
	// the user reported at or after since.
	CountReportedOwners(ctx context.Context, user models.UserID, since time.Time) (int, error)

	// PendingReports lists reported, non-blocked items by report count, descending.
	PendingReports(ctx context.Context, limit int) ([]models.ReportSummary, error)

	RecordEvent(ctx context.Context, ev models.AuditEvent) error
	ListEvents(ctx context.Context, limit int) ([]models.AuditEvent, error)
}

// UserStore reads and writes users.
type UserStore interface {
	// TouchUser creates the user or refreshes name, language and last activity.
	TouchUser(ctx context.Context, p models.Profile, at time.Time) error

	GetUser(ctx context.Context, id models.UserID) (*models.User, error)
	SetModerationState(ctx context.Context, id models.UserID, state models.ModerationState) error
	UserStats(ctx context.Context, id models.UserID) (models.UserStats, error)

	UsersToNotify(ctx context.Context, q NotifyQuery) ([]models.UserID, error)
	MarkNotified(ctx context.Context, id models.UserID, at time.Time) error
}

// Store is the full Interaction Store.
type Store interface {
	ItemStore
	InteractionStore
	ModerationStore
	UserStore

	Ping(ctx context.Context) error
	Close() error
}
