// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/artswap/internal/models"
	"github.com/tomtom215/artswap/internal/store"
)

// UpsertInteraction inserts or replaces the score for (user, item).
func (db *DB) UpsertInteraction(ctx context.Context, in models.Interaction) (bool, error) {
	if !in.Score.Valid() {
		return false, models.ErrInvalidScore
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	at := in.CreatedAt.UTC()
	var created bool
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var items, existing int
		if err := tx.QueryRowContext(ctx, `
			SELECT
				(SELECT COUNT(*) FROM items WHERE id = $2),
				(SELECT COUNT(*) FROM interactions WHERE user_id = $1 AND item_id = $2)`,
			int64(in.UserID), int64(in.ItemID)).Scan(&items, &existing); err != nil {
			return fmt.Errorf("failed to check interaction: %w", err)
		}
		if items == 0 {
			return models.ErrItemNotFound
		}
		if err := ensureUser(ctx, tx, in.UserID, at); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO interactions (user_id, item_id, score, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (user_id, item_id) DO UPDATE SET
				score = excluded.score,
				created_at = excluded.created_at`,
			int64(in.UserID), int64(in.ItemID), int(in.Score), at); err != nil {
			return fmt.Errorf("failed to upsert interaction: %w", err)
		}
		created = existing == 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// HasInteraction reports whether the user scored the item.
func (db *DB) HasInteraction(ctx context.Context, user models.UserID, item models.ItemID) (bool, error) {
	n, err := db.countQuery(ctx, `SELECT COUNT(*) FROM interactions WHERE user_id = ? AND item_id = ?`, int64(user), int64(item))
	if err != nil {
		return false, fmt.Errorf("failed to check interaction: %w", err)
	}
	return n > 0, nil
}

// ListInteractions returns interactions ordered by user then item.
func (db *DB) ListInteractions(ctx context.Context, q store.InteractionQuery) ([]models.Interaction, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var (
		where []string
		args  []any
	)
	if q.ExcludeBlocked {
		where = append(where, `NOT EXISTS (SELECT 1 FROM blocks b WHERE b.item_id = x.item_id)`)
	}
	if q.UserID != 0 {
		where = append(where, `x.user_id = ?`)
		args = append(args, int64(q.UserID))
	}
	query := `SELECT x.user_id, x.item_id, x.score, x.created_at FROM interactions x`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY x.user_id, x.item_id`

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query interactions: %w", err)
	}
	defer closeWithLog(rows, "interaction rows")

	var out []models.Interaction
	for rows.Next() {
		var (
			in         models.Interaction
			user, item int64
			score      int
		)
		if err := rows.Scan(&user, &item, &score, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan interaction: %w", err)
		}
		in.UserID = models.UserID(user)
		in.ItemID = models.ItemID(item)
		in.Score = models.Score(score)
		out = append(out, in)
	}
	return out, rows.Err()
}

// RecentlyDislikedOwners returns owners of items the user scored negatively
// since the given time, most recent first.
func (db *DB) RecentlyDislikedOwners(ctx context.Context, user models.UserID, since time.Time, limit int) ([]models.UserID, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT i.owner_id, MAX(x.created_at) AS last_at
		FROM interactions x
		JOIN items i ON i.id = x.item_id
		WHERE x.user_id = $1 AND x.score < 0 AND x.created_at >= $2 AND i.owner_id <> $1
		GROUP BY i.owner_id
		ORDER BY last_at DESC, i.owner_id ASC`
	args := []any{int64(user), since.UTC()}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query disliked owners: %w", err)
	}
	defer closeWithLog(rows, "disliked owner rows")

	var owners []models.UserID
	for rows.Next() {
		var (
			owner  int64
			lastAt time.Time
		)
		if err := rows.Scan(&owner, &lastAt); err != nil {
			return nil, fmt.Errorf("failed to scan owner: %w", err)
		}
		owners = append(owners, models.UserID(owner))
	}
	return owners, rows.Err()
}

// CountUploads counts uploads the user made since the given time, including
// items deleted since.
func (db *DB) CountUploads(ctx context.Context, user models.UserID, since time.Time) (int, error) {
	n, err := db.countQuery(ctx, `SELECT COUNT(*) FROM uploads WHERE owner_id = ? AND created_at >= ?`, int64(user), since.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to count uploads: %w", err)
	}
	return n, nil
}
