// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/artswap/internal/models"
	"github.com/tomtom215/artswap/internal/store"
)

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ensureUser inserts a bare user row if none exists.
func ensureUser(ctx context.Context, ex execer, id models.UserID, at time.Time) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO users (id, created_at, updated_at, last_activity)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`,
		int64(id), at.UTC(), at.UTC(), at.UTC())
	if err != nil {
		return fmt.Errorf("failed to ensure user %d: %w", id, err)
	}
	return nil
}

// TouchUser creates the user or refreshes name, language and last activity.
func (db *DB) TouchUser(ctx context.Context, p models.Profile, at time.Time) error {
	if p.ID <= 0 {
		return models.ErrInvalidArgument
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	at = at.UTC()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO users (id, name, language, created_at, updated_at, last_activity)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = CASE WHEN excluded.name = '' THEN name ELSE excluded.name END,
			language = CASE WHEN excluded.language = '' THEN language ELSE excluded.language END,
			updated_at = excluded.updated_at,
			last_activity = excluded.last_activity`,
		int64(p.ID), p.Name, p.Language, at, at, at)
	if err != nil {
		return fmt.Errorf("failed to touch user %d: %w", p.ID, err)
	}
	return nil
}

// GetUser returns the user or models.ErrUserNotFound.
func (db *DB) GetUser(ctx context.Context, id models.UserID) (*models.User, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var (
		u        models.User
		rawID    int64
		notified sql.NullTime
		state    string
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT id, name, language, created_at, updated_at, last_activity, last_notified_at, moderation_state
		FROM users WHERE id = ?`, int64(id)).
		Scan(&rawID, &u.Name, &u.Language, &u.CreatedAt, &u.UpdatedAt, &u.LastActivity, &notified, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user %d: %w", id, err)
	}
	u.ID = models.UserID(rawID)
	u.ModerationState = models.ModerationState(state)
	if notified.Valid {
		t := notified.Time
		u.LastNotifiedAt = &t
	}
	return &u, nil
}

// SetModerationState persists the gate's decision for the user.
func (db *DB) SetModerationState(ctx context.Context, id models.UserID, state models.ModerationState) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	now := time.Now().UTC()
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO users (id, created_at, updated_at, last_activity, moderation_state)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET moderation_state = excluded.moderation_state`,
		int64(id), now, now, now, string(state))
	if err != nil {
		return fmt.Errorf("failed to set moderation state for user %d: %w", id, err)
	}
	return nil
}

// UserStats counts uploads and likes for the user. Unknown users get zero stats.
func (db *DB) UserStats(ctx context.Context, id models.UserID) (models.UserStats, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var (
		stats models.UserStats
		state string
	)
	err := db.conn.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM items WHERE owner_id = $1),
			(SELECT COUNT(*) FROM interactions WHERE user_id = $1 AND score = 1),
			(SELECT COUNT(*) FROM interactions x JOIN items i ON i.id = x.item_id
				WHERE i.owner_id = $1 AND x.user_id <> $1 AND x.score = 1),
			COALESCE((SELECT moderation_state FROM users WHERE id = $1), 'normal')`,
		int64(id)).
		Scan(&stats.UploadedCount, &stats.LikesGiven, &stats.LikesReceived, &state)
	if err != nil {
		return models.UserStats{}, fmt.Errorf("failed to get stats for user %d: %w", id, err)
	}
	stats.ModerationState = models.ModerationState(state)
	return stats, nil
}

// UsersToNotify selects idle users not notified recently, by id.
func (db *DB) UsersToNotify(ctx context.Context, q store.NotifyQuery) ([]models.UserID, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT id FROM users
		WHERE last_activity <= ?
		  AND (last_notified_at IS NULL OR last_notified_at <= ?)
		ORDER BY id`
	args := []any{q.IdleSince.UTC(), q.NotifiedBefore.UTC()}
	if q.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, q.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users to notify: %w", err)
	}
	defer closeWithLog(rows, "notify rows")

	var ids []models.UserID
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, models.UserID(id))
	}
	return ids, rows.Err()
}

// MarkNotified records a delivered notification.
func (db *DB) MarkNotified(ctx context.Context, id models.UserID, at time.Time) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx, `UPDATE users SET last_notified_at = ? WHERE id = ?`, at.UTC(), int64(id))
	if err != nil {
		return fmt.Errorf("failed to mark user %d notified: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return models.ErrUserNotFound
	}
	return nil
}
