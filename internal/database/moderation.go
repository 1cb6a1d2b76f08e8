// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/artswap/internal/models"
)

// CreateReport records a report; a repeated (user, item) pair is a no-op.
func (db *DB) CreateReport(ctx context.Context, r models.Report) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	at := r.CreatedAt.UTC()
	var created bool
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var items int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE id = ?`, int64(r.ItemID)).Scan(&items); err != nil {
			return fmt.Errorf("failed to check item: %w", err)
		}
		if items == 0 {
			return models.ErrItemNotFound
		}
		if err := ensureUser(ctx, tx, r.UserID, at); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO reports (user_id, item_id, created_at) VALUES (?, ?, ?)
			ON CONFLICT (user_id, item_id) DO NOTHING`,
			int64(r.UserID), int64(r.ItemID), at)
		if err != nil {
			return fmt.Errorf("failed to insert report: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		created = n > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// FileReport records the report and the reporter's -2 interaction in one
// transaction. A repeated (user, item) pair writes nothing.
func (db *DB) FileReport(ctx context.Context, r models.Report) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	at := r.CreatedAt.UTC()
	var created bool
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var items int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE id = ?`, int64(r.ItemID)).Scan(&items); err != nil {
			return fmt.Errorf("failed to check item: %w", err)
		}
		if items == 0 {
			return models.ErrItemNotFound
		}
		if err := ensureUser(ctx, tx, r.UserID, at); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO reports (user_id, item_id, created_at) VALUES (?, ?, ?)
			ON CONFLICT (user_id, item_id) DO NOTHING`,
			int64(r.UserID), int64(r.ItemID), at)
		if err != nil {
			return fmt.Errorf("failed to insert report: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n == 0 {
			return nil
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO interactions (user_id, item_id, score, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT (user_id, item_id) DO UPDATE SET
				score = excluded.score,
				created_at = excluded.created_at`,
			int64(r.UserID), int64(r.ItemID), int(models.ScoreReport), at); err != nil {
			return fmt.Errorf("failed to record report score: %w", err)
		}
		created = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// BlockItem marks the item blocked; blocking twice is a no-op.
func (db *DB) BlockItem(ctx context.Context, item models.ItemID, moderator models.UserID, at time.Time) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var created bool
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var items int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE id = ?`, int64(item)).Scan(&items); err != nil {
			return fmt.Errorf("failed to check item: %w", err)
		}
		if items == 0 {
			return models.ErrItemNotFound
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO blocks (item_id, moderator_id, blocked_at) VALUES (?, ?, ?)
			ON CONFLICT (item_id) DO NOTHING`,
			int64(item), int64(moderator), at.UTC())
		if err != nil {
			return fmt.Errorf("failed to insert block: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		created = n > 0
		return nil
	})
	if err != nil {
		return false, err
	}
	return created, nil
}

// HasReport reports whether the user already reported the item.
func (db *DB) HasReport(ctx context.Context, user models.UserID, item models.ItemID) (bool, error) {
	n, err := db.countQuery(ctx, `SELECT COUNT(*) FROM reports WHERE user_id = ? AND item_id = ?`, int64(user), int64(item))
	if err != nil {
		return false, fmt.Errorf("failed to check report: %w", err)
	}
	return n > 0, nil
}

// CountReportsFiled counts reports the user filed since the given time.
func (db *DB) CountReportsFiled(ctx context.Context, user models.UserID, since time.Time) (int, error) {
	n, err := db.countQuery(ctx, `SELECT COUNT(*) FROM reports WHERE user_id = ? AND created_at >= ?`, int64(user), since.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to count reports: %w", err)
	}
	return n, nil
}

// CountReportedOwners counts distinct other owners of non-blocked items the
// user reported since the given time.
func (db *DB) CountReportedOwners(ctx context.Context, user models.UserID, since time.Time) (int, error) {
	n, err := db.countQuery(ctx, `
		SELECT COUNT(DISTINCT i.owner_id)
		FROM reports r
		JOIN items i ON i.id = r.item_id
		WHERE r.user_id = $1 AND r.created_at >= $2 AND i.owner_id <> $1
		  AND NOT EXISTS (SELECT 1 FROM blocks b WHERE b.item_id = r.item_id)`,
		int64(user), since.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to count reported owners: %w", err)
	}
	return n, nil
}

// PendingReports lists reported, non-blocked items by report count.
func (db *DB) PendingReports(ctx context.Context, limit int) ([]models.ReportSummary, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `
		SELECT i.id, i.ref, i.owner_id, i.fingerprint, i.created_at,
			COUNT(*) AS reports, MIN(r.created_at), MAX(r.created_at)
		FROM reports r
		JOIN items i ON i.id = r.item_id
		WHERE NOT EXISTS (SELECT 1 FROM blocks b WHERE b.item_id = i.id)
		GROUP BY i.id, i.ref, i.owner_id, i.fingerprint, i.created_at
		ORDER BY reports DESC, i.id ASC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending reports: %w", err)
	}
	defer closeWithLog(rows, "pending report rows")

	var out []models.ReportSummary
	for rows.Next() {
		var (
			s       models.ReportSummary
			id      int64
			ownerID int64
		)
		if err := rows.Scan(&id, &s.Item.Ref, &ownerID, &s.Item.Fingerprint, &s.Item.CreatedAt,
			&s.Reports, &s.FirstReportedAt, &s.LastReportedAt); err != nil {
			return nil, fmt.Errorf("failed to scan report summary: %w", err)
		}
		s.Item.ID = models.ItemID(id)
		s.Item.OwnerID = models.UserID(ownerID)
		s.Item.ReportCount = s.Reports
		out = append(out, s)
	}
	return out, rows.Err()
}

// RecordEvent appends an audit event.
func (db *DB) RecordEvent(ctx context.Context, ev models.AuditEvent) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	details := []byte("{}")
	if len(ev.Details) > 0 {
		b, err := json.Marshal(ev.Details)
		if err != nil {
			return fmt.Errorf("failed to encode event details: %w", err)
		}
		details = b
	}
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO audit_events (id, type, actor_id, item_id, score, occurred_at, details)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, string(ev.Type), int64(ev.ActorID), int64(ev.ItemID), int(ev.Score), ev.OccurredAt.UTC(), string(details))
	if err != nil {
		return fmt.Errorf("failed to record event %s: %w", ev.ID, err)
	}
	return nil
}

// ListEvents returns the most recently recorded events first.
func (db *DB) ListEvents(ctx context.Context, limit int) ([]models.AuditEvent, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	query := `SELECT id, type, actor_id, item_id, score, occurred_at, details FROM audit_events ORDER BY seq DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer closeWithLog(rows, "event rows")

	var out []models.AuditEvent
	for rows.Next() {
		var (
			ev           models.AuditEvent
			typ, details string
			actor, item  int64
			score        int
		)
		if err := rows.Scan(&ev.ID, &typ, &actor, &item, &score, &ev.OccurredAt, &details); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		ev.Type = models.EventType(typ)
		ev.ActorID = models.UserID(actor)
		ev.ItemID = models.ItemID(item)
		ev.Score = models.Score(score)
		if details != "" && details != "{}" {
			if err := json.Unmarshal([]byte(details), &ev.Details); err != nil {
				return nil, fmt.Errorf("failed to decode event details: %w", err)
			}
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
