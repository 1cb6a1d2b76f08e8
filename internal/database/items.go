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
	"strings"

	"github.com/tomtom215/artswap/internal/models"
	"github.com/tomtom215/artswap/internal/store"
)

// itemSelect reads an item with its derived block flag and report count.
const itemSelect = `
	SELECT i.id, i.ref, i.owner_id, i.fingerprint, i.created_at,
		EXISTS (SELECT 1 FROM blocks b WHERE b.item_id = i.id) AS blocked,
		(SELECT COUNT(*) FROM reports r WHERE r.item_id = i.id) AS reports
	FROM items i`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*models.Item, error) {
	var (
		it      models.Item
		id      int64
		ownerID int64
	)
	if err := row.Scan(&id, &it.Ref, &ownerID, &it.Fingerprint, &it.CreatedAt, &it.Blocked, &it.ReportCount); err != nil {
		return nil, err
	}
	it.ID = models.ItemID(id)
	it.OwnerID = models.UserID(ownerID)
	return &it, nil
}

func (db *DB) getItemWhere(ctx context.Context, where string, args ...any) (*models.Item, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	it, err := scanItem(db.conn.QueryRowContext(ctx, itemSelect+" WHERE "+where, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return it, nil
}

// GetItem returns the item or models.ErrItemNotFound.
func (db *DB) GetItem(ctx context.Context, id models.ItemID) (*models.Item, error) {
	return db.getItemWhere(ctx, "i.id = ?", int64(id))
}

// GetItemByRef returns the item holding ref or models.ErrItemNotFound.
func (db *DB) GetItemByRef(ctx context.Context, ref string) (*models.Item, error) {
	return db.getItemWhere(ctx, "i.ref = ?", ref)
}

// FindDuplicate returns the item holding fingerprint or ref, fingerprint first.
func (db *DB) FindDuplicate(ctx context.Context, fingerprint, ref string) (*models.Item, error) {
	if fingerprint != "" {
		it, err := db.getItemWhere(ctx, "i.fingerprint = ?", fingerprint)
		if !errors.Is(err, models.ErrItemNotFound) {
			return it, err
		}
	}
	if ref != "" {
		return db.GetItemByRef(ctx, ref)
	}
	return nil, models.ErrItemNotFound
}

// duplicateError builds the typed error for a collision with existing.
func duplicateError(n models.NewItem, existing *models.Item) error {
	field := "ref"
	if existing.Fingerprint == n.Fingerprint {
		field = "fingerprint"
	}
	return &models.DuplicateContentError{Field: field, Existing: existing}
}

// CreateItem inserts the item and the owner's self-upload interaction in one
// transaction. Collisions return *models.DuplicateContentError.
func (db *DB) CreateItem(ctx context.Context, n models.NewItem) (*models.Item, error) {
	if n.OwnerID <= 0 || n.Fingerprint == "" || n.Ref == "" {
		return nil, models.ErrInvalidArgument
	}

	if existing, err := db.FindDuplicate(ctx, n.Fingerprint, n.Ref); err == nil {
		return nil, duplicateError(n, existing)
	} else if !errors.Is(err, models.ErrItemNotFound) {
		return nil, err
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	at := n.CreatedAt.UTC()
	var id int64
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if err := ensureUser(ctx, tx, n.OwnerID, at); err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO items (ref, owner_id, fingerprint, created_at)
			VALUES (?, ?, ?, ?)
			RETURNING id`,
			n.Ref, int64(n.OwnerID), n.Fingerprint, at).Scan(&id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO interactions (user_id, item_id, score, created_at)
			VALUES (?, ?, ?, ?)`,
			int64(n.OwnerID), id, int(models.ScoreSelfUpload), at); err != nil {
			return fmt.Errorf("failed to record self upload: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO uploads (owner_id, item_id, created_at) VALUES (?, ?, ?)`,
			int64(n.OwnerID), id, at); err != nil {
			return fmt.Errorf("failed to log upload: %w", err)
		}
		return nil
	})
	if err != nil {
		// A concurrent upload of the same content wins the unique index or the
		// write conflict; report it the same way as the pre-check would.
		if existing, findErr := db.FindDuplicate(ctx, n.Fingerprint, n.Ref); findErr == nil {
			return nil, duplicateError(n, existing)
		}
		if isUniqueViolation(err) {
			return nil, &models.DuplicateContentError{Field: "fingerprint"}
		}
		return nil, fmt.Errorf("failed to create item: %w", err)
	}

	return &models.Item{
		ID:          models.ItemID(id),
		Ref:         n.Ref,
		OwnerID:     n.OwnerID,
		Fingerprint: n.Fingerprint,
		CreatedAt:   at,
	}, nil
}

// DeleteItem removes the item and every dependent row except its upload log
// entry.
func (db *DB) DeleteItem(ctx context.Context, id models.ItemID) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		for _, table := range []string{"interactions", "reports", "blocks"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE item_id = ?", int64(id)); err != nil {
				return fmt.Errorf("failed to delete %s for item %d: %w", table, id, err)
			}
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ?`, int64(id))
		if err != nil {
			return fmt.Errorf("failed to delete item %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n == 0 {
			return models.ErrItemNotFound
		}
		return nil
	})
}

// CountItems counts all items.
func (db *DB) CountItems(ctx context.Context) (int, error) {
	n, err := db.countQuery(ctx, `SELECT COUNT(*) FROM items`)
	if err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return n, nil
}

// ListCandidates returns unseen, unblocked, under-reported items ordered by
// ascending score count, ties by a hash keyed on q.Seed.
func (db *DB) ListCandidates(ctx context.Context, q store.CandidateQuery) ([]store.CandidateRow, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var (
		sb   strings.Builder
		args []any
	)
	sb.WriteString(`
		SELECT i.id, i.ref, i.owner_id, i.fingerprint, i.created_at,
			FALSE AS blocked,
			COALESCE(r.cnt, 0) AS reports,
			COALESCE(s.cnt, 0) AS scores
		FROM items i
		LEFT JOIN (SELECT item_id, COUNT(*) AS cnt FROM reports GROUP BY item_id) r ON r.item_id = i.id
		LEFT JOIN (SELECT item_id, COUNT(*) AS cnt FROM interactions GROUP BY item_id) s ON s.item_id = i.id
		WHERE NOT EXISTS (SELECT 1 FROM blocks b WHERE b.item_id = i.id)
		  AND NOT EXISTS (SELECT 1 FROM interactions x WHERE x.item_id = i.id AND x.user_id = ?)
		  AND COALESCE(r.cnt, 0) <= ?`)
	args = append(args, int64(q.UserID), q.MaxReports)
	if q.ExcludeOwner != 0 {
		sb.WriteString(` AND i.owner_id <> ?`)
		args = append(args, int64(q.ExcludeOwner))
	}
	sb.WriteString(` ORDER BY scores ASC, hash(i.id + ?) ASC, i.id ASC`)
	args = append(args, q.Seed)
	if q.Limit > 0 {
		sb.WriteString(` LIMIT ?`)
		args = append(args, q.Limit)
	}

	rows, err := db.conn.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query candidates: %w", err)
	}
	defer closeWithLog(rows, "candidate rows")

	var out []store.CandidateRow
	for rows.Next() {
		var (
			row     store.CandidateRow
			id      int64
			ownerID int64
		)
		if err := rows.Scan(&id, &row.Item.Ref, &ownerID, &row.Item.Fingerprint, &row.Item.CreatedAt,
			&row.Item.Blocked, &row.Item.ReportCount, &row.ScoreCount); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		row.Item.ID = models.ItemID(id)
		row.Item.OwnerID = models.UserID(ownerID)
		out = append(out, row)
	}
	return out, rows.Err()
}
