// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/artswap/internal/logging"
)

// Migration is a versioned schema change applied exactly once.
type Migration struct {
	Version     int
	Name        string
	Description string
	SQL         string
	AppliedAt   time.Time
}

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

// Timestamps are stored as UTC TIMESTAMP so the ICU extension is never required.
var tableCreationQueries = []string{
	`CREATE SEQUENCE IF NOT EXISTS items_id_seq START 1`,
	`CREATE SEQUENCE IF NOT EXISTS audit_events_seq START 1`,
	`CREATE TABLE IF NOT EXISTS users (
		id BIGINT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		language TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL,
		last_activity TIMESTAMP NOT NULL,
		last_notified_at TIMESTAMP,
		moderation_state TEXT NOT NULL DEFAULT 'normal'
	)`,
	`CREATE TABLE IF NOT EXISTS items (
		id BIGINT PRIMARY KEY DEFAULT nextval('items_id_seq'),
		ref TEXT NOT NULL UNIQUE,
		owner_id BIGINT NOT NULL,
		fingerprint TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS interactions (
		user_id BIGINT NOT NULL,
		item_id BIGINT NOT NULL,
		score INTEGER NOT NULL CHECK (score IN (-2, -1, 1, 2)),
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, item_id)
	)`,
	`CREATE TABLE IF NOT EXISTS uploads (
		owner_id BIGINT NOT NULL,
		item_id BIGINT NOT NULL,
		created_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS reports (
		user_id BIGINT NOT NULL,
		item_id BIGINT NOT NULL,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (user_id, item_id)
	)`,
	`CREATE TABLE IF NOT EXISTS blocks (
		item_id BIGINT PRIMARY KEY,
		moderator_id BIGINT NOT NULL,
		blocked_at TIMESTAMP NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS audit_events (
		seq BIGINT PRIMARY KEY DEFAULT nextval('audit_events_seq'),
		id TEXT NOT NULL,
		type TEXT NOT NULL,
		actor_id BIGINT NOT NULL,
		item_id BIGINT NOT NULL DEFAULT 0,
		score INTEGER NOT NULL DEFAULT 0,
		occurred_at TIMESTAMP NOT NULL,
		details TEXT NOT NULL DEFAULT '{}'
	)`,
	`CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT,
		applied_at TIMESTAMP NOT NULL DEFAULT now()
	)`,
}

// createTables creates the core tables.
func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

// getMigrations returns all versioned migrations in order. Append only.
func (db *DB) getMigrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Name:        "interactions_item_idx",
			Description: "Per-item score counts for candidate ordering",
			SQL:         `CREATE INDEX IF NOT EXISTS idx_interactions_item ON interactions(item_id)`,
		},
		{
			Version:     2,
			Name:        "items_owner_created_idx",
			Description: "Upload window counts per owner",
			SQL:         `CREATE INDEX IF NOT EXISTS idx_items_owner_created ON items(owner_id, created_at)`,
		},
		{
			Version:     3,
			Name:        "reports_item_idx",
			Description: "Report counts per item and review queue",
			SQL:         `CREATE INDEX IF NOT EXISTS idx_reports_item ON reports(item_id)`,
		},
		{
			Version:     4,
			Name:        "reports_user_created_idx",
			Description: "Report window counts per reporter",
			SQL:         `CREATE INDEX IF NOT EXISTS idx_reports_user_created ON reports(user_id, created_at)`,
		},
		{
			Version:     5,
			Name:        "uploads_backfill",
			Description: "Seed the upload log from items created before it existed",
			SQL: `INSERT INTO uploads (owner_id, item_id, created_at)
				SELECT i.owner_id, i.id, i.created_at FROM items i
				WHERE NOT EXISTS (SELECT 1 FROM uploads u WHERE u.item_id = i.id)`,
		},
		{
			Version:     6,
			Name:        "uploads_owner_created_idx",
			Description: "Upload window counts per owner, surviving item deletion",
			SQL:         `CREATE INDEX IF NOT EXISTS idx_uploads_owner_created ON uploads(owner_id, created_at)`,
		},
	}
}

// runVersionedMigrations executes migrations not yet recorded in schema_migrations.
func (db *DB) runVersionedMigrations() error {
	ctx, cancel := schemaContext()
	defer cancel()

	applied, err := db.getAppliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	newMigrations := 0
	for _, m := range db.getMigrations() {
		if _, exists := applied[m.Version]; exists {
			continue
		}
		if _, err := db.conn.ExecContext(ctx, m.SQL); err != nil {
			return fmt.Errorf("failed to execute migration v%d (%s): %w", m.Version, m.Name, err)
		}
		if _, err := db.conn.ExecContext(ctx,
			`INSERT INTO schema_migrations (version, name, description) VALUES (?, ?, ?)`,
			m.Version, m.Name, m.Description); err != nil {
			return fmt.Errorf("failed to record migration v%d: %w", m.Version, err)
		}
		newMigrations++
	}

	if newMigrations > 0 {
		logging.Info().Int("count", newMigrations).Msg("Applied database migrations")
	}
	return nil
}

func (db *DB) getAppliedMigrations(ctx context.Context) (map[int]Migration, error) {
	rows, err := db.conn.QueryContext(ctx, `SELECT version, name, description, applied_at FROM schema_migrations ORDER BY version`)
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer closeWithLog(rows, "migration rows")

	applied := make(map[int]Migration)
	for rows.Next() {
		var m Migration
		if err := rows.Scan(&m.Version, &m.Name, &m.Description, &m.AppliedAt); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		applied[m.Version] = m
	}
	return applied, rows.Err()
}

// GetCurrentSchemaVersion returns the highest applied migration version.
func (db *DB) GetCurrentSchemaVersion(ctx context.Context) (int, error) {
	version, err := db.countQuery(ctx, `SELECT COALESCE(MAX(version), 0) FROM schema_migrations`)
	if err != nil {
		return 0, fmt.Errorf("failed to get schema version: %w", err)
	}
	return version, nil
}
