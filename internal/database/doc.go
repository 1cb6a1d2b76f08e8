// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

// Package database is the DuckDB driver for the Interaction Store.
//
// # Overview
//
// DB implements store.Store on an embedded DuckDB file (or ":memory:" in
// tests). It owns the schema, versioned migrations and the mapping of
// constraint violations to the model errors callers match on.
//
// # Files
//
//   - database.go: connection lifecycle, timeouts, transactions
//   - schema.go: table creation and versioned migrations
//   - users.go: user touch, moderation state, stats, notification selection
//   - items.go: item creation with duplicate detection, lookup, cascade delete
//   - interactions.go: score upsert and matrix/window queries
//   - moderation.go: reports, blocks, review queue, audit events
//
// # Concurrency
//
// DuckDB serializes writers with optimistic concurrency. Multi-statement
// writes run in a transaction; callers that need read-modify-write atomicity
// across calls hold their own per-user locks.
//
// # Foreign Keys
//
// DuckDB does not support ON DELETE CASCADE, so DeleteItem removes dependent
// rows explicitly inside one transaction.
package database
