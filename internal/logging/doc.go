// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

// Package logging wraps a process-wide zerolog logger.
//
// Call Init once from main with the values from config.LoggingConfig, then
// log through the package helpers or a component logger:
//
//	logging.Init(logging.Config{Level: "info", Format: "json", Timestamp: true})
//	logging.Info().Int64("user_id", 42).Msg("Upload accepted")
//
//	log := logging.WithComponent("collab")
//	log.Debug().Int("users", n).Msg("Matrix rebuilt")
//
// Request-scoped code uses Ctx so correlation and request ids travel with the
// message:
//
//	logging.Ctx(ctx).Warn().Err(err).Msg("Score rejected")
//
// Libraries that expect *slog.Logger (suture, watermill) get one backed by
// the same zerolog logger through NewSlogLogger.
//
// Always finish an event with Msg or Send; an unfinished event is dropped.
package logging
