// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

// Package main is the entry point for the ArtSwap server.
//
// ArtSwap exchanges images between peers: users upload pictures, are served
// pictures other users uploaded, and score them. Recommendations come from a
// collaborative filter over past scores, falling back to a heuristic
// candidate generator for cold-start users.
//
// # Application Architecture
//
// The server initializes components in the following order:
//
//  1. Configuration: struct defaults, then config.yaml, then environment (Koanf v2)
//  2. Interaction Store: DuckDB, or the in-memory driver for development
//  3. Event bus: Watermill GoChannel with the audit consumer
//  4. Engine: abuse gate, recommenders, queue cache, moderation workflow
//  5. Notification sweep (optional): badger delivery ledger plus notifier
//  6. HTTP API: chi router with JWT authentication
//
// Everything long-running is a suture service under one supervisor tree.
//
// # Signal Handling
//
// SIGINT and SIGTERM cancel the root context. The HTTP server drains
// in-flight requests, the collaborative filter refresh and sweep loops stop,
// and the store, ledger and bus are closed in reverse order.
//
// # Example Usage
//
//	export JWT_SECRET=$(openssl rand -base64 32)
//	export STORE_DRIVER=duckdb
//	export DUCKDB_PATH=/data/artswap.duckdb
//	export MODERATOR_IDS=1001,1002
//	./artswap
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/tomtom215/artswap/internal/config"
	"github.com/tomtom215/artswap/internal/logging"
	"github.com/tomtom215/artswap/internal/supervisor"
	"github.com/tomtom215/artswap/internal/supervisor/services"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})

	logging.Info().
		Str("version", version).
		Str("driver", cfg.Database.Driver).
		Str("environment", cfg.Server.Environment).
		Bool("notify_enabled", cfg.Notify.Enabled).
		Msg("Starting ArtSwap with supervisor tree")

	app, err := build(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize components")
	}
	defer app.close()

	tree := supervisor.NewTree(logging.NewSlogLogger("supervisor"), cfg.Supervisor)
	tree.AddEngineService(services.NewEventRouterService(app.bus))
	tree.AddEngineService(services.NewRefreshService(app.filter, cfg.Collab.RefreshInterval, logging.WithComponent("collab-refresh")))
	if app.sweeper != nil {
		tree.AddWorkerService(app.sweeper)
	}
	tree.AddAPIService(services.NewHTTPServerService(app.server, cfg.Server.ShutdownTimeout))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Str("addr", app.server.Addr).Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	// The channel receives exactly one value when the tree returns.
	var serveErr error
	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
		serveErr = <-errCh
	case serveErr = <-errCh:
	}
	if serveErr != nil && !errors.Is(serveErr, context.Canceled) {
		logging.Error().Err(serveErr).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}
