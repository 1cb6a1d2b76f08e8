// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

// Package supervisor runs the long-lived background loops of ArtSwap under a
// suture supervisor tree.
//
// The tree has three layers so a crash in one does not restart the others:
//
//	engine:  event router, collaborative filter refresh
//	workers: notification sweep
//	api:     HTTP server
package supervisor

import (
	"context"
	"log/slog"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/tomtom215/artswap/internal/config"
)

// Tree is the ArtSwap supervisor tree.
type Tree struct {
	root    *suture.Supervisor
	engine  *suture.Supervisor
	workers *suture.Supervisor
	api     *suture.Supervisor
	cfg     config.SupervisorConfig
}

// NewTree builds the tree. Zero values in cfg fall back to suture's defaults.
func NewTree(logger *slog.Logger, cfg config.SupervisorConfig) *Tree {
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.FailureDecay == 0 {
		cfg.FailureDecay = 30
	}
	if cfg.FailureBackoff == 0 {
		cfg.FailureBackoff = 15 * time.Second
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}

	// MustHook has a pointer receiver.
	hook := (&sutureslog.Handler{Logger: logger}).MustHook()

	spec := suture.Spec{
		FailureThreshold: cfg.FailureThreshold,
		FailureDecay:     cfg.FailureDecay,
		FailureBackoff:   cfg.FailureBackoff,
		Timeout:          cfg.ShutdownTimeout,
	}
	rootSpec := spec
	rootSpec.EventHook = hook

	t := &Tree{
		root:    suture.New("artswap", rootSpec),
		engine:  suture.New("engine", spec),
		workers: suture.New("workers", spec),
		api:     suture.New("api", spec),
		cfg:     cfg,
	}
	t.root.Add(t.engine)
	t.root.Add(t.workers)
	t.root.Add(t.api)
	return t
}

// AddEngineService adds the event router or the collaborative refresh loop.
func (t *Tree) AddEngineService(svc suture.Service) suture.ServiceToken {
	return t.engine.Add(svc)
}

// AddWorkerService adds a periodic worker such as the notification sweep.
func (t *Tree) AddWorkerService(svc suture.Service) suture.ServiceToken {
	return t.workers.Add(svc)
}

// AddAPIService adds the HTTP server.
func (t *Tree) AddAPIService(svc suture.Service) suture.ServiceToken {
	return t.api.Add(svc)
}

// Serve blocks until ctx is canceled.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}

// ServeBackground starts the tree and returns a channel receiving its result.
func (t *Tree) ServeBackground(ctx context.Context) <-chan error {
	return t.root.ServeBackground(ctx)
}

// UnstoppedServiceReport lists services that missed the shutdown timeout.
func (t *Tree) UnstoppedServiceReport() ([]suture.UnstoppedService, error) {
	return t.root.UnstoppedServiceReport()
}
