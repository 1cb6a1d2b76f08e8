// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package main

import (
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/tomtom215/artswap/internal/abuse"
	"github.com/tomtom215/artswap/internal/api"
	"github.com/tomtom215/artswap/internal/auth"
	"github.com/tomtom215/artswap/internal/authz"
	"github.com/tomtom215/artswap/internal/config"
	"github.com/tomtom215/artswap/internal/core"
	"github.com/tomtom215/artswap/internal/database"
	"github.com/tomtom215/artswap/internal/events"
	"github.com/tomtom215/artswap/internal/logging"
	"github.com/tomtom215/artswap/internal/metrics"
	"github.com/tomtom215/artswap/internal/moderation"
	"github.com/tomtom215/artswap/internal/notify"
	"github.com/tomtom215/artswap/internal/recommend/candidates"
	"github.com/tomtom215/artswap/internal/recommend/collab"
	"github.com/tomtom215/artswap/internal/recommend/queue"
	"github.com/tomtom215/artswap/internal/store"
)

// components holds everything the supervisor tree runs, plus the resources
// to release after it stops.
type components struct {
	bus     *events.Bus
	filter  *collab.Filter
	sweeper *notify.Sweeper
	server  *http.Server

	closers []namedCloser
}

type namedCloser struct {
	name string
	io.Closer
}

// close releases resources in reverse order of acquisition.
func (c *components) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i].Close(); err != nil {
			logging.Error().Err(err).Str("resource", c.closers[i].name).Msg("Error closing resource")
		}
	}
}

func openStore(cfg *config.DatabaseConfig) (store.Store, error) {
	switch cfg.Driver {
	case "memory":
		return store.NewMemory(), nil
	case "duckdb":
		db, err := database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("open duckdb: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}

// build wires the store, the engine and its transports. On error every
// resource opened so far is closed.
//
//nolint:gocyclo // Sequential wiring of independent components
func build(cfg *config.Config) (_ *components, err error) {
	c := &components{}
	defer func() {
		if err != nil {
			c.close()
		}
	}()

	st, err := openStore(&cfg.Database)
	if err != nil {
		return nil, err
	}
	c.closers = append(c.closers, namedCloser{"store", st})
	metrics.AppInfo.WithLabelValues(version, cfg.Database.Driver).Set(1)

	c.bus, err = events.NewBus(cfg.Events, logging.WithComponent("events"))
	if err != nil {
		return nil, fmt.Errorf("create event bus: %w", err)
	}
	c.closers = append(c.closers, namedCloser{"event bus", c.bus})
	if cfg.Events.AuditEnabled {
		events.NewAuditConsumer(st, logging.WithComponent("audit")).Register(c.bus)
	}

	enforcer, err := authz.NewEnforcer(authz.Config{
		Moderators: cfg.Security.Moderators,
		Admins:     cfg.Security.Admins,
	})
	if err != nil {
		return nil, fmt.Errorf("create authorizer: %w", err)
	}

	c.filter, err = collab.New(st, cfg.Collab, logging.WithComponent("collab"))
	if err != nil {
		return nil, fmt.Errorf("create collaborative filter: %w", err)
	}
	gen := candidates.New(st, cfg.Candidates, logging.WithComponent("candidates"))
	cache := queue.New(c.filter, gen, cfg.Queue.BatchSize, logging.WithComponent("queue"))
	gate := abuse.New(st, cfg.Abuse, c.bus, logging.WithComponent("abuse"))
	wf := moderation.New(st, gate, c.filter, cache, enforcer, c.bus, logging.WithComponent("moderation"))

	engine := core.New(core.Deps{
		Store:      st,
		Gate:       gate,
		Filter:     c.filter,
		Queue:      cache,
		Moderation: wf,
		Authorizer: enforcer,
		Events:     c.bus,
	}, cfg.Core, logging.WithComponent("core"))

	if cfg.Notify.Enabled {
		ledger, err := notify.OpenLedger(cfg.Notify.LedgerPath, cfg.Notify.LedgerTTL)
		if err != nil {
			return nil, fmt.Errorf("open notification ledger: %w", err)
		}
		c.closers = append(c.closers, namedCloser{"notification ledger", ledger})

		notifier, err := notify.NewNotifier(cfg.Notify, logging.WithComponent("notifier"))
		if err != nil {
			return nil, fmt.Errorf("create notifier: %w", err)
		}
		c.sweeper = notify.NewSweeper(st, engine, ledger, notifier, cfg.Notify, c.bus, logging.WithComponent("notify"))
	}

	jwt, err := auth.NewJWTManager(cfg.Security)
	if err != nil {
		return nil, fmt.Errorf("create JWT manager: %w", err)
	}
	router := api.NewRouter(engine, jwt, api.MiddlewareConfigFrom(cfg.Security))
	c.server = &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return c, nil
}
