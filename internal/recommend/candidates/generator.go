// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

// Package candidates produces heuristic recommendations for users the
// collaborative filter cannot serve.
//
// Candidates are unseen, non-blocked items with at most MaxReports reports,
// ordered by how few scores they have so fresh uploads get exposure. Items
// with equal score counts come back in a store-side order keyed by a seed
// drawn per call, so the cut to the requested count picks uniformly among
// ties rather than favouring the oldest ids.
package candidates

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/artswap/internal/config"
	"github.com/tomtom215/artswap/internal/models"
	"github.com/tomtom215/artswap/internal/store"
)

// Store is the slice of the interaction store the generator reads.
type Store interface {
	ListCandidates(ctx context.Context, q store.CandidateQuery) ([]store.CandidateRow, error)
	RecentlyDislikedOwners(ctx context.Context, user models.UserID, since time.Time, limit int) ([]models.UserID, error)
}

// Generator is safe for concurrent use.
type Generator struct {
	store Store
	cfg   config.CandidatesConfig
	log   zerolog.Logger
	now   func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Generator. A zero seed seeds from the clock.
func New(st Store, cfg config.CandidatesConfig, log zerolog.Logger) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.Oversample < 1 {
		cfg.Oversample = 1
	}
	return &Generator{
		store: st,
		cfg:   cfg,
		log:   log,
		now:   time.Now,
		//nolint:gosec // G404: tie-breaking, not security
		rng: rand.New(rand.NewSource(seed)),
	}
}

// WithClock replaces the time source. Intended for tests.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// RandomCandidates returns at most count items for user. An empty result
// means the pool is exhausted for this user.
func (g *Generator) RandomCandidates(ctx context.Context, user models.UserID, count int) ([]models.Recommendation, error) {
	if count <= 0 {
		return nil, nil
	}

	var exclude models.UserID
	owners, err := g.store.RecentlyDislikedOwners(ctx, user, g.now().Add(-g.cfg.DislikeWindow), 1)
	if err != nil {
		return nil, fmt.Errorf("recently disliked owners: %w", err)
	}
	if len(owners) > 0 {
		exclude = owners[0]
	}

	q := store.CandidateQuery{
		UserID:       user,
		ExcludeOwner: exclude,
		MaxReports:   g.cfg.MaxReports,
		Limit:        count * g.cfg.Oversample,
		Seed:         g.drawSeed(),
	}
	rows, err := g.store.ListCandidates(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	if len(rows) == 0 && exclude != 0 {
		g.log.Debug().
			Int64("user_id", int64(user)).
			Int64("excluded_owner", int64(exclude)).
			Msg("Owner exclusion emptied candidates, retrying without it")
		q.ExcludeOwner = 0
		if rows, err = g.store.ListCandidates(ctx, q); err != nil {
			return nil, fmt.Errorf("list candidates: %w", err)
		}
	}

	if len(rows) > count {
		rows = rows[:count]
	}

	out := make([]models.Recommendation, len(rows))
	for i, r := range rows {
		out[i] = models.Recommendation{
			ItemID:  r.Item.ID,
			Ref:     r.Item.Ref,
			OwnerID: r.Item.OwnerID,
			Source:  models.SourceRandom,
		}
	}
	return out, nil
}

func (g *Generator) drawSeed() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return int64(g.rng.Int31())
}
