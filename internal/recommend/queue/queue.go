// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

// Package queue is the per-user recommendation prefetch cache.
//
// Each user has an ordered queue of recommendations. Next pops the head and
// refills an empty queue from the collaborative filter, falling back to the
// heuristic candidate generator. Queues live in memory only.
package queue

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/artswap/internal/metrics"
	"github.com/tomtom215/artswap/internal/models"
)

// Predictor ranks items for a user. An empty result means no signal.
type Predictor interface {
	Predict(ctx context.Context, user models.UserID) ([]models.Recommendation, error)
}

// CandidateSource produces heuristic candidates.
type CandidateSource interface {
	RandomCandidates(ctx context.Context, user models.UserID, count int) ([]models.Recommendation, error)
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// Cache is safe for concurrent use.
type Cache struct {
	collab     Predictor
	candidates CandidateSource
	batch      int
	log        zerolog.Logger

	mu     sync.Mutex
	queues map[models.UserID][]models.Recommendation
	locks  map[models.UserID]*userLock
	depth  int // total queued recommendations
}

// New creates a Cache that refills batch items at a time.
func New(collab Predictor, candidates CandidateSource, batch int, log zerolog.Logger) *Cache {
	if batch < 1 {
		batch = 1
	}
	return &Cache{
		collab:     collab,
		candidates: candidates,
		batch:      batch,
		log:        log,
		queues:     make(map[models.UserID][]models.Recommendation),
		locks:      make(map[models.UserID]*userLock),
	}
}

// lockUser serializes refills and invalidation for one user.
func (c *Cache) lockUser(user models.UserID) func() {
	c.mu.Lock()
	l, ok := c.locks[user]
	if !ok {
		l = &userLock{}
		c.locks[user] = l
	}
	l.refs++
	c.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		c.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(c.locks, user)
		}
		c.mu.Unlock()
	}
}

// Next pops the head of the user's queue, refilling it first when empty.
// A nil recommendation means there is nothing to show.
func (c *Cache) Next(ctx context.Context, user models.UserID) (*models.Recommendation, error) {
	unlock := c.lockUser(user)
	defer unlock()

	if rec, ok := c.pop(user); ok {
		return rec, nil
	}

	batch, err := c.fetch(ctx, user)
	if err != nil {
		return nil, err
	}
	if len(batch) == 0 {
		return nil, nil
	}

	c.mu.Lock()
	c.setQueue(user, batch)
	c.mu.Unlock()

	rec, _ := c.pop(user)
	return rec, nil
}

// fetch asks the collaborative filter first and the generator second.
func (c *Cache) fetch(ctx context.Context, user models.UserID) ([]models.Recommendation, error) {
	recs, err := c.collab.Predict(ctx, user)
	if err != nil {
		c.log.Warn().Err(err).Int64("user_id", int64(user)).
			Msg("Collaborative filter failed, falling back to random candidates")
		recs = nil
	}
	if len(recs) > 0 {
		if len(recs) > c.batch {
			recs = recs[:c.batch]
		}
		metrics.RecordQueueRefill(recs[0].Source, len(recs))
		return append([]models.Recommendation(nil), recs...), nil
	}

	recs, err = c.candidates.RandomCandidates(ctx, user, c.batch)
	if err != nil {
		return nil, fmt.Errorf("random candidates: %w", err)
	}
	metrics.RecordQueueRefill(models.SourceRandom, len(recs))
	return recs, nil
}

func (c *Cache) pop(user models.UserID) (*models.Recommendation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	q := c.queues[user]
	if len(q) == 0 {
		return nil, false
	}
	head := q[0]
	c.setQueue(user, q[1:])
	return &head, true
}

// setQueue replaces the user's queue and keeps depth in step. c.mu must be held.
func (c *Cache) setQueue(user models.UserID, q []models.Recommendation) {
	c.depth += len(q) - len(c.queues[user])
	if len(q) == 0 {
		delete(c.queues, user)
	} else {
		c.queues[user] = q
	}
	metrics.QueueDepth.Set(float64(c.depth))
}

// Invalidate drops the user's whole queue. It waits for a refill in progress
// so the refilled batch is dropped too.
func (c *Cache) Invalidate(user models.UserID) {
	unlock := c.lockUser(user)
	defer unlock()

	c.mu.Lock()
	c.setQueue(user, nil)
	c.mu.Unlock()
}

// PurgeItem removes item from every queue.
func (c *Cache) PurgeItem(item models.ItemID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for user, q := range c.queues {
		kept := q[:0:0]
		for _, r := range q {
			if r.ItemID != item {
				kept = append(kept, r)
			}
		}
		if len(kept) != len(q) {
			c.setQueue(user, kept)
		}
	}
}

// Depth returns the number of queued recommendations across all users.
func (c *Cache) Depth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.depth
}

// Len returns the number of queued recommendations for user.
func (c *Cache) Len(user models.UserID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queues[user])
}
