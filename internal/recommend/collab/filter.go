// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

// Package collab implements user-based collaborative filtering over the
// interaction store.
//
// # Model
//
// Interactions on non-blocked items are pivoted into a dense user x item
// matrix. Each row is centered on the mean of its observed cells and missing
// cells are 0 after centering. User similarity is the cosine between
// centered rows.
//
// For a target user, raters are users with positive similarity (minus the
// owners the target recently disliked). Each unscored item j gets
//
//	affinity(j) = sum_r weight(sim(u, r)) * raw(r, j) / sqrt(n_j + 1)
//
// where n_j counts raters who scored j. The top K items are returned.
//
// weight is either the similarity itself (linear) or the similarity scaled
// by its tier factor: 1.0 at sim >= 0.5, 0.5 from 0.2 to 0.5, 0.2 below.
// The factor multiplies sim; it does not replace it.
//
// # Snapshots
//
// Matrices live in an immutable snapshot behind an atomic pointer. A rebuild
// constructs a new snapshot off to the side and swaps it in; readers never
// block. Only one rebuild runs at a time and a failed rebuild keeps the
// previous snapshot. Between rebuilds, Observe and Forget record single-cell
// changes that Predict applies on top of the snapshot.
package collab

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/artswap/internal/config"
	"github.com/tomtom215/artswap/internal/metrics"
	"github.com/tomtom215/artswap/internal/models"
	"github.com/tomtom215/artswap/internal/store"
)

// Store is the slice of the interaction store the filter reads.
type Store interface {
	ListInteractions(ctx context.Context, q store.InteractionQuery) ([]models.Interaction, error)
	RecentlyDislikedOwners(ctx context.Context, user models.UserID, since time.Time, limit int) ([]models.UserID, error)
	CountItems(ctx context.Context) (int, error)
}

// Stats describes the current snapshot.
type Stats struct {
	Users               int       `json:"users"`
	Items               int       `json:"items"`
	BuiltAt             time.Time `json:"built_at"`
	SimilarityBuiltAt   time.Time `json:"similarity_built_at"`
	RefreshesSinceSim   int       `json:"refreshes_since_similarity"`
	PendingObservations int       `json:"pending_observations"`
	ForgottenItems      int       `json:"forgotten_items"`
}

// Filter is safe for concurrent use.
type Filter struct {
	store     Store
	cfg       config.CollabConfig
	weighting Weighting
	log       zerolog.Logger
	now       func() time.Time

	snap    atomic.Pointer[snapshot]
	rebuild sync.Mutex

	// overlay holds changes made after the current snapshot was built,
	// tagged with the generation they were recorded in.
	overlayMu sync.RWMutex
	gen       uint64
	observed  map[models.UserID]map[models.ItemID]uint64
	forgotten map[models.ItemID]uint64

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New creates a Filter. The first Predict or Refresh builds the snapshot.
func New(st Store, cfg config.CollabConfig, log zerolog.Logger) (*Filter, error) {
	w, err := WeightingByName(cfg.Weighting)
	if err != nil {
		return nil, err
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if cfg.SimilarityEvery < 1 {
		cfg.SimilarityEvery = 1
	}
	return &Filter{
		store:     st,
		cfg:       cfg,
		weighting: w,
		log:       log,
		now:       time.Now,
		observed:  make(map[models.UserID]map[models.ItemID]uint64),
		forgotten: make(map[models.ItemID]uint64),
		//nolint:gosec // G404: cold-start pick, not security
		rng: rand.New(rand.NewSource(seed)),
	}, nil
}

// WithClock replaces the time source. Intended for tests.
func (f *Filter) WithClock(now func() time.Time) *Filter {
	f.now = now
	return f
}

// Refresh rebuilds the data matrices when stale (or always, with force) and
// recomputes similarity on its own cadence. If another rebuild is running it
// returns immediately.
func (f *Filter) Refresh(ctx context.Context, force bool) error {
	if !f.rebuild.TryLock() {
		metrics.RecordCollabRebuildSkipped()
		return nil
	}
	defer f.rebuild.Unlock()

	cur := f.snap.Load()
	itemCount, err := f.store.CountItems(ctx)
	if err != nil {
		return fmt.Errorf("count items: %w", err)
	}

	now := f.now()
	if !force && !f.dataStale(cur, itemCount, now) {
		if cur != nil && now.Sub(cur.sim.builtAt) > f.cfg.SimilarityMaxAge {
			return f.refreshSimilarity(cur, now)
		}
		return nil
	}
	return f.rebuildData(ctx, cur, itemCount, now)
}

func (f *Filter) dataStale(cur *snapshot, itemCount int, now time.Time) bool {
	if cur == nil {
		return true
	}
	return itemCount-cur.itemCount > f.cfg.RebuildItemDelta &&
		now.Sub(cur.builtAt) >= f.cfg.RebuildMinInterval
}

func (f *Filter) rebuildData(ctx context.Context, cur *snapshot, itemCount int, now time.Time) error {
	start := time.Now()
	gen := f.currentGen()

	interactions, err := f.store.ListInteractions(ctx, store.InteractionQuery{ExcludeBlocked: true})
	if err != nil {
		metrics.RecordCollabRebuild(0, 0, 0, err)
		return fmt.Errorf("list interactions: %w", err)
	}

	next := buildMatrices(interactions)
	next.itemCount = itemCount
	next.builtAt = now

	recompute := cur == nil ||
		cur.refreshesSinceSim+1 >= f.cfg.SimilarityEvery ||
		now.Sub(cur.sim.builtAt) > f.cfg.SimilarityMaxAge
	if recompute {
		sim, err := computeSimilarity(next, now)
		if err != nil {
			metrics.RecordCollabRebuild(0, 0, 0, err)
			return fmt.Errorf("rebuild: %w", err)
		}
		next.sim = sim
	} else {
		next.sim = cur.sim
		next.refreshesSinceSim = cur.refreshesSinceSim + 1
	}

	f.snap.Store(next)
	f.dropOverlay(gen)
	metrics.RecordCollabRebuild(time.Since(start), len(next.users), len(next.items), nil)

	f.log.Info().
		Int("users", len(next.users)).
		Int("items", len(next.items)).
		Int("interactions", len(interactions)).
		Bool("similarity_recomputed", recompute).
		Dur("duration", time.Since(start)).
		Msg("Collaborative filter rebuilt")

	if recompute {
		f.logEvaluation(next)
	}
	return nil
}

// refreshSimilarity replaces only the similarity of cur.
func (f *Filter) refreshSimilarity(cur *snapshot, now time.Time) error {
	sim, err := computeSimilarity(cur, now)
	if err != nil {
		return fmt.Errorf("refresh similarity: %w", err)
	}
	next := *cur
	next.sim = sim
	next.refreshesSinceSim = 0
	f.snap.Store(&next)
	f.log.Debug().Int("users", len(cur.users)).Msg("Similarity recomputed on age")
	f.logEvaluation(&next)
	return nil
}

func (f *Filter) logEvaluation(s *snapshot) {
	ev := evaluate(s, f.weighting)
	f.log.Info().
		Int("correct", ev.Correct).
		Int("false_positive", ev.FalsePositive).
		Int("false_negative", ev.FalseNegative).
		Float64("accuracy", ev.Accuracy).
		Msg("Collaborative filter self-check")
}

// Predict ranks unscored items for user. An empty result asks the caller to
// fall back to heuristic candidates.
func (f *Filter) Predict(ctx context.Context, user models.UserID) ([]models.Recommendation, error) {
	if err := f.Refresh(ctx, false); err != nil {
		f.log.Warn().Err(err).Msg("Collaborative filter refresh failed, using previous snapshot")
	}

	s := f.snap.Load()
	if s == nil {
		return []models.Recommendation{}, nil
	}

	ui, known := s.userIdx[user]
	if !known {
		return f.coldStart(s, user), nil
	}

	disliked, err := f.store.RecentlyDislikedOwners(ctx, user, f.now().Add(-f.cfg.DislikeWindow), 0)
	if err != nil {
		return nil, fmt.Errorf("recently disliked owners: %w", err)
	}
	raters := f.raters(s, user, disliked)

	f.overlayMu.RLock()
	scoredLater := f.observed[user]
	candidates := make([]models.Recommendation, 0, len(s.items))
	for j, item := range s.items {
		if s.raw.At(ui, j) != 0 {
			continue
		}
		if _, ok := scoredLater[item]; ok {
			continue
		}
		if _, ok := f.forgotten[item]; ok {
			continue
		}
		candidates = append(candidates, models.Recommendation{
			ItemID:          item,
			TasteSimilarity: affinity(s.raw, raters, j),
			Source:          models.SourceCollab,
		})
	}
	f.overlayMu.RUnlock()

	sort.Slice(candidates, func(a, b int) bool {
		if candidates[a].TasteSimilarity != candidates[b].TasteSimilarity {
			return candidates[a].TasteSimilarity > candidates[b].TasteSimilarity
		}
		return candidates[a].ItemID < candidates[b].ItemID
	})
	if len(candidates) > f.cfg.TopK {
		candidates = candidates[:f.cfg.TopK]
	}
	return candidates, nil
}

// raters maps users with positive similarity to user onto rows of s.raw.
func (f *Filter) raters(s *snapshot, user models.UserID, excluded []models.UserID) []rater {
	si, ok := s.sim.userIdx[user]
	if !ok || s.sim.cosine == nil {
		return nil
	}
	skip := make(map[models.UserID]struct{}, len(excluded))
	for _, id := range excluded {
		skip[id] = struct{}{}
	}

	simUsers := make([]models.UserID, len(s.sim.userIdx))
	for id, idx := range s.sim.userIdx {
		simUsers[idx] = id
	}

	var out []rater
	for idx, id := range simUsers {
		sim := s.sim.cosine.At(si, idx)
		if sim <= 0 {
			continue
		}
		if _, ok := skip[id]; ok {
			continue
		}
		row, ok := s.userIdx[id]
		if !ok {
			continue
		}
		out = append(out, rater{row: row, weight: f.weighting(sim)})
	}
	return out
}

// coldStart returns one random item from the pool for a user the snapshot
// does not know.
func (f *Filter) coldStart(s *snapshot, user models.UserID) []models.Recommendation {
	f.overlayMu.RLock()
	scoredLater := f.observed[user]
	pool := make([]models.ItemID, 0, len(s.items))
	for _, item := range s.items {
		if _, ok := f.forgotten[item]; ok {
			continue
		}
		if _, ok := scoredLater[item]; ok {
			continue
		}
		pool = append(pool, item)
	}
	f.overlayMu.RUnlock()

	if len(pool) == 0 {
		return []models.Recommendation{}
	}
	f.rngMu.Lock()
	pick := pool[f.rng.Intn(len(pool))]
	f.rngMu.Unlock()
	return []models.Recommendation{{ItemID: pick, Source: models.SourceColdStart}}
}

// Observe records that user scored item after the current snapshot.
func (f *Filter) Observe(user models.UserID, item models.ItemID, _ models.Score) {
	f.overlayMu.Lock()
	defer f.overlayMu.Unlock()
	m, ok := f.observed[user]
	if !ok {
		m = make(map[models.ItemID]uint64)
		f.observed[user] = m
	}
	m[item] = f.gen
}

// Forget removes item from every future result.
func (f *Filter) Forget(item models.ItemID) {
	f.overlayMu.Lock()
	defer f.overlayMu.Unlock()
	f.forgotten[item] = f.gen
}

// currentGen starts a new overlay generation and returns the previous one.
// Entries tagged with it are covered by a rebuild that reads the store after
// this call.
func (f *Filter) currentGen() uint64 {
	f.overlayMu.Lock()
	defer f.overlayMu.Unlock()
	g := f.gen
	f.gen++
	return g
}

func (f *Filter) dropOverlay(upTo uint64) {
	f.overlayMu.Lock()
	defer f.overlayMu.Unlock()
	for user, items := range f.observed {
		for item, g := range items {
			if g <= upTo {
				delete(items, item)
			}
		}
		if len(items) == 0 {
			delete(f.observed, user)
		}
	}
	for item, g := range f.forgotten {
		if g <= upTo {
			delete(f.forgotten, item)
		}
	}
}

// Stats describes the current snapshot. Zero values mean no snapshot yet.
func (f *Filter) Stats() Stats {
	var st Stats
	if s := f.snap.Load(); s != nil {
		st.Users = len(s.users)
		st.Items = len(s.items)
		st.BuiltAt = s.builtAt
		st.SimilarityBuiltAt = s.sim.builtAt
		st.RefreshesSinceSim = s.refreshesSinceSim
	}
	f.overlayMu.RLock()
	for _, items := range f.observed {
		st.PendingObservations += len(items)
	}
	st.ForgottenItems = len(f.forgotten)
	f.overlayMu.RUnlock()
	return st
}

// Evaluate runs the sign-agreement self-check on the current snapshot.
func (f *Filter) Evaluate() Evaluation {
	s := f.snap.Load()
	if s == nil {
		return Evaluation{}
	}
	return evaluate(s, f.weighting)
}
