// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package collab

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/tomtom215/artswap/internal/models"
)

var errNonFinite = errors.New("non-finite value in matrix")

// snapshot is immutable once published.
type snapshot struct {
	users   []models.UserID
	items   []models.ItemID
	userIdx map[models.UserID]int
	itemIdx map[models.ItemID]int

	// raw holds scores with missing cells as 0. centered holds observed
	// scores minus the row mean, missing cells 0. Both are nil when there
	// are no interactions.
	raw      *mat.Dense
	centered *mat.Dense

	sim *similarity

	itemCount         int
	builtAt           time.Time
	refreshesSinceSim int
}

// similarity has its own user index because it may be older than the data.
type similarity struct {
	userIdx map[models.UserID]int
	cosine  *mat.SymDense
	builtAt time.Time
}

func (s *snapshot) empty() bool {
	return s.raw == nil
}

// buildMatrices pivots interactions into the raw and centered matrices.
func buildMatrices(interactions []models.Interaction) *snapshot {
	s := &snapshot{
		userIdx: make(map[models.UserID]int),
		itemIdx: make(map[models.ItemID]int),
	}
	for _, in := range interactions {
		if _, ok := s.userIdx[in.UserID]; !ok {
			s.userIdx[in.UserID] = 0
			s.users = append(s.users, in.UserID)
		}
		if _, ok := s.itemIdx[in.ItemID]; !ok {
			s.itemIdx[in.ItemID] = 0
			s.items = append(s.items, in.ItemID)
		}
	}
	sort.Slice(s.users, func(i, j int) bool { return s.users[i] < s.users[j] })
	sort.Slice(s.items, func(i, j int) bool { return s.items[i] < s.items[j] })
	for i, u := range s.users {
		s.userIdx[u] = i
	}
	for j, it := range s.items {
		s.itemIdx[it] = j
	}
	if len(s.users) == 0 {
		return s
	}

	nu, ni := len(s.users), len(s.items)
	raw := mat.NewDense(nu, ni, nil)
	observed := make([]bool, nu*ni)
	for _, in := range interactions {
		i, j := s.userIdx[in.UserID], s.itemIdx[in.ItemID]
		raw.Set(i, j, float64(in.Score))
		observed[i*ni+j] = true
	}

	centered := mat.NewDense(nu, ni, nil)
	for i := 0; i < nu; i++ {
		var sum float64
		var n int
		for j := 0; j < ni; j++ {
			if observed[i*ni+j] {
				sum += raw.At(i, j)
				n++
			}
		}
		if n == 0 {
			continue
		}
		mean := sum / float64(n)
		for j := 0; j < ni; j++ {
			if observed[i*ni+j] {
				centered.Set(i, j, raw.At(i, j)-mean)
			}
		}
	}

	s.raw = raw
	s.centered = centered
	return s
}

// computeSimilarity returns the cosine similarity between the centered rows
// of s. Rows with zero norm have similarity 0 with everyone, themselves
// included.
func computeSimilarity(s *snapshot, now time.Time) (sim *similarity, err error) {
	idx := make(map[models.UserID]int, len(s.users))
	for i, u := range s.users {
		idx[u] = i
	}
	if s.empty() {
		return &similarity{userIdx: idx, builtAt: now}, nil
	}

	// gonum reports dimension errors by panicking.
	defer func() {
		if r := recover(); r != nil {
			sim, err = nil, fmt.Errorf("similarity: %v", r)
		}
	}()

	nu, _ := s.centered.Dims()
	gram := mat.NewSymDense(nu, nil)
	gram.SymOuterK(1, s.centered)

	invNorm := make([]float64, nu)
	for i := 0; i < nu; i++ {
		if sq := gram.At(i, i); sq > 0 {
			invNorm[i] = 1 / math.Sqrt(sq)
		}
	}

	cosine := mat.NewSymDense(nu, nil)
	for i := 0; i < nu; i++ {
		for j := i; j < nu; j++ {
			v := gram.At(i, j) * invNorm[i] * invNorm[j]
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, fmt.Errorf("cosine(%d,%d): %w", s.users[i], s.users[j], errNonFinite)
			}
			cosine.SetSym(i, j, v)
		}
	}
	return &similarity{userIdx: idx, cosine: cosine, builtAt: now}, nil
}

// Weighting maps a positive similarity to a rater weight.
type Weighting func(sim float64) float64

// LinearWeighting uses the similarity as the weight.
func LinearWeighting(sim float64) float64 {
	return sim
}

// TieredWeighting damps weaker raters: sim >= 0.5 counts fully, 0.2 to 0.5
// at half, below 0.2 at a fifth.
func TieredWeighting(sim float64) float64 {
	switch {
	case sim >= 0.5:
		return sim
	case sim >= 0.2:
		return 0.5 * sim
	default:
		return 0.2 * sim
	}
}

// WeightingByName resolves the collab.weighting setting.
func WeightingByName(name string) (Weighting, error) {
	switch name {
	case "", "linear":
		return LinearWeighting, nil
	case "tiered":
		return TieredWeighting, nil
	default:
		return nil, fmt.Errorf("unknown weighting %q", name)
	}
}

// rater is a user contributing to a prediction, by row in the raw matrix.
type rater struct {
	row    int
	weight float64
}

// affinity is sum(weight * raw) / sqrt(contributors + 1) for column j.
func affinity(raw *mat.Dense, raters []rater, j int) float64 {
	var sum float64
	var n int
	for _, r := range raters {
		v := raw.At(r.row, j)
		if v == 0 {
			continue
		}
		sum += r.weight * v
		n++
	}
	return sum / math.Sqrt(float64(n+1))
}
