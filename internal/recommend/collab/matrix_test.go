// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package collab

import (
	"math"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/tomtom215/artswap/internal/models"
)

const eps = 1e-9

func interactions(rows map[models.UserID]map[models.ItemID]models.Score) []models.Interaction {
	var out []models.Interaction
	for u, items := range rows {
		for i, s := range items {
			out = append(out, models.Interaction{UserID: u, ItemID: i, Score: s})
		}
	}
	return out
}

func cosineOf(t *testing.T, s *snapshot, a, b models.UserID) float64 {
	t.Helper()
	sim, err := computeSimilarity(s, time.Time{})
	if err != nil {
		t.Fatalf("computeSimilarity() error = %v", err)
	}
	return sim.cosine.At(sim.userIdx[a], sim.userIdx[b])
}

func TestBuildMatricesCentersObservedCells(t *testing.T) {
	s := buildMatrices(interactions(map[models.UserID]map[models.ItemID]models.Score{
		1: {10: 2, 20: -1},
		2: {30: 1},
	}))

	if len(s.users) != 2 || len(s.items) != 3 {
		t.Fatalf("dims = %d users x %d items, want 2 x 3", len(s.users), len(s.items))
	}
	u1 := s.userIdx[1]
	j10, j20, j30 := s.itemIdx[10], s.itemIdx[20], s.itemIdx[30]

	if got := s.raw.At(u1, j10); got != 2 {
		t.Errorf("raw(1,10) = %v, want 2", got)
	}
	if got := s.raw.At(u1, j30); got != 0 {
		t.Errorf("raw(1,30) = %v, want 0 for missing", got)
	}
	if got := s.centered.At(u1, j10); math.Abs(got-1.5) > eps {
		t.Errorf("centered(1,10) = %v, want 1.5", got)
	}
	if got := s.centered.At(u1, j20); math.Abs(got+1.5) > eps {
		t.Errorf("centered(1,20) = %v, want -1.5", got)
	}
	if got := s.centered.At(u1, j30); got != 0 {
		t.Errorf("centered(1,30) = %v, want 0 for missing", got)
	}
	if got := s.centered.At(s.userIdx[2], j30); got != 0 {
		t.Errorf("single-cell row centered = %v, want 0", got)
	}
}

func TestBuildMatricesEmpty(t *testing.T) {
	s := buildMatrices(nil)
	if !s.empty() {
		t.Fatal("empty input should give empty snapshot")
	}
	sim, err := computeSimilarity(s, time.Time{})
	if err != nil || sim.cosine != nil {
		t.Errorf("computeSimilarity(empty) = %v, %v", sim, err)
	}
}

func TestSimilarityOrdersAgreementAboveDisagreement(t *testing.T) {
	// A and C agree on every item, A and B disagree on every item.
	s := buildMatrices(interactions(map[models.UserID]map[models.ItemID]models.Score{
		1: {1: 1, 2: 1, 3: -1},
		2: {1: -1, 2: -1, 3: 1},
		3: {1: 1, 2: 1, 3: -1},
	}))

	ab := cosineOf(t, s, 1, 2)
	ac := cosineOf(t, s, 1, 3)
	if !(ab < ac) {
		t.Fatalf("sim(A,B) = %v, sim(A,C) = %v; want sim(A,B) < sim(A,C)", ab, ac)
	}
	if math.Abs(ac-1) > eps || math.Abs(ab+1) > eps {
		t.Errorf("sim(A,C) = %v want 1, sim(A,B) = %v want -1", ac, ab)
	}
	if got := cosineOf(t, s, 2, 2); math.Abs(got-1) > eps {
		t.Errorf("self similarity = %v, want 1", got)
	}
}

func TestSimilaritySharedLikesThenSplit(t *testing.T) {
	// Everyone likes items 1-3. A and C then agree on 4 and 5, B opposes.
	s := buildMatrices(interactions(map[models.UserID]map[models.ItemID]models.Score{
		1: {1: 1, 2: 1, 3: 1, 4: 1, 5: -1},
		2: {1: 1, 2: 1, 3: 1, 4: -1, 5: 1},
		3: {1: 1, 2: 1, 3: 1, 4: 1, 5: -1},
	}))

	ab := cosineOf(t, s, 1, 2)
	ac := cosineOf(t, s, 1, 3)
	if !(ab < ac) {
		t.Fatalf("sim(A,B) = %v, sim(A,C) = %v; want sim(A,B) < sim(A,C)", ab, ac)
	}
	// Centered rows are (0.4, 0.4, 0.4, 0.4, -1.6) and (0.4, 0.4, 0.4, -1.6, 0.4).
	if math.Abs(ac-1) > eps || math.Abs(ab+0.25) > eps {
		t.Errorf("sim(A,C) = %v want 1, sim(A,B) = %v want -0.25", ac, ab)
	}
}

func TestSimilarityZeroNormRow(t *testing.T) {
	// User 2 scored everything identically: centered row is all zero.
	s := buildMatrices(interactions(map[models.UserID]map[models.ItemID]models.Score{
		1: {1: 1, 2: -1},
		2: {1: 2, 2: 2},
	}))
	sim, err := computeSimilarity(s, time.Time{})
	if err != nil {
		t.Fatalf("computeSimilarity() error = %v", err)
	}
	for _, pair := range [][2]models.UserID{{1, 2}, {2, 1}, {2, 2}} {
		v := sim.cosine.At(sim.userIdx[pair[0]], sim.userIdx[pair[1]])
		if v != 0 || math.IsNaN(v) {
			t.Errorf("sim%v = %v, want 0", pair, v)
		}
	}
}

func TestSimilarityDeterministic(t *testing.T) {
	data := interactions(map[models.UserID]map[models.ItemID]models.Score{
		1: {1: 1, 2: -1, 4: 2},
		2: {1: -2, 3: 1},
		3: {2: 1, 3: 1, 4: -1},
		4: {1: 1, 4: 1},
	})
	a, err := computeSimilarity(buildMatrices(data), time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	// Reverse the input order; the result must not change.
	rev := make([]models.Interaction, len(data))
	for i := range data {
		rev[len(data)-1-i] = data[i]
	}
	b, err := computeSimilarity(buildMatrices(rev), time.Time{})
	if err != nil {
		t.Fatal(err)
	}
	if !mat.Equal(a.cosine, b.cosine) {
		t.Error("two builds on identical data gave different similarity matrices")
	}
}

func TestWeighting(t *testing.T) {
	tests := []struct {
		name string
		w    Weighting
		sim  float64
		want float64
	}{
		{"linear", LinearWeighting, 0.3, 0.3},
		{"tiered high", TieredWeighting, 0.8, 0.8},
		{"tiered boundary high", TieredWeighting, 0.5, 0.5},
		{"tiered mid", TieredWeighting, 0.4, 0.2},
		{"tiered boundary mid", TieredWeighting, 0.2, 0.1},
		{"tiered low", TieredWeighting, 0.1, 0.02},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.w(tt.sim); math.Abs(got-tt.want) > eps {
				t.Errorf("weight(%v) = %v, want %v", tt.sim, got, tt.want)
			}
		})
	}

	if _, err := WeightingByName("cubic"); err == nil {
		t.Error("WeightingByName(cubic) should fail")
	}
}

func TestAffinityNormalization(t *testing.T) {
	raw := mat.NewDense(3, 1, []float64{1, 2, 0})
	raters := []rater{{row: 0, weight: 1}, {row: 1, weight: 0.5}, {row: 2, weight: 0.9}}

	// Two contributors; the zero cell does not count.
	want := (1*1 + 0.5*2) / math.Sqrt(3)
	if got := affinity(raw, raters, 0); math.Abs(got-want) > eps {
		t.Errorf("affinity = %v, want %v", got, want)
	}
	if got := affinity(raw, nil, 0); got != 0 {
		t.Errorf("affinity with no raters = %v, want 0", got)
	}
}
