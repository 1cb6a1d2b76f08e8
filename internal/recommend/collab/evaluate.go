// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package collab

// Evaluation counts sign agreement between predicted and actual scores on
// cells users already scored. A prediction >= 0 counts as positive.
type Evaluation struct {
	Correct       int     `json:"correct"`
	FalsePositive int     `json:"false_positive"`
	FalseNegative int     `json:"false_negative"`
	Total         int     `json:"total"`
	Accuracy      float64 `json:"accuracy"`
}

func evaluate(s *snapshot, weighting Weighting) Evaluation {
	var ev Evaluation
	if s.empty() || s.sim.cosine == nil {
		return ev
	}
	_, ni := s.raw.Dims()

	for ui, user := range s.users {
		si, ok := s.sim.userIdx[user]
		if !ok {
			continue
		}
		var raters []rater
		for other, idx := range s.sim.userIdx {
			if other == user {
				continue
			}
			sim := s.sim.cosine.At(si, idx)
			if sim <= 0 {
				continue
			}
			if row, ok := s.userIdx[other]; ok {
				raters = append(raters, rater{row: row, weight: weighting(sim)})
			}
		}

		for j := 0; j < ni; j++ {
			actual := s.raw.At(ui, j)
			if actual == 0 {
				continue
			}
			predictedPositive := affinity(s.raw, raters, j) >= 0
			switch {
			case predictedPositive == (actual > 0):
				ev.Correct++
			case predictedPositive:
				ev.FalsePositive++
			default:
				ev.FalseNegative++
			}
			ev.Total++
		}
	}
	if ev.Total > 0 {
		ev.Accuracy = float64(ev.Correct) / float64(ev.Total)
	}
	return ev
}
