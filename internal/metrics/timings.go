// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package metrics

import (
	"sort"
	"sync"
	"time"
)

// TimingSummary describes the recent durations of one operation.
type TimingSummary struct {
	Operation string          `json:"operation"`
	Count     int             `json:"count"`
	Median    time.Duration   `json:"median_ns"`
	Worst     []time.Duration `json:"worst_ns"`
}

// Timings keeps the last `window` durations of each operation in a ring.
type Timings struct {
	mu     sync.Mutex
	window int
	worst  int
	rings  map[string]*ring
}

type ring struct {
	buf  []time.Duration
	next int
	full bool
}

// NewTimings creates a window of the given size reporting the worst n.
func NewTimings(window, worst int) *Timings {
	if window < 1 {
		window = 1
	}
	if worst < 1 {
		worst = 1
	}
	return &Timings{window: window, worst: worst, rings: make(map[string]*ring)}
}

// Observe appends d to the operation's window and feeds the histogram.
func (t *Timings) Observe(operation string, d time.Duration, err error) {
	RecordOperation(operation, d, err)

	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.rings[operation]
	if !ok {
		r = &ring{buf: make([]time.Duration, t.window)}
		t.rings[operation] = r
	}
	r.buf[r.next] = d
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

// Since is shorthand for Observe(operation, time.Since(start), err).
func (t *Timings) Since(operation string, start time.Time, err error) {
	t.Observe(operation, time.Since(start), err)
}

// Summaries returns one summary per operation, sorted by name.
func (t *Timings) Summaries() []TimingSummary {
	t.mu.Lock()
	samples := make(map[string][]time.Duration, len(t.rings))
	for op, r := range t.rings {
		n := r.next
		if r.full {
			n = len(r.buf)
		}
		s := make([]time.Duration, n)
		copy(s, r.buf[:n])
		samples[op] = s
	}
	t.mu.Unlock()

	out := make([]TimingSummary, 0, len(samples))
	for op, s := range samples {
		sort.Slice(s, func(i, j int) bool { return s[i] > s[j] })
		w := t.worst
		if w > len(s) {
			w = len(s)
		}
		worst := make([]time.Duration, w)
		copy(worst, s[:w])
		// upper median over ascending order
		out = append(out, TimingSummary{
			Operation: op,
			Count:     len(s),
			Median:    s[(len(s)-1)/2],
			Worst:     worst,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Operation < out[j].Operation })
	return out
}
