// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package core

import (
	"sync"

	"github.com/tomtom215/artswap/internal/models"
)

// stripedLocks maps users onto a fixed set of mutexes. Two users may share a
// stripe; one user always maps to the same stripe.
type stripedLocks struct {
	stripes []sync.Mutex
}

func newStripedLocks(n int) *stripedLocks {
	if n < 1 {
		n = 1
	}
	return &stripedLocks{stripes: make([]sync.Mutex, n)}
}

func (l *stripedLocks) lock(user models.UserID) func() {
	idx := uint64(user) % uint64(len(l.stripes))
	mu := &l.stripes[idx]
	mu.Lock()
	return mu.Unlock
}
