// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Refresher is the collaborative filter refresh entry point.
type Refresher interface {
	Refresh(ctx context.Context, force bool) error
}

// RefreshService builds the collaborative filter on startup and then refreshes
// it on a fixed interval. The refresh itself decides whether anything is stale.
type RefreshService struct {
	filter   Refresher
	interval time.Duration
	timeout  time.Duration
	log      zerolog.Logger
}

// NewRefreshService creates the refresh loop.
//
//nolint:gocritic // zerolog.Logger is passed by value
func NewRefreshService(filter Refresher, interval time.Duration, log zerolog.Logger) *RefreshService {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &RefreshService{
		filter:   filter,
		interval: interval,
		timeout:  10 * time.Minute,
		log:      log.With().Str("service", "collab-refresh").Logger(),
	}
}

// Serve implements suture.Service. Refresh errors are logged and the loop
// continues with the previous snapshot.
func (s *RefreshService) Serve(ctx context.Context) error {
	s.refresh(ctx, true)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.refresh(ctx, false)
		}
	}
}

func (s *RefreshService) refresh(ctx context.Context, force bool) {
	rctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.filter.Refresh(rctx, force); err != nil && ctx.Err() == nil {
		s.log.Warn().Err(err).Bool("force", force).Msg("Collaborative filter refresh failed")
	}
}

func (s *RefreshService) String() string { return "collab-refresh" }
