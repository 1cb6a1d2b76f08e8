// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package services

import (
	"context"
	"fmt"
)

// Router is a message router that runs until its context ends.
type Router interface {
	Run(ctx context.Context) error
}

// EventRouterService supervises the event bus router.
type EventRouterService struct {
	router Router
}

// NewEventRouterService wraps router.
func NewEventRouterService(router Router) *EventRouterService {
	return &EventRouterService{router: router}
}

// Serve implements suture.Service.
func (s *EventRouterService) Serve(ctx context.Context) error {
	if err := s.router.Run(ctx); err != nil {
		return fmt.Errorf("event router stopped: %w", err)
	}
	return ctx.Err()
}

func (s *EventRouterService) String() string { return "event-router" }
