// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package events

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/tomtom215/artswap/internal/models"
)

// AuditHandlerName is the router handler name of the audit consumer.
const AuditHandlerName = "audit_log"

// EventRecorder persists audit events.
type EventRecorder interface {
	RecordEvent(ctx context.Context, ev models.AuditEvent) error
}

// AuditConsumer writes every event to the store.
type AuditConsumer struct {
	store EventRecorder
	log   zerolog.Logger
}

func NewAuditConsumer(store EventRecorder, log zerolog.Logger) *AuditConsumer {
	return &AuditConsumer{store: store, log: log}
}

// Handle records ev. Store errors are returned so the router retries.
func (a *AuditConsumer) Handle(ctx context.Context, ev models.AuditEvent) error {
	if err := a.store.RecordEvent(ctx, ev); err != nil {
		return fmt.Errorf("record audit event %s: %w", ev.ID, err)
	}
	a.log.Debug().
		Str("event_id", ev.ID).
		Str("event_type", string(ev.Type)).
		Int64("actor_id", int64(ev.ActorID)).
		Int64("item_id", int64(ev.ItemID)).
		Msg("Audit event recorded")
	return nil
}

// Register subscribes the consumer to bus.
func (a *AuditConsumer) Register(bus *Bus) {
	bus.Subscribe(AuditHandlerName, a.Handle)
}
