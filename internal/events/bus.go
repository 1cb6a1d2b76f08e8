// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package events

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/artswap/internal/config"
	"github.com/tomtom215/artswap/internal/logging"
	"github.com/tomtom215/artswap/internal/metrics"
	"github.com/tomtom215/artswap/internal/models"
)

// Topic is the single topic all domain events travel on.
const Topic = "artswap.events"

const (
	metadataType          = "event_type"
	metadataCorrelationID = "correlation_id"
	routerCloseTimeout    = 10 * time.Second
)

// Publisher accepts domain events.
type Publisher interface {
	Publish(ctx context.Context, ev models.AuditEvent) error
}

// Nop discards every event.
type Nop struct{}

func (Nop) Publish(context.Context, models.AuditEvent) error { return nil }

// HandlerFunc consumes one decoded event. A returned error triggers retry.
type HandlerFunc func(ctx context.Context, ev models.AuditEvent) error

// Bus is the in-process event bus.
type Bus struct {
	pubsub  *gochannel.GoChannel
	router  *message.Router
	log     zerolog.Logger
	now     func() time.Time
	running atomic.Bool
}

// NewBus builds the GoChannel and the router with its middleware chain.
func NewBus(cfg config.EventsConfig, log zerolog.Logger) (*Bus, error) {
	wmLogger := watermill.NewSlogLogger(logging.NewSlogLogger("events"))

	pubsub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: cfg.BufferSize,
	}, wmLogger)

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: routerCloseTimeout}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("create watermill router: %w", err)
	}

	// Outer to inner: panics become errors, errors are retried with backoff.
	router.AddMiddleware(middleware.Recoverer)
	retry := middleware.Retry{
		MaxRetries:      cfg.RetryMax,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     10 * cfg.RetryInitialInterval,
		Multiplier:      2.0,
		Logger:          wmLogger,
	}
	router.AddMiddleware(retry.Middleware)

	return &Bus{
		pubsub: pubsub,
		router: router,
		log:    log,
		now:    time.Now,
	}, nil
}

// Publish stamps the event with an id and time when missing and sends it.
func (b *Bus) Publish(ctx context.Context, ev models.AuditEvent) error {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = b.now().UTC()
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		metrics.RecordEventPublished(ev.Type, err)
		return fmt.Errorf("marshal event %s: %w", ev.Type, err)
	}

	msg := message.NewMessage(ev.ID, payload)
	msg.Metadata.Set(metadataType, string(ev.Type))
	if cid := logging.CorrelationIDFromContext(ctx); cid != "" {
		msg.Metadata.Set(metadataCorrelationID, cid)
	}

	err = b.pubsub.Publish(Topic, msg)
	metrics.RecordEventPublished(ev.Type, err)
	if err != nil {
		return fmt.Errorf("publish event %s: %w", ev.Type, err)
	}
	return nil
}

// Subscribe registers a named consumer. It must be called before Run.
func (b *Bus) Subscribe(name string, handler HandlerFunc) {
	b.router.AddConsumerHandler(name, Topic, b.pubsub, func(msg *message.Message) error {
		var ev models.AuditEvent
		if err := json.Unmarshal(msg.Payload, &ev); err != nil {
			// Malformed payloads cannot succeed on retry.
			b.log.Error().Err(err).Str("handler", name).Str("message_uuid", msg.UUID).
				Msg("Dropping undecodable event")
			metrics.RecordEventConsumed(name, err)
			return nil
		}

		ctx := msg.Context()
		if cid := msg.Metadata.Get(metadataCorrelationID); cid != "" {
			ctx = logging.ContextWithCorrelationID(ctx, cid)
		}
		err := handler(ctx, ev)
		metrics.RecordEventConsumed(name, err)
		return err
	})
}

// Run starts the router and blocks until ctx is done or Close is called.
func (b *Bus) Run(ctx context.Context) error {
	b.running.Store(true)
	defer b.running.Store(false)
	return b.router.Run(ctx)
}

// Running closes once every handler is subscribed.
func (b *Bus) Running() <-chan struct{} {
	return b.router.Running()
}

// IsRunning reports whether Run is active.
func (b *Bus) IsRunning() bool {
	return b.running.Load()
}

// Close stops the router, then the pub/sub.
func (b *Bus) Close() error {
	rerr := b.router.Close()
	perr := b.pubsub.Close()
	if rerr != nil {
		return fmt.Errorf("close router: %w", rerr)
	}
	if perr != nil {
		return fmt.Errorf("close pubsub: %w", perr)
	}
	return nil
}
