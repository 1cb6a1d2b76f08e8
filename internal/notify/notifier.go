// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/artswap/internal/config"
	"github.com/tomtom215/artswap/internal/metrics"
	"github.com/tomtom215/artswap/internal/models"
)

// Notification is one push of a recommendation to an idle user.
type Notification struct {
	// ID is a uuid; the webhook notifier sends it as the idempotency key.
	ID             string                `json:"id"`
	UserID         models.UserID         `json:"user_id"`
	Recommendation models.Recommendation `json:"recommendation"`
	CreatedAt      time.Time             `json:"created_at"`
}

// Notifier delivers notifications to the bot transport.
type Notifier interface {
	Name() string
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log. Useful when the bot polls the
// API instead of receiving pushes.
type LogNotifier struct {
	log zerolog.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

// Name implements Notifier.
func (*LogNotifier) Name() string { return "log" }

// Notify implements Notifier.
func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.log.Info().
		Str("notification_id", n.ID).
		Str("user_id", n.UserID.String()).
		Int64("item_id", int64(n.Recommendation.ItemID)).
		Str("ref", n.Recommendation.Ref).
		Str("source", string(n.Recommendation.Source)).
		Msg("Notification ready")
	return nil
}

// ErrWebhookStatus is returned for non-2xx webhook responses.
var ErrWebhookStatus = errors.New("webhook returned non-success status")

const webhookBreakerName = "notify-webhook"

// WebhookNotifier POSTs notifications as JSON behind a circuit breaker.
type WebhookNotifier struct {
	url    string
	client *http.Client
	cb     *gobreaker.CircuitBreaker[struct{}]
	log    zerolog.Logger
}

// NewWebhookNotifier creates a webhook notifier for cfg.WebhookURL.
//
// The breaker opens after 5 consecutive failures and probes again after a
// minute with a single request.
func NewWebhookNotifier(cfg config.NotifyConfig, log zerolog.Logger) *WebhookNotifier {
	metrics.CircuitBreakerState.WithLabelValues(webhookBreakerName).Set(0)

	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        webhookBreakerName,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Circuit breaker state transition")
			metrics.RecordCircuitBreakerTransition(name, from.String(), to.String(), stateToFloat(to))
		},
	})

	return &WebhookNotifier{
		url:    cfg.WebhookURL,
		client: &http.Client{Timeout: cfg.WebhookTimeout},
		cb:     cb,
		log:    log,
	}
}

func stateToFloat(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Name implements Notifier.
func (*WebhookNotifier) Name() string { return "webhook" }

// Notify implements Notifier.
func (w *WebhookNotifier) Notify(ctx context.Context, n Notification) error {
	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	_, err = w.cb.Execute(func() (struct{}, error) {
		return struct{}{}, w.post(ctx, n.ID, body)
	})
	return err
}

func (w *WebhookNotifier) post(ctx context.Context, id string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", id)

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %d", ErrWebhookStatus, resp.StatusCode)
	}
	return nil
}

// NewNotifier returns the notifier selected by cfg.Notifier.
func NewNotifier(cfg config.NotifyConfig, log zerolog.Logger) (Notifier, error) {
	switch cfg.Notifier {
	case "log", "":
		return NewLogNotifier(log), nil
	case "webhook":
		if cfg.WebhookURL == "" {
			return nil, fmt.Errorf("webhook notifier requires a URL")
		}
		return NewWebhookNotifier(cfg, log), nil
	default:
		return nil, fmt.Errorf("unknown notifier %q", cfg.Notifier)
	}
}
