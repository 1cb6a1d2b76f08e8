// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package events

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/artswap/internal/config"
	"github.com/tomtom215/artswap/internal/logging"
	"github.com/tomtom215/artswap/internal/models"
	"github.com/tomtom215/artswap/internal/store"
)

func testConfig() config.EventsConfig {
	return config.EventsConfig{
		BufferSize:           16,
		RetryMax:             3,
		RetryInitialInterval: time.Millisecond,
		AuditEnabled:         true,
	}
}

// startBus registers handlers via setup, runs the router and waits until it
// is subscribed.
func startBus(t *testing.T, setup func(*Bus)) *Bus {
	t.Helper()
	bus, err := NewBus(testConfig(), logging.NopLogger())
	if err != nil {
		t.Fatalf("NewBus() error = %v", err)
	}
	setup(bus)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := bus.Run(ctx); err != nil {
			t.Errorf("Run() error = %v", err)
		}
	}()
	t.Cleanup(func() {
		cancel()
		_ = bus.Close()
		<-done
	})

	select {
	case <-bus.Running():
	case <-time.After(5 * time.Second):
		t.Fatal("router did not start")
	}
	return bus
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestAuditConsumerRecordsEvents(t *testing.T) {
	st := store.NewMemory()
	t.Cleanup(func() { _ = st.Close() })
	bus := startBus(t, func(b *Bus) {
		NewAuditConsumer(st, logging.NopLogger()).Register(b)
	})

	err := bus.Publish(context.Background(), models.AuditEvent{
		Type:    models.EventItemReported,
		ActorID: 7,
		ItemID:  3,
		Score:   models.ScoreReport,
		Details: map[string]string{"ref": "file-3"},
	})
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	var got []models.AuditEvent
	waitFor(t, func() bool {
		got, _ = st.ListEvents(context.Background(), 10)
		return len(got) == 1
	})

	ev := got[0]
	if ev.ID == "" {
		t.Error("event id not assigned")
	}
	if ev.OccurredAt.IsZero() {
		t.Error("event time not assigned")
	}
	if ev.Type != models.EventItemReported || ev.ActorID != 7 || ev.ItemID != 3 || ev.Score != models.ScoreReport {
		t.Errorf("event = %+v", ev)
	}
	if ev.Details["ref"] != "file-3" {
		t.Errorf("details = %v", ev.Details)
	}
}

func TestBusRetriesFailingHandler(t *testing.T) {
	var calls atomic.Int32
	bus := startBus(t, func(b *Bus) {
		b.Subscribe("flaky", func(context.Context, models.AuditEvent) error {
			if calls.Add(1) < 3 {
				return errors.New("transient")
			}
			return nil
		})
	})

	if err := bus.Publish(context.Background(), models.AuditEvent{Type: models.EventItemUploaded}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return calls.Load() >= 3 })

	time.Sleep(20 * time.Millisecond)
	if got := calls.Load(); got != 3 {
		t.Errorf("handler called %d times, want 3", got)
	}
}

func TestBusRecoversFromPanic(t *testing.T) {
	var calls atomic.Int32
	bus := startBus(t, func(b *Bus) {
		b.Subscribe("panicky", func(context.Context, models.AuditEvent) error {
			if calls.Add(1) == 1 {
				panic("first delivery")
			}
			return nil
		})
	})

	if err := bus.Publish(context.Background(), models.AuditEvent{Type: models.EventItemBlocked}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool { return calls.Load() >= 2 })
}

func TestBusPropagatesCorrelationID(t *testing.T) {
	var (
		mu  sync.Mutex
		got string
	)
	bus := startBus(t, func(b *Bus) {
		b.Subscribe("correlation", func(ctx context.Context, _ models.AuditEvent) error {
			mu.Lock()
			got = logging.CorrelationIDFromContext(ctx)
			mu.Unlock()
			return nil
		})
	})

	ctx := logging.ContextWithCorrelationID(context.Background(), "abc12345")
	if err := bus.Publish(ctx, models.AuditEvent{Type: models.EventInteractionScored}); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return got == "abc12345"
	})
}

func TestBusFanOut(t *testing.T) {
	var a, b atomic.Int32
	bus := startBus(t, func(bus *Bus) {
		bus.Subscribe("a", func(context.Context, models.AuditEvent) error { a.Add(1); return nil })
		bus.Subscribe("b", func(context.Context, models.AuditEvent) error { b.Add(1); return nil })
	})

	for i := 0; i < 5; i++ {
		if err := bus.Publish(context.Background(), models.AuditEvent{Type: models.EventItemDeleted}); err != nil {
			t.Fatal(err)
		}
	}
	waitFor(t, func() bool { return a.Load() == 5 && b.Load() == 5 })
	if !bus.IsRunning() {
		t.Error("IsRunning() = false while running")
	}
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	if err := p.Publish(context.Background(), models.AuditEvent{}); err != nil {
		t.Errorf("Nop.Publish() error = %v", err)
	}
}
