// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package abuse

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tomtom215/artswap/internal/config"
	"github.com/tomtom215/artswap/internal/logging"
	"github.com/tomtom215/artswap/internal/models"
	"github.com/tomtom215/artswap/internal/store"
)

var now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type recorder struct {
	mu     sync.Mutex
	events []models.AuditEvent
}

func (r *recorder) Publish(_ context.Context, ev models.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func smallConfig() config.AbuseConfig {
	return config.AbuseConfig{
		UploadShortWindow:          10 * time.Minute,
		UploadShortCap:             5,
		UploadDailyCap:             15,
		UploadWeeklyThreshold:      40,
		UploadThrottledDailyCap:    5,
		ReportDailyCap:             3,
		EscalationMonthlyWindow:    30 * 24 * time.Hour,
		EscalationMonthlyThreshold: 4,
		EscalationShortWindow:      24 * time.Hour,
		EscalationShortThreshold:   2,
	}
}

func newGate(t *testing.T) (*Gate, *store.Memory, *recorder) {
	t.Helper()
	st := store.NewMemory()
	t.Cleanup(func() { _ = st.Close() })
	rec := &recorder{}
	g := New(st, smallConfig(), rec, logging.NopLogger()).WithClock(func() time.Time { return now })
	return g, st, rec
}

var seq int

func upload(t *testing.T, st *store.Memory, owner models.UserID, at time.Time) *models.Item {
	t.Helper()
	seq++
	it, err := st.CreateItem(context.Background(), models.NewItem{
		OwnerID:     owner,
		Fingerprint: fmt.Sprintf("fp-%d", seq),
		Ref:         fmt.Sprintf("ref-%d", seq),
		CreatedAt:   at,
	})
	if err != nil {
		t.Fatalf("CreateItem() error = %v", err)
	}
	return it
}

func uploadN(t *testing.T, st *store.Memory, owner models.UserID, n int, first time.Time, step time.Duration) {
	t.Helper()
	for i := 0; i < n; i++ {
		upload(t, st, owner, first.Add(time.Duration(i)*step))
	}
}

func report(t *testing.T, st *store.Memory, user models.UserID, item models.ItemID, at time.Time) {
	t.Helper()
	if _, err := st.CreateReport(context.Background(), models.Report{UserID: user, ItemID: item, CreatedAt: at}); err != nil {
		t.Fatalf("CreateReport() error = %v", err)
	}
}

func assertRateLimit(t *testing.T, err error, window time.Duration, limit int) {
	t.Helper()
	var rl *models.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("error = %v, want *RateLimitError", err)
	}
	if !errors.Is(err, models.ErrRateLimited) {
		t.Error("errors.Is(err, ErrRateLimited) = false")
	}
	if rl.Window != window || rl.Limit != limit {
		t.Errorf("RateLimitError = %+v, want window %s limit %d", rl, window, limit)
	}
	if rl.RetryAfter <= 0 {
		t.Errorf("RetryAfter = %s, want positive", rl.RetryAfter)
	}
}

func TestCanUpload(t *testing.T) {
	const user models.UserID = 1
	ctx := context.Background()

	tests := []struct {
		name   string
		seed   func(t *testing.T, st *store.Memory)
		window time.Duration
		limit  int
	}{
		{
			name: "under every cap",
			seed: func(t *testing.T, st *store.Memory) {
				uploadN(t, st, user, 4, now.Add(-5*time.Minute), time.Second)
			},
		},
		{
			name: "short window cap reached",
			seed: func(t *testing.T, st *store.Memory) {
				uploadN(t, st, user, 5, now.Add(-9*time.Minute), time.Minute)
			},
			window: 10 * time.Minute,
			limit:  5,
		},
		{
			name: "short window slides",
			seed: func(t *testing.T, st *store.Memory) {
				uploadN(t, st, user, 5, now.Add(-15*time.Minute), time.Minute)
			},
		},
		{
			name: "daily cap reached",
			seed: func(t *testing.T, st *store.Memory) {
				uploadN(t, st, user, 15, now.Add(-20*time.Hour), time.Hour)
			},
			window: 24 * time.Hour,
			limit:  15,
		},
		{
			name: "weekly volume at threshold keeps full daily cap",
			seed: func(t *testing.T, st *store.Memory) {
				uploadN(t, st, user, 35, now.Add(-6*24*time.Hour), time.Hour)
				uploadN(t, st, user, 5, now.Add(-10*time.Hour), time.Hour)
			},
		},
		{
			name: "weekly volume over threshold throttles daily cap",
			seed: func(t *testing.T, st *store.Memory) {
				uploadN(t, st, user, 36, now.Add(-6*24*time.Hour), time.Hour)
				uploadN(t, st, user, 5, now.Add(-10*time.Hour), time.Hour)
			},
			window: 24 * time.Hour,
			limit:  5,
		},
		{
			name: "other users do not count",
			seed: func(t *testing.T, st *store.Memory) {
				uploadN(t, st, 2, 10, now.Add(-5*time.Minute), time.Second)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, st, _ := newGate(t)
			tt.seed(t, st)

			err := g.CanUpload(ctx, user)
			if tt.limit == 0 {
				if err != nil {
					t.Fatalf("CanUpload() error = %v, want nil", err)
				}
				return
			}
			assertRateLimit(t, err, tt.window, tt.limit)
		})
	}
}

func TestCanReport(t *testing.T) {
	ctx := context.Background()
	g, st, _ := newGate(t)
	const reporter models.UserID = 9

	items := make([]*models.Item, 4)
	for i := range items {
		items[i] = upload(t, st, 2, now.Add(-48*time.Hour))
	}

	report(t, st, reporter, items[0].ID, now.Add(-25*time.Hour))
	report(t, st, reporter, items[1].ID, now.Add(-time.Hour))
	report(t, st, reporter, items[2].ID, now.Add(-time.Minute))
	if err := g.CanReport(ctx, reporter); err != nil {
		t.Fatalf("CanReport() with 2 in window error = %v", err)
	}

	report(t, st, reporter, items[3].ID, now.Add(-time.Second))
	assertRateLimit(t, g.CanReport(ctx, reporter), 24*time.Hour, 3)
}

func TestIsUploadBlockedShortEscalation(t *testing.T) {
	ctx := context.Background()
	g, st, rec := newGate(t)
	const reporter models.UserID = 9

	var reported []*models.Item
	for owner := models.UserID(100); owner < 103; owner++ {
		it := upload(t, st, owner, now.Add(-2*time.Hour))
		report(t, st, reporter, it.ID, now.Add(-time.Hour))
		reported = append(reported, it)
	}
	// Own items and repeat owners do not add distinct owners.
	own := upload(t, st, reporter, now.Add(-2*time.Hour))
	report(t, st, reporter, own.ID, now.Add(-time.Hour))

	blocked, err := g.IsUploadBlocked(ctx, reporter)
	if err != nil {
		t.Fatal(err)
	}
	if !blocked {
		t.Fatal("3 distinct owners in 24h with threshold 2: want blocked")
	}
	u, err := st.GetUser(ctx, reporter)
	if err != nil {
		t.Fatal(err)
	}
	if u.ModerationState != models.ModerationUploadBlocked {
		t.Errorf("state = %s, want upload_blocked", u.ModerationState)
	}
	if rec.count() != 1 || rec.events[0].Type != models.EventUserUploadBlocked || rec.events[0].ActorID != reporter {
		t.Errorf("events = %+v", rec.events)
	}

	// Still blocked: no second transition event.
	if blocked, _ := g.IsUploadBlocked(ctx, reporter); !blocked {
		t.Error("second check not blocked")
	}
	if rec.count() != 1 {
		t.Errorf("events = %d, want 1", rec.count())
	}

	// Blocking a reported item removes its owner from the count.
	if _, err := st.BlockItem(ctx, reported[0].ID, 1, now); err != nil {
		t.Fatal(err)
	}
	blocked, err = g.IsUploadBlocked(ctx, reporter)
	if err != nil {
		t.Fatal(err)
	}
	if blocked {
		t.Error("2 remaining owners with threshold 2: want not blocked")
	}
	if u, _ := st.GetUser(ctx, reporter); u.ModerationState != models.ModerationNormal {
		t.Errorf("state = %s, want normal", u.ModerationState)
	}
}

func TestIsUploadBlockedMonthlyEscalation(t *testing.T) {
	ctx := context.Background()
	g, st, _ := newGate(t)
	const reporter models.UserID = 9

	for owner := models.UserID(100); owner < 105; owner++ {
		it := upload(t, st, owner, now.Add(-20*24*time.Hour))
		report(t, st, reporter, it.ID, now.Add(-10*24*time.Hour))
	}
	// Outside the monthly window.
	old := upload(t, st, 200, now.Add(-60*24*time.Hour))
	report(t, st, reporter, old.ID, now.Add(-40*24*time.Hour))

	blocked, err := g.IsUploadBlocked(ctx, reporter)
	if err != nil {
		t.Fatal(err)
	}
	if !blocked {
		t.Error("5 owners in 30d with threshold 4: want blocked")
	}
}

func TestIsUploadBlockedUnknownUser(t *testing.T) {
	g, _, rec := newGate(t)
	blocked, err := g.IsUploadBlocked(context.Background(), 404)
	if err != nil {
		t.Fatalf("IsUploadBlocked() error = %v", err)
	}
	if blocked || rec.count() != 0 {
		t.Errorf("blocked = %v, events = %d", blocked, rec.count())
	}
}

func TestNoteDoesNotChangeDecisions(t *testing.T) {
	g, _, _ := newGate(t)
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		g.NoteUpload(ctx, 1)
		g.NoteReport(ctx, 1)
	}
	if err := g.CanUpload(ctx, 1); err != nil {
		t.Errorf("CanUpload() after notes = %v", err)
	}
	if err := g.CanReport(ctx, 1); err != nil {
		t.Errorf("CanReport() after notes = %v", err)
	}
}
