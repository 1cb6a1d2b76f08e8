// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tomtom215/artswap/internal/abuse"
	"github.com/tomtom215/artswap/internal/authz"
	"github.com/tomtom215/artswap/internal/config"
	"github.com/tomtom215/artswap/internal/logging"
	"github.com/tomtom215/artswap/internal/models"
	"github.com/tomtom215/artswap/internal/moderation"
	"github.com/tomtom215/artswap/internal/recommend/candidates"
	"github.com/tomtom215/artswap/internal/recommend/collab"
	"github.com/tomtom215/artswap/internal/recommend/queue"
	"github.com/tomtom215/artswap/internal/store"
)

var now = time.Date(2026, 7, 4, 15, 0, 0, 0, time.UTC)

const moderatorID models.UserID = 900

type fixture struct {
	core   *Core
	store  *store.Memory
	filter *collab.Filter
	queue  *queue.Cache
}

func newFixture(t *testing.T, mutate func(*config.Config)) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.Candidates.Seed = 7
	cfg.Collab.Seed = 7
	if mutate != nil {
		mutate(&cfg)
	}

	st := store.NewMemory()
	t.Cleanup(func() { _ = st.Close() })
	log := logging.NopLogger()
	clock := func() time.Time { return now }

	enforcer, err := authz.NewEnforcer(authz.Config{Moderators: []string{moderatorID.String()}})
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}
	filter, err := collab.New(st, cfg.Collab, log)
	if err != nil {
		t.Fatalf("collab.New() error = %v", err)
	}
	filter.WithClock(clock)
	gen := candidates.New(st, cfg.Candidates, log).WithClock(clock)
	cache := queue.New(filter, gen, cfg.Queue.BatchSize, log)
	gate := abuse.New(st, cfg.Abuse, nil, log).WithClock(clock)
	wf := moderation.New(st, gate, filter, cache, enforcer, nil, log).WithClock(clock)

	c := New(Deps{
		Store:      st,
		Gate:       gate,
		Filter:     filter,
		Queue:      cache,
		Moderation: wf,
		Authorizer: enforcer,
	}, cfg.Core, log).WithClock(clock)

	return &fixture{core: c, store: st, filter: filter, queue: cache}
}

func (f *fixture) upload(t *testing.T, user models.UserID, key string) *models.Item {
	t.Helper()
	it, err := f.core.Upload(context.Background(), user, "fp-"+key, "ref-"+key)
	if err != nil {
		t.Fatalf("Upload(%s) error = %v", key, err)
	}
	return it
}

func TestUploadRateLimitCreatesNoItem(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		f.upload(t, 1, fmt.Sprintf("u%d", i))
	}
	_, err := f.core.Upload(ctx, 1, "fp-51", "ref-51")
	var rl *models.RateLimitError
	if !errors.As(err, &rl) {
		t.Fatalf("51st Upload() error = %v, want *RateLimitError", err)
	}
	if rl.Limit != 50 || rl.Window != 10*time.Minute {
		t.Errorf("RateLimitError = %+v", rl)
	}
	if _, err := f.store.GetItemByRef(ctx, "ref-51"); !errors.Is(err, models.ErrItemNotFound) {
		t.Errorf("GetItemByRef(ref-51) error = %v, want ErrItemNotFound", err)
	}
	if n, _ := f.store.CountItems(ctx); n != 50 {
		t.Errorf("CountItems() = %d, want 50", n)
	}
}

func TestConcurrentUploadsRespectCap(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Abuse.UploadShortCap = 5 })

	var (
		wg sync.WaitGroup
		ok atomic.Int32
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := f.core.Upload(context.Background(), 3, fmt.Sprintf("fp-%d", i), fmt.Sprintf("ref-%d", i)); err == nil {
				ok.Add(1)
			}
		}(i)
	}
	wg.Wait()
	if ok.Load() != 5 {
		t.Errorf("%d uploads succeeded, want 5", ok.Load())
	}
}

func TestUploadDeleteLoopStillLimited(t *testing.T) {
	f := newFixture(t, func(c *config.Config) { c.Abuse.UploadShortCap = 5 })
	ctx := context.Background()

	accepted := 0
	for i := 0; i < 30; i++ {
		it, err := f.core.Upload(ctx, 4, fmt.Sprintf("fp-loop-%d", i), fmt.Sprintf("ref-loop-%d", i))
		if err != nil {
			var rl *models.RateLimitError
			if !errors.As(err, &rl) {
				t.Fatalf("Upload #%d error = %v, want *RateLimitError", i, err)
			}
			continue
		}
		accepted++
		if err := f.core.DeleteItem(ctx, 4, it.Ref); err != nil {
			t.Fatalf("DeleteItem #%d error = %v", i, err)
		}
	}
	if accepted != 5 {
		t.Errorf("accepted %d uploads through upload+delete, want 5", accepted)
	}
}

func TestUploadValidation(t *testing.T) {
	f := newFixture(t, nil)
	tests := []struct {
		name        string
		user        models.UserID
		fingerprint string
		ref         string
	}{
		{"no user", 0, "fp", "ref"},
		{"blank fingerprint", 1, "  ", "ref"},
		{"blank ref", 1, "fp", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.core.Upload(context.Background(), tt.user, tt.fingerprint, tt.ref)
			if !errors.Is(err, models.ErrInvalidArgument) {
				t.Errorf("Upload() error = %v, want ErrInvalidArgument", err)
			}
		})
	}
}

func TestDuplicateUploadRecordsImplicitLike(t *testing.T) {
	tests := []struct {
		name     string
		enabled  bool
		uploader models.UserID
		wantLike bool
	}{
		{"other user", true, 2, true},
		{"disabled", false, 2, false},
		{"owner re-upload", true, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, func(c *config.Config) { c.Core.DuplicateImplicitLike = tt.enabled })
			ctx := context.Background()
			orig := f.upload(t, 1, "a")

			_, err := f.core.Upload(ctx, tt.uploader, "fp-a", "ref-other")
			var dup *models.DuplicateContentError
			if !errors.As(err, &dup) || dup.Field != "fingerprint" {
				t.Fatalf("Upload() error = %v, want fingerprint duplicate", err)
			}

			rows, _ := f.store.ListInteractions(ctx, store.InteractionQuery{UserID: 2})
			liked := len(rows) == 1 && rows[0].ItemID == orig.ID && rows[0].Score == models.ScoreLike
			if liked != tt.wantLike {
				t.Errorf("implicit like = %v, want %v (rows %+v)", liked, tt.wantLike, rows)
			}
		})
	}
}

func TestUploadBlockedAfterReportingManyOwners(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	const reporter models.UserID = 50

	// Default short escalation threshold is 5 distinct owners per day.
	for owner := models.UserID(1); owner <= 6; owner++ {
		it := f.upload(t, owner, fmt.Sprintf("o%d", owner))
		if _, err := f.core.Report(ctx, reporter, it.Ref); err != nil {
			t.Fatalf("Report() error = %v", err)
		}
	}

	_, err := f.core.Upload(ctx, reporter, "fp-r", "ref-r")
	if !errors.Is(err, models.ErrReportThresholdBlocked) {
		t.Fatalf("Upload() error = %v, want ErrReportThresholdBlocked", err)
	}
	stats, err := f.core.UserStats(ctx, reporter)
	if err != nil {
		t.Fatalf("UserStats() error = %v", err)
	}
	if stats.ModerationState != models.ModerationUploadBlocked {
		t.Errorf("ModerationState = %s, want upload_blocked", stats.ModerationState)
	}
}

func TestDislikeClearsQueue(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	const viewer models.UserID = 2

	for i := 0; i < 6; i++ {
		f.upload(t, 1, fmt.Sprintf("i%d", i))
	}
	// Make the viewer known to the filter. Both rows are constant after
	// centering, so every unscored item is ranked with zero affinity.
	if err := f.core.Score(ctx, viewer, "ref-i0", models.ScoreLike); err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if err := f.filter.Refresh(ctx, true); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	first, err := f.core.NextRecommendation(ctx, viewer)
	if err != nil || first == nil {
		t.Fatalf("NextRecommendation() = %v, %v", first, err)
	}
	if first.Source != models.SourceCollab || first.Ref == "" || first.OwnerID != 1 {
		t.Errorf("first = %+v", first)
	}
	if n := f.queue.Len(viewer); n != 4 {
		t.Fatalf("queue length = %d, want 4", n)
	}

	if err := f.core.Score(ctx, viewer, first.Ref, models.ScoreDislike); err != nil {
		t.Fatalf("Score(dislike) error = %v", err)
	}
	if n := f.queue.Len(viewer); n != 0 {
		t.Errorf("queue length after dislike = %d, want 0", n)
	}

	next, err := f.core.NextRecommendation(ctx, viewer)
	if err != nil || next == nil {
		t.Fatalf("NextRecommendation() after dislike = %v, %v", next, err)
	}
	if next.ItemID == first.ItemID {
		t.Error("disliked item served again")
	}
	if n := f.queue.Len(viewer); n != 3 {
		t.Errorf("refilled queue length = %d, want 3", n)
	}
}

func TestNextRecommendationSkipsStaleHeads(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	const viewer models.UserID = 2

	a := f.upload(t, 1, "a")
	b := f.upload(t, 1, "b")
	c := f.upload(t, 1, "c")
	if err := f.core.Score(ctx, viewer, a.Ref, models.ScoreLike); err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	if err := f.filter.Refresh(ctx, true); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	first, err := f.core.NextRecommendation(ctx, viewer)
	if err != nil || first == nil {
		t.Fatalf("NextRecommendation() = %v, %v", first, err)
	}
	// Score the other queued item behind the queue's back.
	other := b
	if first.ItemID == b.ID {
		other = c
	}
	if _, err := f.store.UpsertInteraction(ctx, models.Interaction{UserID: viewer, ItemID: other.ID, Score: models.ScoreLike, CreatedAt: now}); err != nil {
		t.Fatalf("UpsertInteraction() error = %v", err)
	}

	next, err := f.core.NextRecommendation(ctx, viewer)
	if err != nil || next == nil {
		t.Fatalf("NextRecommendation() = %v, %v", next, err)
	}
	if next.ItemID == other.ID {
		t.Error("served an item the viewer already scored")
	}
}

func TestBlockedItemNeverServed(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	it := f.upload(t, 1, "a")

	if err := f.core.Block(ctx, models.Actor{ID: 2}, it.Ref); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("Block() by user error = %v, want ErrForbidden", err)
	}
	if err := f.core.Block(ctx, models.Actor{ID: moderatorID}, it.Ref); err != nil {
		t.Fatalf("Block() error = %v", err)
	}

	for user := models.UserID(2); user < 6; user++ {
		rec, err := f.core.NextRecommendation(ctx, user)
		if err != nil {
			t.Fatalf("NextRecommendation() error = %v", err)
		}
		if rec != nil {
			t.Errorf("user %d served %+v after block", user, rec)
		}
	}
	if err := f.core.Score(ctx, 2, it.Ref, models.ScoreLike); !errors.Is(err, models.ErrItemBlocked) {
		t.Errorf("Score() on blocked item error = %v, want ErrItemBlocked", err)
	}
}

func TestScoreErrors(t *testing.T) {
	f := newFixture(t, nil)
	it := f.upload(t, 1, "a")

	tests := []struct {
		name  string
		user  models.UserID
		ref   string
		value models.Score
		want  error
	}{
		{"report score", 2, it.Ref, models.ScoreReport, models.ErrInvalidScore},
		{"self upload score", 2, it.Ref, models.ScoreSelfUpload, models.ErrInvalidScore},
		{"zero", 2, it.Ref, 0, models.ErrInvalidScore},
		{"unknown ref", 2, "nope", models.ScoreLike, models.ErrItemNotFound},
		{"own item", 1, it.Ref, models.ScoreLike, models.ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := f.core.Score(context.Background(), tt.user, tt.ref, tt.value); !errors.Is(err, tt.want) {
				t.Errorf("Score() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRescoreReplaces(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	it := f.upload(t, 1, "a")

	for _, v := range []models.Score{models.ScoreLike, models.ScoreDislike, models.ScoreLike} {
		if err := f.core.Score(ctx, 2, it.Ref, v); err != nil {
			t.Fatalf("Score(%v) error = %v", v, err)
		}
	}
	rows, _ := f.store.ListInteractions(ctx, store.InteractionQuery{UserID: 2})
	if len(rows) != 1 || rows[0].Score != models.ScoreLike {
		t.Errorf("interactions = %+v, want one like", rows)
	}
}

func TestDeleteItem(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	it := f.upload(t, 1, "a")

	if err := f.core.DeleteItem(ctx, 2, it.Ref); !errors.Is(err, models.ErrForbidden) {
		t.Fatalf("DeleteItem() by other error = %v, want ErrForbidden", err)
	}
	if err := f.core.DeleteItem(ctx, 1, it.Ref); err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}
	if err := f.core.DeleteItem(ctx, 1, it.Ref); !errors.Is(err, models.ErrItemNotFound) {
		t.Errorf("second DeleteItem() error = %v, want ErrItemNotFound", err)
	}
	if rec, _ := f.core.NextRecommendation(ctx, 2); rec != nil {
		t.Errorf("deleted item served: %+v", rec)
	}
}

func TestTouchAndStats(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	if err := f.core.Touch(ctx, models.Profile{ID: 0}); !errors.Is(err, models.ErrInvalidArgument) {
		t.Errorf("Touch(0) error = %v", err)
	}
	if err := f.core.Touch(ctx, models.Profile{ID: 2, Name: "Ana", Language: "pt"}); err != nil {
		t.Fatalf("Touch() error = %v", err)
	}
	u, err := f.store.GetUser(ctx, 2)
	if err != nil || u.Name != "Ana" || !u.LastActivity.Equal(now) {
		t.Errorf("GetUser() = %+v, %v", u, err)
	}

	it := f.upload(t, 1, "a")
	if err := f.core.Score(ctx, 2, it.Ref, models.ScoreLike); err != nil {
		t.Fatalf("Score() error = %v", err)
	}
	owner, _ := f.core.UserStats(ctx, 1)
	viewer, _ := f.core.UserStats(ctx, 2)
	if owner.UploadedCount != 1 || owner.LikesReceived != 1 || viewer.LikesGiven != 1 {
		t.Errorf("owner %+v viewer %+v", owner, viewer)
	}
}

func TestDebugViewsRequireModerator(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	f.upload(t, 1, "a")

	user := models.Actor{ID: 2}
	mod := models.Actor{ID: moderatorID}

	if _, err := f.core.Timings(user); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("Timings() as user error = %v", err)
	}
	if _, err := f.core.Collab(user); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("Collab() as user error = %v", err)
	}
	if _, err := f.core.AuditLog(ctx, user, 10); !errors.Is(err, models.ErrForbidden) {
		t.Errorf("AuditLog() as user error = %v", err)
	}

	summaries, err := f.core.Timings(mod)
	if err != nil {
		t.Fatalf("Timings() error = %v", err)
	}
	var found bool
	for _, s := range summaries {
		if s.Operation == "upload" && s.Count == 1 {
			found = true
		}
	}
	if !found {
		t.Errorf("Timings() = %+v, want one upload", summaries)
	}
	if _, err := f.core.Collab(mod); err != nil {
		t.Errorf("Collab() error = %v", err)
	}
}
