// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

// Package storetest holds behavioural tests shared by every store.Store driver.
package storetest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/tomtom215/artswap/internal/models"
	"github.com/tomtom215/artswap/internal/store"
)

// Factory returns a fresh, empty store. The driver closes it via t.Cleanup.
type Factory func(t *testing.T) store.Store

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// Run executes the shared suite against the driver produced by newStore.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"CreateItemRecordsSelfUpload", testCreateItemRecordsSelfUpload},
		{"DuplicateContent", testDuplicateContent},
		{"UpsertNeverDuplicates", testUpsertNeverDuplicates},
		{"ReportIsUnique", testReportIsUnique},
		{"FileReportWritesScore", testFileReportWritesScore},
		{"BlockIsIdempotent", testBlockIsIdempotent},
		{"ListCandidates", testListCandidates},
		{"ListCandidatesPermutesTiesBeforeLimit", testListCandidatesPermutesTiesBeforeLimit},
		{"ListInteractionsExcludesBlocked", testListInteractionsExcludesBlocked},
		{"RecentlyDislikedOwners", testRecentlyDislikedOwners},
		{"WindowCounts", testWindowCounts},
		{"UploadCountSurvivesDelete", testUploadCountSurvivesDelete},
		{"DeleteItemCascades", testDeleteItemCascades},
		{"UserStats", testUserStats},
		{"Notification", testNotification},
		{"PendingReports", testPendingReports},
		{"Events", testEvents},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func mustItem(t *testing.T, s store.Store, owner models.UserID, key string, at time.Time) *models.Item {
	t.Helper()
	it, err := s.CreateItem(context.Background(), models.NewItem{
		OwnerID:     owner,
		Fingerprint: "fp-" + key,
		Ref:         "ref-" + key,
		CreatedAt:   at,
	})
	if err != nil {
		t.Fatalf("CreateItem(%s) error = %v", key, err)
	}
	return it
}

func mustScore(t *testing.T, s store.Store, user models.UserID, item models.ItemID, score models.Score, at time.Time) {
	t.Helper()
	if _, err := s.UpsertInteraction(context.Background(), models.Interaction{
		UserID: user, ItemID: item, Score: score, CreatedAt: at,
	}); err != nil {
		t.Fatalf("UpsertInteraction(%d, %d) error = %v", user, item, err)
	}
}

func testCreateItemRecordsSelfUpload(t *testing.T, s store.Store) {
	ctx := context.Background()
	it := mustItem(t, s, 1, "a", base)
	if it.ID == 0 || it.OwnerID != 1 || it.Ref != "ref-a" {
		t.Fatalf("CreateItem() = %+v", it)
	}

	ins, err := s.ListInteractions(ctx, store.InteractionQuery{UserID: 1})
	if err != nil {
		t.Fatalf("ListInteractions() error = %v", err)
	}
	if len(ins) != 1 || ins[0].Score != models.ScoreSelfUpload || ins[0].ItemID != it.ID {
		t.Errorf("interactions = %+v, want one self upload", ins)
	}

	got, err := s.GetItemByRef(ctx, "ref-a")
	if err != nil || got.ID != it.ID {
		t.Errorf("GetItemByRef() = %+v, %v", got, err)
	}
	if _, err := s.GetItem(ctx, it.ID+100); !errors.Is(err, models.ErrItemNotFound) {
		t.Errorf("GetItem(missing) error = %v, want ErrItemNotFound", err)
	}
}

func testDuplicateContent(t *testing.T, s store.Store) {
	ctx := context.Background()
	orig := mustItem(t, s, 1, "a", base)

	tests := []struct {
		name      string
		item      models.NewItem
		wantField string
	}{
		{"same fingerprint", models.NewItem{OwnerID: 2, Fingerprint: "fp-a", Ref: "ref-x", CreatedAt: base}, "fingerprint"},
		{"same ref", models.NewItem{OwnerID: 2, Fingerprint: "fp-x", Ref: "ref-a", CreatedAt: base}, "ref"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.CreateItem(ctx, tt.item)
			var dup *models.DuplicateContentError
			if !errors.As(err, &dup) {
				t.Fatalf("CreateItem() error = %v, want DuplicateContentError", err)
			}
			if dup.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", dup.Field, tt.wantField)
			}
			if dup.Existing == nil || dup.Existing.ID != orig.ID {
				t.Errorf("Existing = %+v, want item %d", dup.Existing, orig.ID)
			}
		})
	}

	n, err := s.CountItems(ctx)
	if err != nil || n != 1 {
		t.Errorf("CountItems() = %d, %v; want 1", n, err)
	}
	found, err := s.FindDuplicate(ctx, "fp-a", "")
	if err != nil || found.ID != orig.ID {
		t.Errorf("FindDuplicate() = %+v, %v", found, err)
	}
	if _, err := s.FindDuplicate(ctx, "fp-none", "ref-none"); !errors.Is(err, models.ErrItemNotFound) {
		t.Errorf("FindDuplicate(miss) error = %v", err)
	}
}

func testUpsertNeverDuplicates(t *testing.T, s store.Store) {
	ctx := context.Background()
	it := mustItem(t, s, 1, "a", base)

	created, err := s.UpsertInteraction(ctx, models.Interaction{UserID: 2, ItemID: it.ID, Score: models.ScoreLike, CreatedAt: base})
	if err != nil || !created {
		t.Fatalf("first upsert = %v, %v; want created", created, err)
	}
	created, err = s.UpsertInteraction(ctx, models.Interaction{UserID: 2, ItemID: it.ID, Score: models.ScoreDislike, CreatedAt: base.Add(time.Minute)})
	if err != nil || created {
		t.Fatalf("second upsert = %v, %v; want update", created, err)
	}

	ins, err := s.ListInteractions(ctx, store.InteractionQuery{UserID: 2})
	if err != nil {
		t.Fatalf("ListInteractions() error = %v", err)
	}
	if len(ins) != 1 {
		t.Fatalf("rows for pair = %d, want 1", len(ins))
	}
	if ins[0].Score != models.ScoreDislike {
		t.Errorf("Score = %v, want dislike", ins[0].Score)
	}
	ok, err := s.HasInteraction(ctx, 2, it.ID)
	if err != nil || !ok {
		t.Errorf("HasInteraction() = %v, %v", ok, err)
	}
}

func testReportIsUnique(t *testing.T, s store.Store) {
	ctx := context.Background()
	it := mustItem(t, s, 1, "a", base)

	if has, err := s.HasReport(ctx, 2, it.ID); err != nil || has {
		t.Fatalf("HasReport() before = %v, %v", has, err)
	}
	for i, want := range []bool{true, false} {
		created, err := s.CreateReport(ctx, models.Report{UserID: 2, ItemID: it.ID, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		if err != nil {
			t.Fatalf("CreateReport #%d error = %v", i, err)
		}
		if created != want {
			t.Errorf("CreateReport #%d created = %v, want %v", i, created, want)
		}
	}
	got, err := s.GetItem(ctx, it.ID)
	if err != nil {
		t.Fatalf("GetItem() error = %v", err)
	}
	if got.ReportCount != 1 {
		t.Errorf("ReportCount = %d, want 1", got.ReportCount)
	}
	if has, err := s.HasReport(ctx, 2, it.ID); err != nil || !has {
		t.Errorf("HasReport() after = %v, %v", has, err)
	}
}

func testFileReportWritesScore(t *testing.T, s store.Store) {
	ctx := context.Background()
	it := mustItem(t, s, 1, "a", base)
	mustScore(t, s, 2, it.ID, models.ScoreLike, base)

	for i, want := range []bool{true, false} {
		created, err := s.FileReport(ctx, models.Report{UserID: 2, ItemID: it.ID, CreatedAt: base.Add(time.Duration(i) * time.Minute)})
		if err != nil {
			t.Fatalf("FileReport #%d error = %v", i, err)
		}
		if created != want {
			t.Errorf("FileReport #%d created = %v, want %v", i, created, want)
		}
	}

	rows, err := s.ListInteractions(ctx, store.InteractionQuery{UserID: 2})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Score != models.ScoreReport || !rows[0].CreatedAt.Equal(base) {
		t.Errorf("reporter interactions = %+v, want one -2 at the first report", rows)
	}
	got, err := s.GetItem(ctx, it.ID)
	if err != nil || got.ReportCount != 1 {
		t.Errorf("GetItem() = %+v, %v; want one report", got, err)
	}

	if _, err := s.FileReport(ctx, models.Report{UserID: 2, ItemID: it.ID + 100, CreatedAt: base}); !errors.Is(err, models.ErrItemNotFound) {
		t.Errorf("FileReport(missing) error = %v", err)
	}
}

func testBlockIsIdempotent(t *testing.T, s store.Store) {
	ctx := context.Background()
	it := mustItem(t, s, 1, "a", base)

	created, err := s.BlockItem(ctx, it.ID, 9, base)
	if err != nil || !created {
		t.Fatalf("BlockItem() = %v, %v", created, err)
	}
	created, err = s.BlockItem(ctx, it.ID, 9, base)
	if err != nil || created {
		t.Fatalf("second BlockItem() = %v, %v; want no-op", created, err)
	}
	got, err := s.GetItem(ctx, it.ID)
	if err != nil || !got.Blocked {
		t.Errorf("GetItem() = %+v, %v; want blocked", got, err)
	}
	if _, err := s.BlockItem(ctx, it.ID+100, 9, base); !errors.Is(err, models.ErrItemNotFound) {
		t.Errorf("BlockItem(missing) error = %v", err)
	}
}

func testListCandidates(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := mustItem(t, s, 1, "a", base)
	b := mustItem(t, s, 2, "b", base)
	c := mustItem(t, s, 3, "c", base)
	d := mustItem(t, s, 4, "d", base)
	e := mustItem(t, s, 5, "e", base)

	// b gets extra scores so it sorts after a.
	mustScore(t, s, 6, b.ID, models.ScoreLike, base)
	mustScore(t, s, 7, b.ID, models.ScoreLike, base)
	// viewer already scored c.
	mustScore(t, s, 10, c.ID, models.ScoreLike, base)
	// d is blocked, e is over the report tolerance.
	if _, err := s.BlockItem(ctx, d.ID, 9, base); err != nil {
		t.Fatal(err)
	}
	for u := models.UserID(20); u < 23; u++ {
		if _, err := s.CreateReport(ctx, models.Report{UserID: u, ItemID: e.ID, CreatedAt: base}); err != nil {
			t.Fatal(err)
		}
	}

	rows, err := s.ListCandidates(ctx, store.CandidateQuery{UserID: 10, MaxReports: 2})
	if err != nil {
		t.Fatalf("ListCandidates() error = %v", err)
	}
	var ids []models.ItemID
	for _, r := range rows {
		ids = append(ids, r.Item.ID)
	}
	if len(ids) != 2 || ids[0] != a.ID || ids[1] != b.ID {
		t.Fatalf("candidates = %v, want [%d %d]", ids, a.ID, b.ID)
	}
	if rows[0].ScoreCount != 1 || rows[1].ScoreCount != 3 {
		t.Errorf("score counts = %d, %d; want 1, 3", rows[0].ScoreCount, rows[1].ScoreCount)
	}

	rows, err = s.ListCandidates(ctx, store.CandidateQuery{UserID: 10, MaxReports: 2, ExcludeOwner: 1, Limit: 5})
	if err != nil {
		t.Fatalf("ListCandidates(exclude) error = %v", err)
	}
	if len(rows) != 1 || rows[0].Item.ID != b.ID {
		t.Errorf("candidates excluding owner 1 = %+v", rows)
	}
}

func testListCandidatesPermutesTiesBeforeLimit(t *testing.T, s store.Store) {
	ctx := context.Background()
	var items []*models.Item
	for i := 0; i < 20; i++ {
		items = append(items, mustItem(t, s, models.UserID(100+i), fmt.Sprintf("tie-%d", i), base))
	}
	head := make(map[models.ItemID]bool)
	for _, it := range items[:5] {
		head[it.ID] = true
	}

	firsts := make(map[models.ItemID]bool)
	outside := 0
	for seed := int64(1); seed <= 30; seed++ {
		q := store.CandidateQuery{UserID: 10, MaxReports: 2, Limit: 5, Seed: seed}
		rows, err := s.ListCandidates(ctx, q)
		if err != nil {
			t.Fatalf("ListCandidates(seed %d) error = %v", seed, err)
		}
		if len(rows) != 5 {
			t.Fatalf("ListCandidates(seed %d) returned %d rows, want 5", seed, len(rows))
		}
		firsts[rows[0].Item.ID] = true
		for _, r := range rows {
			if !head[r.Item.ID] {
				outside++
			}
		}

		again, err := s.ListCandidates(ctx, q)
		if err != nil {
			t.Fatal(err)
		}
		for i := range rows {
			if again[i].Item.ID != rows[i].Item.ID {
				t.Fatalf("seed %d: order not stable across calls", seed)
			}
		}
	}
	if outside == 0 {
		t.Error("limit always cut to the five lowest ids")
	}
	if len(firsts) < 5 {
		t.Errorf("only %d distinct leading items across 30 seeds", len(firsts))
	}
}

func testListInteractionsExcludesBlocked(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := mustItem(t, s, 1, "a", base)
	b := mustItem(t, s, 2, "b", base)
	mustScore(t, s, 3, a.ID, models.ScoreLike, base)
	mustScore(t, s, 3, b.ID, models.ScoreLike, base)
	if _, err := s.BlockItem(ctx, b.ID, 9, base); err != nil {
		t.Fatal(err)
	}

	all, err := s.ListInteractions(ctx, store.InteractionQuery{})
	if err != nil {
		t.Fatal(err)
	}
	visible, err := s.ListInteractions(ctx, store.InteractionQuery{ExcludeBlocked: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 4 || len(visible) != 2 {
		t.Errorf("len(all) = %d, len(visible) = %d; want 4, 2", len(all), len(visible))
	}
	for _, in := range visible {
		if in.ItemID == b.ID {
			t.Errorf("blocked item %d listed", b.ID)
		}
	}
}

func testRecentlyDislikedOwners(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := mustItem(t, s, 1, "a", base)
	b := mustItem(t, s, 2, "b", base)
	c := mustItem(t, s, 3, "c", base)
	mustScore(t, s, 10, a.ID, models.ScoreDislike, base.Add(-2*time.Hour))
	mustScore(t, s, 10, b.ID, models.ScoreDislike, base.Add(-10*time.Minute))
	mustScore(t, s, 10, c.ID, models.ScoreReport, base.Add(-5*time.Minute))

	owners, err := s.RecentlyDislikedOwners(ctx, 10, base.Add(-time.Hour), 0)
	if err != nil {
		t.Fatalf("RecentlyDislikedOwners() error = %v", err)
	}
	if len(owners) != 2 || owners[0] != 3 || owners[1] != 2 {
		t.Errorf("owners = %v, want [3 2]", owners)
	}
	owners, err = s.RecentlyDislikedOwners(ctx, 10, base.Add(-time.Hour), 1)
	if err != nil || len(owners) != 1 || owners[0] != 3 {
		t.Errorf("owners(limit 1) = %v, %v", owners, err)
	}
}

func testWindowCounts(t *testing.T, s store.Store) {
	ctx := context.Background()
	mustItem(t, s, 1, "old", base.Add(-48*time.Hour))
	mustItem(t, s, 1, "new1", base.Add(-time.Minute))
	mustItem(t, s, 1, "new2", base)
	b := mustItem(t, s, 2, "b", base)
	c := mustItem(t, s, 3, "c", base)
	d := mustItem(t, s, 4, "d", base)
	own := mustItem(t, s, 1, "own", base)

	n, err := s.CountUploads(ctx, 1, base.Add(-time.Hour))
	if err != nil || n != 3 {
		t.Errorf("CountUploads() = %d, %v; want 3", n, err)
	}

	for _, id := range []models.ItemID{b.ID, c.ID, d.ID, own.ID} {
		if _, err := s.CreateReport(ctx, models.Report{UserID: 1, ItemID: id, CreatedAt: base}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := s.BlockItem(ctx, d.ID, 9, base); err != nil {
		t.Fatal(err)
	}

	n, err = s.CountReportsFiled(ctx, 1, base.Add(-time.Hour))
	if err != nil || n != 4 {
		t.Errorf("CountReportsFiled() = %d, %v; want 4", n, err)
	}
	// own item and blocked item do not count.
	n, err = s.CountReportedOwners(ctx, 1, base.Add(-time.Hour))
	if err != nil || n != 2 {
		t.Errorf("CountReportedOwners() = %d, %v; want 2", n, err)
	}
	n, err = s.CountReportedOwners(ctx, 1, base.Add(time.Hour))
	if err != nil || n != 0 {
		t.Errorf("CountReportedOwners(future) = %d, %v; want 0", n, err)
	}
}

func testUploadCountSurvivesDelete(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		it := mustItem(t, s, 1, fmt.Sprintf("gone-%d", i), base)
		if err := s.DeleteItem(ctx, it.ID); err != nil {
			t.Fatalf("DeleteItem() error = %v", err)
		}
	}
	mustItem(t, s, 1, "kept", base)

	n, err := s.CountUploads(ctx, 1, base.Add(-time.Hour))
	if err != nil || n != 4 {
		t.Errorf("CountUploads() = %d, %v; want 4", n, err)
	}
	n, err = s.CountItems(ctx)
	if err != nil || n != 1 {
		t.Errorf("CountItems() = %d, %v; want 1", n, err)
	}
}

func testDeleteItemCascades(t *testing.T, s store.Store) {
	ctx := context.Background()
	it := mustItem(t, s, 1, "a", base)
	mustScore(t, s, 2, it.ID, models.ScoreLike, base)
	if _, err := s.CreateReport(ctx, models.Report{UserID: 3, ItemID: it.ID, CreatedAt: base}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.BlockItem(ctx, it.ID, 9, base); err != nil {
		t.Fatal(err)
	}

	if err := s.DeleteItem(ctx, it.ID); err != nil {
		t.Fatalf("DeleteItem() error = %v", err)
	}
	if _, err := s.GetItem(ctx, it.ID); !errors.Is(err, models.ErrItemNotFound) {
		t.Errorf("GetItem after delete error = %v", err)
	}
	ins, err := s.ListInteractions(ctx, store.InteractionQuery{})
	if err != nil || len(ins) != 0 {
		t.Errorf("interactions after delete = %v, %v", ins, err)
	}
	pending, err := s.PendingReports(ctx, 10)
	if err != nil || len(pending) != 0 {
		t.Errorf("pending after delete = %v, %v", pending, err)
	}
	if err := s.DeleteItem(ctx, it.ID); !errors.Is(err, models.ErrItemNotFound) {
		t.Errorf("second DeleteItem() error = %v", err)
	}

	// fingerprint and ref are free again.
	mustItem(t, s, 1, "a", base)
}

func testUserStats(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := mustItem(t, s, 1, "a", base)
	b := mustItem(t, s, 1, "b", base)
	c := mustItem(t, s, 2, "c", base)
	mustScore(t, s, 2, a.ID, models.ScoreLike, base)
	mustScore(t, s, 3, b.ID, models.ScoreLike, base)
	mustScore(t, s, 3, a.ID, models.ScoreDislike, base)
	mustScore(t, s, 1, c.ID, models.ScoreLike, base)

	stats, err := s.UserStats(ctx, 1)
	if err != nil {
		t.Fatalf("UserStats() error = %v", err)
	}
	want := models.UserStats{UploadedCount: 2, LikesGiven: 1, LikesReceived: 2, ModerationState: models.ModerationNormal}
	if stats != want {
		t.Errorf("UserStats() = %+v, want %+v", stats, want)
	}

	if err := s.SetModerationState(ctx, 1, models.ModerationUploadBlocked); err != nil {
		t.Fatal(err)
	}
	stats, err = s.UserStats(ctx, 1)
	if err != nil || stats.ModerationState != models.ModerationUploadBlocked {
		t.Errorf("state after SetModerationState = %+v, %v", stats, err)
	}

	stats, err = s.UserStats(ctx, 99)
	if err != nil || stats.UploadedCount != 0 || stats.ModerationState != models.ModerationNormal {
		t.Errorf("UserStats(unknown) = %+v, %v", stats, err)
	}
}

func testNotification(t *testing.T, s store.Store) {
	ctx := context.Background()
	for id, at := range map[models.UserID]time.Time{
		1: base.Add(-48 * time.Hour),
		2: base.Add(-30 * time.Hour),
		3: base.Add(-time.Hour),
	} {
		if err := s.TouchUser(ctx, models.Profile{ID: id, Name: "u", Language: "en"}, at); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.MarkNotified(ctx, 2, base.Add(-2*time.Hour)); err != nil {
		t.Fatal(err)
	}

	q := store.NotifyQuery{IdleSince: base.Add(-24 * time.Hour), NotifiedBefore: base.Add(-24 * time.Hour)}
	ids, err := s.UsersToNotify(ctx, q)
	if err != nil {
		t.Fatalf("UsersToNotify() error = %v", err)
	}
	if len(ids) != 1 || ids[0] != 1 {
		t.Errorf("UsersToNotify() = %v, want [1]", ids)
	}

	u, err := s.GetUser(ctx, 2)
	if err != nil || u.LastNotifiedAt == nil || u.Name != "u" || u.Language != "en" {
		t.Errorf("GetUser() = %+v, %v", u, err)
	}
	if _, err := s.GetUser(ctx, 77); !errors.Is(err, models.ErrUserNotFound) {
		t.Errorf("GetUser(missing) error = %v", err)
	}
}

func testPendingReports(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := mustItem(t, s, 1, "a", base)
	b := mustItem(t, s, 2, "b", base)
	c := mustItem(t, s, 3, "c", base)
	report := func(user models.UserID, item models.ItemID, at time.Time) {
		t.Helper()
		if _, err := s.CreateReport(ctx, models.Report{UserID: user, ItemID: item, CreatedAt: at}); err != nil {
			t.Fatal(err)
		}
	}
	report(10, a.ID, base)
	report(10, b.ID, base)
	report(11, b.ID, base.Add(time.Minute))
	report(10, c.ID, base)
	if _, err := s.BlockItem(ctx, c.ID, 9, base); err != nil {
		t.Fatal(err)
	}

	got, err := s.PendingReports(ctx, 10)
	if err != nil {
		t.Fatalf("PendingReports() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(PendingReports()) = %d, want 2", len(got))
	}
	if got[0].Item.ID != b.ID || got[0].Reports != 2 || got[1].Item.ID != a.ID {
		t.Errorf("PendingReports() = %+v", got)
	}
	if !got[0].LastReportedAt.After(got[0].FirstReportedAt) {
		t.Errorf("first/last = %v/%v", got[0].FirstReportedAt, got[0].LastReportedAt)
	}
}

func testEvents(t *testing.T, s store.Store) {
	ctx := context.Background()
	for i, typ := range []models.EventType{models.EventItemUploaded, models.EventItemBlocked} {
		ev := models.AuditEvent{
			ID:         string(rune('a' + i)),
			Type:       typ,
			ActorID:    1,
			ItemID:     models.ItemID(i + 1),
			OccurredAt: base.Add(time.Duration(i) * time.Second),
			Details:    map[string]string{"k": "v"},
		}
		if err := s.RecordEvent(ctx, ev); err != nil {
			t.Fatalf("RecordEvent() error = %v", err)
		}
	}
	got, err := s.ListEvents(ctx, 1)
	if err != nil {
		t.Fatalf("ListEvents() error = %v", err)
	}
	if len(got) != 1 || got[0].Type != models.EventItemBlocked || got[0].Details["k"] != "v" {
		t.Errorf("ListEvents(1) = %+v", got)
	}
}
