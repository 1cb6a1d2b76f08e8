// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/tomtom215/artswap/internal/models"
)

type pairKey struct {
	user models.UserID
	item models.ItemID
}

type uploadRecord struct {
	owner models.UserID
	at    time.Time
}

type blockRecord struct {
	moderator models.UserID
	at        time.Time
}

// Memory is a Store held entirely in process memory. It is safe for
// concurrent use and loses everything on restart.
type Memory struct {
	mu sync.RWMutex

	nextItemID   models.ItemID
	users        map[models.UserID]*models.User
	items        map[models.ItemID]*models.Item
	byRef        map[string]models.ItemID
	byFP         map[string]models.ItemID
	interactions map[pairKey]models.Interaction
	reports      map[pairKey]models.Report
	reportCount  map[models.ItemID]int
	blocks       map[models.ItemID]blockRecord
	uploads      []uploadRecord
	events       []models.AuditEvent
	closed       bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		users:        make(map[models.UserID]*models.User),
		items:        make(map[models.ItemID]*models.Item),
		byRef:        make(map[string]models.ItemID),
		byFP:         make(map[string]models.ItemID),
		interactions: make(map[pairKey]models.Interaction),
		reports:      make(map[pairKey]models.Report),
		reportCount:  make(map[models.ItemID]int),
		blocks:       make(map[models.ItemID]blockRecord),
	}
}

var _ Store = (*Memory)(nil)

// Ping reports whether the store is open.
func (m *Memory) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrClosed
	}
	return ctx.Err()
}

// Close marks the store closed. Data stays readable for inspection in tests.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

// ensureUser must be called with mu held for writing.
func (m *Memory) ensureUser(id models.UserID, at time.Time) *models.User {
	u, ok := m.users[id]
	if !ok {
		u = &models.User{
			ID:              id,
			CreatedAt:       at,
			UpdatedAt:       at,
			LastActivity:    at,
			ModerationState: models.ModerationNormal,
		}
		m.users[id] = u
	}
	return u
}

// snapshotItem must be called with mu held.
func (m *Memory) snapshotItem(it *models.Item) *models.Item {
	cp := *it
	_, cp.Blocked = m.blocks[it.ID]
	cp.ReportCount = m.reportCount[it.ID]
	return &cp
}

// --- users ---

func (m *Memory) TouchUser(_ context.Context, p models.Profile, at time.Time) error {
	if p.ID <= 0 {
		return models.ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.ensureUser(p.ID, at)
	if p.Name != "" {
		u.Name = p.Name
	}
	if p.Language != "" {
		u.Language = p.Language
	}
	u.UpdatedAt = at
	u.LastActivity = at
	return nil
}

func (m *Memory) GetUser(_ context.Context, id models.UserID) (*models.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, models.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Memory) SetModerationState(_ context.Context, id models.UserID, state models.ModerationState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.ensureUser(id, time.Now().UTC())
	u.ModerationState = state
	return nil
}

func (m *Memory) UserStats(_ context.Context, id models.UserID) (models.UserStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := models.UserStats{ModerationState: models.ModerationNormal}
	if u, ok := m.users[id]; ok {
		stats.ModerationState = u.ModerationState
	}
	owned := make(map[models.ItemID]bool)
	for _, it := range m.items {
		if it.OwnerID == id {
			owned[it.ID] = true
			stats.UploadedCount++
		}
	}
	for k, in := range m.interactions {
		if in.Score != models.ScoreLike {
			continue
		}
		if k.user == id {
			stats.LikesGiven++
		}
		if owned[k.item] && k.user != id {
			stats.LikesReceived++
		}
	}
	return stats, nil
}

func (m *Memory) UsersToNotify(_ context.Context, q NotifyQuery) ([]models.UserID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []models.UserID
	for id, u := range m.users {
		if u.LastActivity.After(q.IdleSince) {
			continue
		}
		if u.LastNotifiedAt != nil && u.LastNotifiedAt.After(q.NotifiedBefore) {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if q.Limit > 0 && len(ids) > q.Limit {
		ids = ids[:q.Limit]
	}
	return ids, nil
}

func (m *Memory) MarkNotified(_ context.Context, id models.UserID, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return models.ErrUserNotFound
	}
	t := at
	u.LastNotifiedAt = &t
	return nil
}

// --- items ---

func (m *Memory) CreateItem(_ context.Context, n models.NewItem) (*models.Item, error) {
	if n.OwnerID <= 0 || n.Fingerprint == "" || n.Ref == "" {
		return nil, models.ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.byFP[n.Fingerprint]; ok {
		return nil, &models.DuplicateContentError{Field: "fingerprint", Existing: m.snapshotItem(m.items[id])}
	}
	if id, ok := m.byRef[n.Ref]; ok {
		return nil, &models.DuplicateContentError{Field: "ref", Existing: m.snapshotItem(m.items[id])}
	}

	m.ensureUser(n.OwnerID, n.CreatedAt)
	m.nextItemID++
	it := &models.Item{
		ID:          m.nextItemID,
		Ref:         n.Ref,
		OwnerID:     n.OwnerID,
		Fingerprint: n.Fingerprint,
		CreatedAt:   n.CreatedAt,
	}
	m.items[it.ID] = it
	m.byRef[it.Ref] = it.ID
	m.byFP[it.Fingerprint] = it.ID
	m.uploads = append(m.uploads, uploadRecord{owner: n.OwnerID, at: n.CreatedAt})
	m.interactions[pairKey{n.OwnerID, it.ID}] = models.Interaction{
		UserID:    n.OwnerID,
		ItemID:    it.ID,
		Score:     models.ScoreSelfUpload,
		CreatedAt: n.CreatedAt,
	}
	cp := *it
	return &cp, nil
}

func (m *Memory) FindDuplicate(_ context.Context, fingerprint, ref string) (*models.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id, ok := m.byFP[fingerprint]; ok && fingerprint != "" {
		return m.snapshotItem(m.items[id]), nil
	}
	if id, ok := m.byRef[ref]; ok && ref != "" {
		return m.snapshotItem(m.items[id]), nil
	}
	return nil, models.ErrItemNotFound
}

func (m *Memory) GetItem(_ context.Context, id models.ItemID) (*models.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it, ok := m.items[id]
	if !ok {
		return nil, models.ErrItemNotFound
	}
	return m.snapshotItem(it), nil
}

func (m *Memory) GetItemByRef(_ context.Context, ref string) (*models.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byRef[ref]
	if !ok {
		return nil, models.ErrItemNotFound
	}
	return m.snapshotItem(m.items[id]), nil
}

func (m *Memory) DeleteItem(_ context.Context, id models.ItemID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return models.ErrItemNotFound
	}
	delete(m.items, id)
	delete(m.byRef, it.Ref)
	delete(m.byFP, it.Fingerprint)
	delete(m.blocks, id)
	delete(m.reportCount, id)
	for k := range m.interactions {
		if k.item == id {
			delete(m.interactions, k)
		}
	}
	for k := range m.reports {
		if k.item == id {
			delete(m.reports, k)
		}
	}
	return nil
}

func (m *Memory) CountItems(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items), nil
}

func (m *Memory) ListCandidates(_ context.Context, q CandidateQuery) ([]CandidateRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	scoreCount := make(map[models.ItemID]int, len(m.items))
	seen := make(map[models.ItemID]bool)
	for k := range m.interactions {
		scoreCount[k.item]++
		if k.user == q.UserID {
			seen[k.item] = true
		}
	}

	rows := make([]CandidateRow, 0, len(m.items))
	for id, it := range m.items {
		if seen[id] {
			continue
		}
		if q.ExcludeOwner != 0 && it.OwnerID == q.ExcludeOwner {
			continue
		}
		snap := m.snapshotItem(it)
		if snap.Blocked || snap.ReportCount > q.MaxReports {
			continue
		}
		rows = append(rows, CandidateRow{Item: *snap, ScoreCount: scoreCount[id]})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].ScoreCount != rows[j].ScoreCount {
			return rows[i].ScoreCount < rows[j].ScoreCount
		}
		ki, kj := tieKey(rows[i].Item.ID, q.Seed), tieKey(rows[j].Item.ID, q.Seed)
		if ki != kj {
			return ki < kj
		}
		return rows[i].Item.ID < rows[j].Item.ID
	})
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	return rows, nil
}

// tieKey mixes id and seed with the splitmix64 finalizer.
func tieKey(id models.ItemID, seed int64) uint64 {
	z := uint64(id) + uint64(seed)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// --- interactions ---

func (m *Memory) UpsertInteraction(_ context.Context, in models.Interaction) (bool, error) {
	if !in.Score.Valid() {
		return false, models.ErrInvalidScore
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[in.ItemID]; !ok {
		return false, models.ErrItemNotFound
	}
	m.ensureUser(in.UserID, in.CreatedAt)
	k := pairKey{in.UserID, in.ItemID}
	_, existed := m.interactions[k]
	m.interactions[k] = in
	return !existed, nil
}

func (m *Memory) HasInteraction(_ context.Context, user models.UserID, item models.ItemID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.interactions[pairKey{user, item}]
	return ok, nil
}

func (m *Memory) ListInteractions(_ context.Context, q InteractionQuery) ([]models.Interaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.Interaction, 0, len(m.interactions))
	for k, in := range m.interactions {
		if q.UserID != 0 && k.user != q.UserID {
			continue
		}
		if q.ExcludeBlocked {
			if _, blocked := m.blocks[k.item]; blocked {
				continue
			}
		}
		out = append(out, in)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out, nil
}

func (m *Memory) RecentlyDislikedOwners(_ context.Context, user models.UserID, since time.Time, limit int) ([]models.UserID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	latest := make(map[models.UserID]time.Time)
	for k, in := range m.interactions {
		if k.user != user || !in.Score.IsNegative() || in.CreatedAt.Before(since) {
			continue
		}
		it, ok := m.items[k.item]
		if !ok || it.OwnerID == user {
			continue
		}
		if t, ok := latest[it.OwnerID]; !ok || in.CreatedAt.After(t) {
			latest[it.OwnerID] = in.CreatedAt
		}
	}
	owners := make([]models.UserID, 0, len(latest))
	for id := range latest {
		owners = append(owners, id)
	}
	sort.Slice(owners, func(i, j int) bool {
		ti, tj := latest[owners[i]], latest[owners[j]]
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return owners[i] < owners[j]
	})
	if limit > 0 && len(owners) > limit {
		owners = owners[:limit]
	}
	return owners, nil
}

func (m *Memory) CountUploads(_ context.Context, user models.UserID, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, u := range m.uploads {
		if u.owner == user && !u.at.Before(since) {
			n++
		}
	}
	return n, nil
}

// --- moderation ---

func (m *Memory) CreateReport(_ context.Context, r models.Report) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[r.ItemID]; !ok {
		return false, models.ErrItemNotFound
	}
	k := pairKey{r.UserID, r.ItemID}
	if _, ok := m.reports[k]; ok {
		return false, nil
	}
	m.ensureUser(r.UserID, r.CreatedAt)
	m.reports[k] = r
	m.reportCount[r.ItemID]++
	return true, nil
}

func (m *Memory) FileReport(_ context.Context, r models.Report) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[r.ItemID]; !ok {
		return false, models.ErrItemNotFound
	}
	k := pairKey{r.UserID, r.ItemID}
	if _, ok := m.reports[k]; ok {
		return false, nil
	}
	m.ensureUser(r.UserID, r.CreatedAt)
	m.reports[k] = r
	m.reportCount[r.ItemID]++
	m.interactions[k] = models.Interaction{
		UserID:    r.UserID,
		ItemID:    r.ItemID,
		Score:     models.ScoreReport,
		CreatedAt: r.CreatedAt,
	}
	return true, nil
}

func (m *Memory) HasReport(_ context.Context, user models.UserID, item models.ItemID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.reports[pairKey{user, item}]
	return ok, nil
}

func (m *Memory) BlockItem(_ context.Context, item models.ItemID, moderator models.UserID, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[item]; !ok {
		return false, models.ErrItemNotFound
	}
	if _, ok := m.blocks[item]; ok {
		return false, nil
	}
	m.blocks[item] = blockRecord{moderator: moderator, at: at}
	return true, nil
}

func (m *Memory) CountReportsFiled(_ context.Context, user models.UserID, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for k, r := range m.reports {
		if k.user == user && !r.CreatedAt.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *Memory) CountReportedOwners(_ context.Context, user models.UserID, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	owners := make(map[models.UserID]struct{})
	for k, r := range m.reports {
		if k.user != user || r.CreatedAt.Before(since) {
			continue
		}
		if _, blocked := m.blocks[k.item]; blocked {
			continue
		}
		it, ok := m.items[k.item]
		if !ok || it.OwnerID == user {
			continue
		}
		owners[it.OwnerID] = struct{}{}
	}
	return len(owners), nil
}

func (m *Memory) PendingReports(_ context.Context, limit int) ([]models.ReportSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	byItem := make(map[models.ItemID]*models.ReportSummary)
	for k, r := range m.reports {
		if _, blocked := m.blocks[k.item]; blocked {
			continue
		}
		it, ok := m.items[k.item]
		if !ok {
			continue
		}
		s, ok := byItem[k.item]
		if !ok {
			s = &models.ReportSummary{
				Item:            *m.snapshotItem(it),
				FirstReportedAt: r.CreatedAt,
				LastReportedAt:  r.CreatedAt,
			}
			byItem[k.item] = s
		}
		s.Reports++
		if r.CreatedAt.Before(s.FirstReportedAt) {
			s.FirstReportedAt = r.CreatedAt
		}
		if r.CreatedAt.After(s.LastReportedAt) {
			s.LastReportedAt = r.CreatedAt
		}
	}
	out := make([]models.ReportSummary, 0, len(byItem))
	for _, s := range byItem {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Reports != out[j].Reports {
			return out[i].Reports > out[j].Reports
		}
		return out[i].Item.ID < out[j].Item.ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) RecordEvent(_ context.Context, ev models.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

// ListEvents returns the most recent events first.
func (m *Memory) ListEvents(_ context.Context, limit int) ([]models.AuditEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := len(m.events)
	if limit > 0 && n > limit {
		n = limit
	}
	out := make([]models.AuditEvent, 0, n)
	for i := len(m.events) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.events[i])
	}
	return out, nil
}
