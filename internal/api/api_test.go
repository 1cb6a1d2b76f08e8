// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package api

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/artswap/internal/abuse"
	"github.com/tomtom215/artswap/internal/auth"
	"github.com/tomtom215/artswap/internal/authz"
	"github.com/tomtom215/artswap/internal/config"
	"github.com/tomtom215/artswap/internal/core"
	"github.com/tomtom215/artswap/internal/logging"
	"github.com/tomtom215/artswap/internal/models"
	"github.com/tomtom215/artswap/internal/moderation"
	"github.com/tomtom215/artswap/internal/recommend/candidates"
	"github.com/tomtom215/artswap/internal/recommend/collab"
	"github.com/tomtom215/artswap/internal/recommend/queue"
	"github.com/tomtom215/artswap/internal/store"
	"github.com/tomtom215/artswap/internal/validation"
)

const moderatorID models.UserID = 900

type testServer struct {
	handler http.Handler
	jwt     *auth.JWTManager
	store   *store.Memory
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Security.JWTSecret = "test-secret-that-is-long-enough-for-hs256"
	cfg.Candidates.Seed = 7
	cfg.Collab.Seed = 7
	if mutate != nil {
		mutate(&cfg)
	}

	st := store.NewMemory()
	t.Cleanup(func() { _ = st.Close() })
	log := logging.NopLogger()

	enforcer, err := authz.NewEnforcer(authz.Config{Moderators: []string{moderatorID.String()}})
	if err != nil {
		t.Fatalf("NewEnforcer() error = %v", err)
	}
	filter, err := collab.New(st, cfg.Collab, log)
	if err != nil {
		t.Fatalf("collab.New() error = %v", err)
	}
	gen := candidates.New(st, cfg.Candidates, log)
	cache := queue.New(filter, gen, cfg.Queue.BatchSize, log)
	gate := abuse.New(st, cfg.Abuse, nil, log)
	wf := moderation.New(st, gate, filter, cache, enforcer, nil, log)
	engine := core.New(core.Deps{
		Store:      st,
		Gate:       gate,
		Filter:     filter,
		Queue:      cache,
		Moderation: wf,
		Authorizer: enforcer,
	}, cfg.Core, log)

	jwt, err := auth.NewJWTManager(cfg.Security)
	if err != nil {
		t.Fatalf("NewJWTManager() error = %v", err)
	}
	router := NewRouter(engine, jwt, MiddlewareConfigFrom(cfg.Security))
	return &testServer{handler: router.Setup(), jwt: jwt, store: st}
}

func (s *testServer) token(t *testing.T, user models.UserID) string {
	t.Helper()
	tok, err := s.jwt.GenerateToken(models.Profile{ID: user, Name: fmt.Sprintf("user-%d", user), Language: "en"})
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	return tok
}

func (s *testServer) do(t *testing.T, user models.UserID, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("json.Marshal() error = %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != 0 {
		req.Header.Set("Authorization", "Bearer "+s.token(t, user))
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Status string           `json:"status"`
	Data   json.RawMessage  `json:"data"`
	Error  *models.APIError `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return env
}

func wantError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if rec.Code != status {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, status, rec.Body.String())
	}
	env := decode(t, rec)
	if env.Status != "error" || env.Error == nil || env.Error.Code != code {
		t.Fatalf("envelope = %+v, want error code %s", env, code)
	}
}

func TestUploadServeScoreFlow(t *testing.T) {
	s := newTestServer(t, nil)

	rec := s.do(t, 1, http.MethodPost, "/api/v1/items", UploadRequest{Fingerprint: "fp-a", Ref: "ref-a"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload status = %d, body %s", rec.Code, rec.Body.String())
	}
	var item models.Item
	if err := json.Unmarshal(decode(t, rec).Data, &item); err != nil {
		t.Fatal(err)
	}
	if item.Ref != "ref-a" || item.OwnerID != 1 {
		t.Errorf("item = %+v", item)
	}

	rec = s.do(t, 2, http.MethodGet, "/api/v1/recommendations/next", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("next status = %d, body %s", rec.Code, rec.Body.String())
	}
	var got models.Recommendation
	if err := json.Unmarshal(decode(t, rec).Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Ref != "ref-a" || got.OwnerID != 1 {
		t.Errorf("recommendation = %+v, want ref-a from user 1", got)
	}

	rec = s.do(t, 2, http.MethodPost, "/api/v1/items/ref-a/score", ScoreRequest{Value: 1})
	if rec.Code != http.StatusOK {
		t.Fatalf("score status = %d, body %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, 1, http.MethodGet, "/api/v1/users/me/stats", nil)
	var stats models.UserStats
	if err := json.Unmarshal(decode(t, rec).Data, &stats); err != nil {
		t.Fatal(err)
	}
	if stats.UploadedCount != 1 || stats.LikesReceived != 1 {
		t.Errorf("stats = %+v, want 1 upload and 1 like received", stats)
	}
}

func TestNextRecommendationEmptyPool(t *testing.T) {
	s := newTestServer(t, nil)
	rec := s.do(t, 1, http.MethodGet, "/api/v1/recommendations/next", nil)
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("body = %q, want empty", rec.Body.String())
	}
}

func TestAuthentication(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic dXNlcjpwYXNz"},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/users/me/stats", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			s.handler.ServeHTTP(rec, req)
			wantError(t, rec, http.StatusUnauthorized, ErrCodeUnauthorized)
		})
	}
}

func TestTouchRecordsProfile(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, 42, http.MethodGet, "/api/v1/users/me/stats", nil)

	u, err := s.store.GetUser(context.Background(), 42)
	if err != nil {
		t.Fatalf("GetUser() error = %v", err)
	}
	if u.Name != "user-42" || u.Language != "en" {
		t.Errorf("user = %+v", u)
	}
}

func TestRequestValidation(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, 1, http.MethodPost, "/api/v1/items", UploadRequest{Fingerprint: "fp-a", Ref: "ref-a"})

	tests := []struct {
		name   string
		method string
		path   string
		body   interface{}
	}{
		{"upload missing ref", http.MethodPost, "/api/v1/items", `{"fingerprint":"fp-b"}`},
		{"upload whitespace ref", http.MethodPost, "/api/v1/items", UploadRequest{Fingerprint: "fp-b", Ref: "a b"}},
		{"upload unknown field", http.MethodPost, "/api/v1/items", `{"fingerprint":"fp-b","ref":"r","x":1}`},
		{"upload not json", http.MethodPost, "/api/v1/items", `fingerprint=fp-b`},
		{"score out of range", http.MethodPost, "/api/v1/items/ref-a/score", ScoreRequest{Value: 2}},
		{"score missing value", http.MethodPost, "/api/v1/items/ref-a/score", `{}`},
		{"limit not a number", http.MethodGet, "/api/v1/moderation/reports?limit=ten", nil},
		{"limit too large", http.MethodGet, "/api/v1/moderation/reports?limit=501", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, moderatorID, tt.method, tt.path, tt.body)
			wantError(t, rec, http.StatusBadRequest, ErrCodeValidation)
		})
	}
}

func TestUploadErrors(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Abuse.UploadShortCap = 2 })
	s.do(t, 1, http.MethodPost, "/api/v1/items", UploadRequest{Fingerprint: "fp-a", Ref: "ref-a"})

	rec := s.do(t, 2, http.MethodPost, "/api/v1/items", UploadRequest{Fingerprint: "fp-a", Ref: "ref-other"})
	wantError(t, rec, http.StatusConflict, ErrCodeDuplicate)
	if field := decode(t, rec).Error.Details["field"]; field != "fingerprint" {
		t.Errorf("duplicate field = %v, want fingerprint", field)
	}

	s.do(t, 1, http.MethodPost, "/api/v1/items", UploadRequest{Fingerprint: "fp-b", Ref: "ref-b"})
	rec = s.do(t, 1, http.MethodPost, "/api/v1/items", UploadRequest{Fingerprint: "fp-c", Ref: "ref-c"})
	wantError(t, rec, http.StatusTooManyRequests, ErrCodeRateLimited)
	if got := rec.Header().Get("Retry-After"); got != "600" {
		t.Errorf("Retry-After = %q, want 600", got)
	}
}

func TestReportAndBlock(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, 1, http.MethodPost, "/api/v1/items", UploadRequest{Fingerprint: "fp-a", Ref: "ref-a"})

	rec := s.do(t, 2, http.MethodPost, "/api/v1/items/ref-a/report", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("first report status = %d, body %s", rec.Code, rec.Body.String())
	}
	rec = s.do(t, 2, http.MethodPost, "/api/v1/items/ref-a/report", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("second report status = %d", rec.Code)
	}
	var out moderation.ReportOutcome
	if err := json.Unmarshal(decode(t, rec).Data, &out); err != nil {
		t.Fatal(err)
	}
	if !out.Duplicate || out.Recorded {
		t.Errorf("second report outcome = %+v, want duplicate", out)
	}

	wantError(t, s.do(t, 3, http.MethodGet, "/api/v1/moderation/reports", nil), http.StatusForbidden, ErrCodeForbidden)
	rec = s.do(t, moderatorID, http.MethodGet, "/api/v1/moderation/reports?limit=10", nil)
	var rows []models.ReportSummary
	if err := json.Unmarshal(decode(t, rec).Data, &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 || rows[0].Item.Ref != "ref-a" || rows[0].Reports != 1 {
		t.Errorf("pending reports = %+v", rows)
	}

	wantError(t, s.do(t, 3, http.MethodPost, "/api/v1/items/ref-a/block", nil), http.StatusForbidden, ErrCodeForbidden)
	if rec := s.do(t, moderatorID, http.MethodPost, "/api/v1/items/ref-a/block", nil); rec.Code != http.StatusOK {
		t.Fatalf("block status = %d, body %s", rec.Code, rec.Body.String())
	}
	wantError(t, s.do(t, 3, http.MethodPost, "/api/v1/items/ref-a/score", ScoreRequest{Value: 1}), http.StatusGone, ErrCodeItemBlocked)
	wantError(t, s.do(t, moderatorID, http.MethodPost, "/api/v1/items/ref-missing/block", nil), http.StatusNotFound, ErrCodeNotFound)
}

func TestDeleteItem(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, 1, http.MethodPost, "/api/v1/items", UploadRequest{Fingerprint: "fp-a", Ref: "ref-a"})

	wantError(t, s.do(t, 2, http.MethodDelete, "/api/v1/items/ref-a", nil), http.StatusForbidden, ErrCodeForbidden)
	if rec := s.do(t, 1, http.MethodDelete, "/api/v1/items/ref-a", nil); rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, body %s", rec.Code, rec.Body.String())
	}
	wantError(t, s.do(t, 1, http.MethodDelete, "/api/v1/items/ref-a", nil), http.StatusNotFound, ErrCodeNotFound)
}

func TestDebugRoutesRequireModerator(t *testing.T) {
	s := newTestServer(t, nil)
	for _, path := range []string{"/api/v1/debug/timings", "/api/v1/debug/collab", "/api/v1/moderation/events"} {
		t.Run(path, func(t *testing.T) {
			wantError(t, s.do(t, 5, http.MethodGet, path, nil), http.StatusForbidden, ErrCodeForbidden)
			if rec := s.do(t, moderatorID, http.MethodGet, path, nil); rec.Code != http.StatusOK {
				t.Errorf("moderator status = %d, body %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)
	for _, path := range []string{"/api/v1/health/live", "/api/v1/health/ready", "/metrics"} {
		t.Run(path, func(t *testing.T) {
			rec := s.do(t, 0, http.MethodGet, path, nil)
			if rec.Code != http.StatusOK {
				t.Errorf("status = %d, want 200", rec.Code)
			}
		})
	}

	rec := s.do(t, 0, http.MethodGet, "/api/v1/health/live", nil)
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header not set")
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

func TestHealthReadyStoreDown(t *testing.T) {
	s := newTestServer(t, nil)
	_ = s.store.Close()
	wantError(t, s.do(t, 0, http.MethodGet, "/api/v1/health/ready", nil), http.StatusServiceUnavailable, ErrCodeServiceUnavailable)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, nil)
	wantError(t, s.do(t, 1, http.MethodGet, "/nope", nil), http.StatusNotFound, ErrCodeNotFound)
}

func TestHTTPRateLimit(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.Security.RateLimitRequests = 2
		c.Security.RateLimitWindow = time.Minute
	})
	for i := 0; i < 2; i++ {
		if rec := s.do(t, 1, http.MethodGet, "/api/v1/users/me/stats", nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	wantError(t, s.do(t, 1, http.MethodGet, "/api/v1/users/me/stats", nil), http.StatusTooManyRequests, ErrCodeTooManyRequests)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &validation.Error{Fields: []validation.FieldError{{Field: "ref", Tag: "opaque", Message: "bad"}}}, 400, ErrCodeValidation},
		{"rate limit", fmt.Errorf("upload: %w", &models.RateLimitError{Action: "upload", Window: time.Hour, Limit: 5, RetryAfter: time.Hour}), 429, ErrCodeRateLimited},
		{"duplicate", &models.DuplicateContentError{Field: "ref"}, 409, ErrCodeDuplicate},
		{"threshold", models.ErrReportThresholdBlocked, 403, ErrCodeUploadBlocked},
		{"forbidden", fmt.Errorf("block: %w", models.ErrForbidden), 403, ErrCodeForbidden},
		{"token", auth.ErrInvalidToken, 401, ErrCodeUnauthorized},
		{"item not found", models.ErrItemNotFound, 404, ErrCodeNotFound},
		{"user not found", models.ErrUserNotFound, 404, ErrCodeNotFound},
		{"blocked", models.ErrItemBlocked, 410, ErrCodeItemBlocked},
		{"score", models.ErrInvalidScore, 400, ErrCodeInvalidScore},
		{"argument", models.ErrInvalidArgument, 400, ErrCodeBadRequest},
		{"unknown", errors.New("disk on fire"), 500, ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, apiErr := mapError(tt.err)
			if status != tt.status || apiErr.Code != tt.code {
				t.Errorf("mapError() = %d %s, want %d %s", status, apiErr.Code, tt.status, tt.code)
			}
			if tt.status == 500 && strings.Contains(apiErr.Message, "disk") {
				t.Errorf("internal error message leaked: %q", apiErr.Message)
			}
		})
	}
}
