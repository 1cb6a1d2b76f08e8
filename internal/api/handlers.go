// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/artswap/internal/auth"
	"github.com/tomtom215/artswap/internal/core"
	"github.com/tomtom215/artswap/internal/metrics"
	"github.com/tomtom215/artswap/internal/models"
	"github.com/tomtom215/artswap/internal/moderation"
)

// Engine is the part of core.Core the HTTP adapter calls.
type Engine interface {
	Upload(ctx context.Context, user models.UserID, fingerprint, ref string) (*models.Item, error)
	DeleteItem(ctx context.Context, user models.UserID, ref string) error
	NextRecommendation(ctx context.Context, user models.UserID) (*models.Recommendation, error)
	Score(ctx context.Context, user models.UserID, ref string, value models.Score) error
	Report(ctx context.Context, user models.UserID, ref string) (moderation.ReportOutcome, error)
	Block(ctx context.Context, actor models.Actor, ref string) error
	UserStats(ctx context.Context, user models.UserID) (models.UserStats, error)
	Touch(ctx context.Context, p models.Profile) error
	PendingReports(ctx context.Context, actor models.Actor, limit int) ([]models.ReportSummary, error)
	AuditLog(ctx context.Context, actor models.Actor, limit int) ([]models.AuditEvent, error)
	Timings(actor models.Actor) ([]metrics.TimingSummary, error)
	Collab(actor models.Actor) (core.CollabReport, error)
	Ready(ctx context.Context) error
}

// Handler serves the ArtSwap HTTP API.
type Handler struct {
	engine    Engine
	startTime time.Time
}

// NewHandler creates a Handler backed by engine.
func NewHandler(engine Engine) *Handler {
	return &Handler{engine: engine, startTime: time.Now()}
}

// actor returns the authenticated caller. The auth middleware guarantees
// valid claims on every route that calls it.
func actor(r *http.Request) (models.Actor, error) {
	a, ok := auth.GetActor(r.Context())
	if !ok {
		return models.Actor{}, auth.ErrInvalidToken
	}
	return a, nil
}

// Upload handles POST /api/v1/items.
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req UploadRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	item, err := h.engine.Upload(r.Context(), a.ID, req.Fingerprint, req.Ref)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusCreated, item, start)
}

// DeleteItem handles DELETE /api/v1/items/{ref}.
func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.engine.DeleteItem(r.Context(), a.ID, chi.URLParam(r, "ref")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// NextRecommendation handles GET /api/v1/recommendations/next. An empty
// candidate pool answers 204.
func (h *Handler) NextRecommendation(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rec, err := h.engine.NextRecommendation(r.Context(), a.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rec == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	respondSuccess(w, http.StatusOK, rec, start)
}

// Score handles POST /api/v1/items/{ref}/score.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req ScoreRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	ref := chi.URLParam(r, "ref")
	if err := h.engine.Score(r.Context(), a.ID, ref, models.Score(req.Value)); err != nil {
		writeError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{"ref": ref, "value": req.Value}, start)
}

// Report handles POST /api/v1/items/{ref}/report. Repeat reports succeed
// with duplicate=true.
func (h *Handler) Report(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out, err := h.engine.Report(r.Context(), a.ID, chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	status := http.StatusOK
	if out.Recorded {
		status = http.StatusCreated
	}
	respondSuccess(w, status, out, start)
}

// Block handles POST /api/v1/items/{ref}/block.
func (h *Handler) Block(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	ref := chi.URLParam(r, "ref")
	if err := h.engine.Block(r.Context(), a, ref); err != nil {
		writeError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, map[string]interface{}{"ref": ref, "blocked": true}, start)
}

// UserStats handles GET /api/v1/users/me/stats.
func (h *Handler) UserStats(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	stats, err := h.engine.UserStats(r.Context(), a.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, stats, start)
}

// PendingReports handles GET /api/v1/moderation/reports.
func (h *Handler) PendingReports(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := parseListRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	rows, err := h.engine.PendingReports(r.Context(), a, req.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rows == nil {
		rows = []models.ReportSummary{}
	}
	respondSuccess(w, http.StatusOK, rows, start)
}

// AuditLog handles GET /api/v1/moderation/events.
func (h *Handler) AuditLog(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := parseListRequest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	events, err := h.engine.AuditLog(r.Context(), a, req.Limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if events == nil {
		events = []models.AuditEvent{}
	}
	respondSuccess(w, http.StatusOK, events, start)
}

// Timings handles GET /api/v1/debug/timings.
func (h *Handler) Timings(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	summaries, err := h.engine.Timings(a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, summaries, start)
}

// Collab handles GET /api/v1/debug/collab.
func (h *Handler) Collab(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	a, err := actor(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := h.engine.Collab(a)
	if err != nil {
		writeError(w, r, err)
		return
	}
	respondSuccess(w, http.StatusOK, report, start)
}
