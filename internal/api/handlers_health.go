// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package api

import (
	"context"
	"net/http"
	"time"

	"github.com/tomtom215/artswap/internal/logging"
	"github.com/tomtom215/artswap/internal/models"
)

const readyTimeout = 2 * time.Second

// HealthStatus is the body of the health endpoints.
type HealthStatus struct {
	Status        string  `json:"status"`
	StoreHealthy  bool    `json:"store_healthy"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// HealthLive reports that the process is serving requests.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, HealthStatus{
		Status:        "alive",
		StoreHealthy:  true,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}, time.Now())
}

// HealthReady pings the store; a failed ping answers 503 so load balancers
// stop routing to this instance.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	if err := h.engine.Ready(ctx); err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Msg("Readiness check failed")
		respondError(w, http.StatusServiceUnavailable, &models.APIError{
			Code:    ErrCodeServiceUnavailable,
			Message: "store unavailable",
		})
		return
	}
	respondSuccess(w, http.StatusOK, HealthStatus{
		Status:        "ready",
		StoreHealthy:  true,
		UptimeSeconds: time.Since(h.startTime).Seconds(),
	}, time.Now())
}
