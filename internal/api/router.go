// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

// Package api exposes the recommendation and moderation core over HTTP.
//
// Every response uses the models.APIResponse envelope. Routes under
// /api/v1 other than health require a bearer JWT; moderator routes are
// additionally checked by the core's casbin authorizer.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/artswap/internal/auth"
	"github.com/tomtom215/artswap/internal/models"
)

// Router wires handlers and middleware into a chi mux.
type Router struct {
	handler *Handler
	auth    *auth.Middleware
	cfg     MiddlewareConfig
}

// NewRouter creates a Router. jwt validates bearer tokens.
func NewRouter(engine Engine, jwt *auth.JWTManager, cfg MiddlewareConfig) *Router {
	return &Router{
		handler: NewHandler(engine),
		auth:    auth.NewMiddleware(jwt, writeError),
		cfg:     cfg,
	}
}

// Setup builds the HTTP handler.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestIDWithLogging())
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(CORS(router.cfg))
	r.Use(SecurityHeaders)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusNotFound, &models.APIError{Code: ErrCodeNotFound, Message: "route not found"})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, &models.APIError{Code: "METHOD_NOT_ALLOWED", Message: "method not allowed"})
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(RateLimit(router.cfg))
		r.Use(PrometheusMetrics)
		r.Use(router.auth.Authenticate)
		r.Use(Touch(router.handler.engine))

		r.Post("/items", router.handler.Upload)
		r.Delete("/items/{ref}", router.handler.DeleteItem)
		r.Post("/items/{ref}/score", router.handler.Score)
		r.Post("/items/{ref}/report", router.handler.Report)
		r.Post("/items/{ref}/block", router.handler.Block)

		r.Get("/recommendations/next", router.handler.NextRecommendation)
		r.Get("/users/me/stats", router.handler.UserStats)

		r.Get("/moderation/reports", router.handler.PendingReports)
		r.Get("/moderation/events", router.handler.AuditLog)

		r.Get("/debug/timings", router.handler.Timings)
		r.Get("/debug/collab", router.handler.Collab)
	})

	return r
}
