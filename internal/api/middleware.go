// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/tomtom215/artswap/internal/auth"
	"github.com/tomtom215/artswap/internal/config"
	"github.com/tomtom215/artswap/internal/logging"
	"github.com/tomtom215/artswap/internal/metrics"
	"github.com/tomtom215/artswap/internal/models"
)

// MiddlewareConfig holds configuration for the global middleware stack.
type MiddlewareConfig struct {
	CORSAllowedOrigins []string
	CORSMaxAge         int // seconds

	// RateLimitRequests of 0 disables the per-IP limiter.
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// MiddlewareConfigFrom builds the middleware settings from the security section.
func MiddlewareConfigFrom(cfg config.SecurityConfig) MiddlewareConfig {
	return MiddlewareConfig{
		CORSAllowedOrigins: cfg.CORSOrigins,
		CORSMaxAge:         86400,
		RateLimitRequests:  cfg.RateLimitRequests,
		RateLimitWindow:    cfg.RateLimitWindow,
	}
}

// CORS returns a go-chi/cors handler. Origins default to none, so browsers
// are refused until origins are configured explicitly.
func CORS(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           cfg.CORSMaxAge,
	})
}

// RateLimit returns an httprate per-IP limiter answering with the JSON envelope.
func RateLimit(cfg MiddlewareConfig) func(http.Handler) http.Handler {
	if cfg.RateLimitRequests <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		cfg.RateLimitRequests,
		cfg.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.APIRateLimitHits.WithLabelValues(routePattern(r)).Inc()
			respondError(w, http.StatusTooManyRequests, &models.APIError{
				Code:    ErrCodeTooManyRequests,
				Message: "too many requests",
			})
		}),
	)
}

// RequestIDWithLogging adds request and correlation IDs to the context and
// attaches a request-scoped logger.
func RequestIDWithLogging() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := r.Header.Get(chimiddleware.RequestIDHeader)
			if requestID == "" || len(requestID) > 128 {
				requestID = logging.GenerateRequestID()
			}
			w.Header().Set(chimiddleware.RequestIDHeader, requestID)

			ctx := logging.ContextWithRequestID(r.Context(), requestID)
			ctx = logging.ContextWithNewCorrelationID(ctx)
			logger := logging.With().
				Str("request_id", requestID).
				Str("correlation_id", logging.CorrelationIDFromContext(ctx)).
				Logger()
			ctx = logging.ContextWithLogger(ctx, logger)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SecurityHeaders sets the headers every JSON response carries. HSTS is only
// sent over TLS or behind a TLS-terminating proxy.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

// PrometheusMetrics records request counts, latency and in-flight requests
// labelled by route pattern.
func PrometheusMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RecordAPIRequest(r.Method, routePattern(r), strconv.Itoa(status), time.Since(start))
	})
}

// Touch refreshes the caller's profile and last activity on every
// authenticated request. Failures are logged; the request proceeds.
func Touch(engine Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if claims := auth.GetClaims(r.Context()); claims != nil {
				if p, err := claims.Profile(); err == nil {
					if err := engine.Touch(r.Context(), p); err != nil {
						logging.Ctx(r.Context()).Warn().Err(err).Stringer("user_id", p.ID).Msg("Touch failed")
					}
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// routePattern returns the matched chi pattern so metrics labels stay bounded.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
