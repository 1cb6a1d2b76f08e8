// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/tomtom215/artswap/internal/logging"
	"github.com/tomtom215/artswap/internal/models"
)

type contextKey string

const (
	claimsContextKey contextKey = "claims"
)

// ErrorWriter writes an authentication failure response.
type ErrorWriter func(w http.ResponseWriter, r *http.Request, err error)

// Middleware authenticates requests carrying "Authorization: Bearer <jwt>".
type Middleware struct {
	jwt     *JWTManager
	onError ErrorWriter
}

// NewMiddleware creates the middleware. onError may be nil, in which case
// failures are written with http.Error.
func NewMiddleware(m *JWTManager, onError ErrorWriter) *Middleware {
	if onError == nil {
		onError = func(w http.ResponseWriter, _ *http.Request, _ error) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		}
	}
	return &Middleware{jwt: m, onError: onError}
}

// Authenticate rejects requests without a valid token and stores the claims
// in the request context.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			m.onError(w, r, ErrInvalidToken)
			return
		}
		claims, err := m.jwt.ValidateToken(token)
		if err != nil {
			logging.Ctx(r.Context()).Debug().Err(err).Msg("Rejected bearer token")
			m.onError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// WithClaims returns ctx carrying claims.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// GetClaims retrieves the Claims from the request context.
func GetClaims(ctx context.Context) *Claims {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	if !ok {
		return nil
	}
	return claims
}

// GetActor returns the authenticated caller, or false when the context holds
// no valid claims.
func GetActor(ctx context.Context) (models.Actor, bool) {
	claims := GetClaims(ctx)
	if claims == nil {
		return models.Actor{}, false
	}
	p, err := claims.Profile()
	if err != nil {
		return models.Actor{}, false
	}
	return models.Actor{ID: p.ID, Roles: claims.Roles}, true
}
