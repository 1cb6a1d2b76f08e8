// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

// Package auth authenticates API callers with HS256 bearer tokens.
//
// The subject claim is the decimal user id. Display name and language travel
// in the token so every authenticated request can refresh the user record
// without a separate profile call. Roles are passed to the authorization
// layer as-is.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tomtom215/artswap/internal/config"
	"github.com/tomtom215/artswap/internal/models"
)

// ErrInvalidToken is returned for any token that fails validation.
var ErrInvalidToken = errors.New("invalid token")

// Claims are the JWT claims issued to bot users.
type Claims struct {
	Name  string   `json:"name,omitempty"`
	Lang  string   `json:"lang,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Profile returns the profile carried by the token.
func (c *Claims) Profile() (models.Profile, error) {
	id, err := models.ParseUserID(c.Subject)
	if err != nil {
		return models.Profile{}, fmt.Errorf("%w: subject %q", ErrInvalidToken, c.Subject)
	}
	return models.Profile{ID: id, Name: c.Name, Language: c.Lang}, nil
}

// JWTManager handles JWT token creation and validation
type JWTManager struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTManager creates a token manager from the security configuration.
func NewJWTManager(cfg config.SecurityConfig) (*JWTManager, error) {
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required but was empty")
	}
	return &JWTManager{
		secret: []byte(cfg.JWTSecret),
		ttl:    cfg.TokenTTL,
		now:    time.Now,
	}, nil
}

// GenerateToken signs a token for the profile with the given roles.
func (m *JWTManager) GenerateToken(p models.Profile, roles ...string) (string, error) {
	now := m.now()
	claims := &Claims{
		Name:  p.Name,
		Lang:  p.Language,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.ID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// ValidateToken verifies signature, algorithm and time claims. Only HS256 is
// accepted.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if _, err := claims.Profile(); err != nil {
		return nil, err
	}
	return claims, nil
}
