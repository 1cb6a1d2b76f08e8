// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

// Package authz decides moderator permissions with Casbin RBAC.
//
// The model and base policy are embedded. Role assignments come from two
// places: user ids listed in configuration (security.moderators,
// security.admins), loaded as grouping policies at startup, and roles carried
// in the caller's token, checked by EnforceWithRoles.
//
//	p, moderator, items, block
//	p, moderator, reports, review
//	g, admin, moderator
package authz

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/tomtom215/artswap/internal/models"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Roles.
const (
	RoleModerator = "moderator"
	RoleAdmin     = "admin"
)

// Objects and actions.
const (
	ObjectItems   = "items"
	ObjectReports = "reports"
	ObjectEvents  = "events"
	ObjectDebug   = "debug"

	ActionBlock  = "block"
	ActionReview = "review"
	ActionRead   = "read"
)

// Config lists user ids that hold a role regardless of their token.
type Config struct {
	Moderators []string
	Admins     []string
}

// Enforcer wraps a synced Casbin enforcer.
type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

// NewEnforcer loads the embedded model and policy and assigns configured roles.
func NewEnforcer(cfg Config) (*Enforcer, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}
	if err := loadEmbeddedPolicy(enforcer, embeddedPolicy); err != nil {
		return nil, err
	}

	e := &Enforcer{enforcer: enforcer}
	for _, id := range cfg.Moderators {
		if _, err := e.AddRoleForUser(id, RoleModerator); err != nil {
			return nil, err
		}
	}
	for _, id := range cfg.Admins {
		if _, err := e.AddRoleForUser(id, RoleAdmin); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// loadEmbeddedPolicy parses policy CSV lines of the form "p, sub, obj, act"
// and "g, user, role".
func loadEmbeddedPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch rule := parts[1:]; parts[0] {
		case "p":
			if len(rule) != 3 {
				return fmt.Errorf("malformed policy line %q", line)
			}
			if _, err := enforcer.AddPolicy(rule[0], rule[1], rule[2]); err != nil {
				return fmt.Errorf("failed to add policy %v: %w", rule, err)
			}
		case "g":
			if len(rule) != 2 {
				return fmt.Errorf("malformed grouping line %q", line)
			}
			if _, err := enforcer.AddGroupingPolicy(rule[0], rule[1]); err != nil {
				return fmt.Errorf("failed to add grouping policy %v: %w", rule, err)
			}
		default:
			return fmt.Errorf("unknown policy type in %q", line)
		}
	}
	return nil
}

// Enforce checks if the subject can perform the action on the object.
func (e *Enforcer) Enforce(subject, object, action string) (bool, error) {
	allowed, err := e.enforcer.Enforce(subject, object, action)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}
	return allowed, nil
}

// EnforceWithRoles checks the subject and then each token role.
func (e *Enforcer) EnforceWithRoles(subject string, roles []string, object, action string) (bool, error) {
	if allowed, err := e.Enforce(subject, object, action); err != nil || allowed {
		return allowed, err
	}
	for _, role := range roles {
		if allowed, err := e.Enforce(role, object, action); err != nil || allowed {
			return allowed, err
		}
	}
	return false, nil
}

// Authorize returns models.ErrForbidden when actor may not act on object.
func (e *Enforcer) Authorize(actor models.Actor, object, action string) error {
	allowed, err := e.EnforceWithRoles(actor.ID.String(), actor.Roles, object, action)
	if err != nil {
		return err
	}
	if !allowed {
		return fmt.Errorf("%s %s: %w", action, object, models.ErrForbidden)
	}
	return nil
}

// AddRoleForUser assigns a role to a user id.
func (e *Enforcer) AddRoleForUser(user, role string) (bool, error) {
	added, err := e.enforcer.AddGroupingPolicy(user, role)
	if err != nil {
		return false, fmt.Errorf("failed to add role: %w", err)
	}
	return added, nil
}

// RolesForUser returns the direct roles of a user id.
func (e *Enforcer) RolesForUser(user string) ([]string, error) {
	return e.enforcer.GetRolesForUser(user)
}
