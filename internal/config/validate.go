// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package config

import (
	"fmt"
	"strconv"
	"time"

	"github.com/tomtom215/artswap/internal/logging"
	"github.com/tomtom215/artswap/internal/validation"
)

// minJWTSecretLength is the HS256 key length floor.
const minJWTSecretLength = 32

// Validate checks struct rules first, then cross-field rules.
func (c *Config) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return verr
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if err := c.validateSecurity(); err != nil {
		return err
	}
	if err := c.validateAbuse(); err != nil {
		return err
	}
	return c.validateNotify()
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("LOG_LEVEL %q is not a known level", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateSecurity() error {
	if len(c.Security.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minJWTSecretLength)
	}
	for _, list := range [][]string{c.Security.Moderators, c.Security.Admins} {
		for _, id := range list {
			if v, err := strconv.ParseInt(id, 10, 64); err != nil || v <= 0 {
				return fmt.Errorf("moderator/admin id %q is not a positive user id", id)
			}
		}
	}
	return nil
}

// validateAbuse keeps the nested upload windows coherent.
func (c *Config) validateAbuse() error {
	a := c.Abuse
	if a.UploadShortWindow >= 24*time.Hour {
		return fmt.Errorf("abuse.upload_short_window (%s) must be shorter than one day", a.UploadShortWindow)
	}
	if a.UploadThrottledDailyCap > a.UploadDailyCap {
		return fmt.Errorf("abuse.upload_throttled_daily_cap (%d) must not exceed abuse.upload_daily_cap (%d)",
			a.UploadThrottledDailyCap, a.UploadDailyCap)
	}
	if a.EscalationShortWindow >= a.EscalationMonthlyWindow {
		return fmt.Errorf("abuse.escalation_short_window must be shorter than abuse.escalation_monthly_window")
	}
	return nil
}

func (c *Config) validateNotify() error {
	if c.Notify.Enabled && c.Notify.Notifier == "webhook" && c.Notify.WebhookURL == "" {
		return fmt.Errorf("NOTIFY_WEBHOOK_URL is required when notify.notifier=webhook")
	}
	return nil
}
