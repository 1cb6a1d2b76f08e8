// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDuplicateContent matches every *DuplicateContentError.
	ErrDuplicateContent = errors.New("duplicate content")

	// ErrRateLimited matches every *RateLimitError.
	ErrRateLimited = errors.New("rate limited")

	// ErrReportThresholdBlocked is returned to users whose reports against other
	// users exceeded the escalation threshold. Only moderation resolves it.
	ErrReportThresholdBlocked = errors.New("uploads blocked pending report review")

	ErrItemNotFound    = errors.New("item not found")
	ErrItemBlocked     = errors.New("item is blocked")
	ErrUserNotFound    = errors.New("user not found")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidScore    = errors.New("invalid score")
	ErrInvalidArgument = errors.New("invalid argument")
)

// DuplicateContentError reports a fingerprint or reference collision.
type DuplicateContentError struct {
	// Field is "fingerprint" or "ref".
	Field string

	// Existing is the item already holding the value, when known.
	Existing *Item
}

func (e *DuplicateContentError) Error() string {
	if e.Existing != nil {
		return fmt.Sprintf("duplicate content: %s matches item %d", e.Field, e.Existing.ID)
	}
	return "duplicate content: " + e.Field
}

// Is lets errors.Is(err, ErrDuplicateContent) match.
func (e *DuplicateContentError) Is(target error) bool {
	return target == ErrDuplicateContent
}

// RateLimitError reports a throttled upload or report.
type RateLimitError struct {
	// Action is "upload" or "report".
	Action string

	// Window is the sliding window whose cap was reached.
	Window time.Duration

	// Limit is the cap that applied.
	Limit int

	// RetryAfter is a conservative wait before the window admits another action.
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s limit of %d per %s reached", e.Action, e.Limit, e.Window)
}

// Is lets errors.Is(err, ErrRateLimited) match.
func (e *RateLimitError) Is(target error) bool {
	return target == ErrRateLimited
}
