// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package models

import (
	"strconv"
	"time"
)

// UserID is the stable external identifier of a user (the bot's chat user id).
type UserID int64

// String returns the decimal form used in logs, casbin subjects and JWT subjects.
func (id UserID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseUserID parses the decimal form produced by String.
func ParseUserID(s string) (UserID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		return 0, ErrInvalidArgument
	}
	return UserID(v), nil
}

// ItemID is the internal identifier of an uploaded image.
type ItemID int64

// Score is the signed value of an interaction between a user and an item.
type Score int

const (
	// ScoreReport is the strong negative recorded for a reporter.
	ScoreReport Score = -2
	// ScoreDislike is an explicit dislike.
	ScoreDislike Score = -1
	// ScoreLike is an explicit like.
	ScoreLike Score = 1
	// ScoreSelfUpload is the owner's automatic affinity for their own upload.
	ScoreSelfUpload Score = 2
)

// Valid reports whether s is one of the four defined scores.
func (s Score) Valid() bool {
	switch s {
	case ScoreReport, ScoreDislike, ScoreLike, ScoreSelfUpload:
		return true
	default:
		return false
	}
}

// IsNegative reports whether the score counts as a dislike.
func (s Score) IsNegative() bool {
	return s < 0
}

// String returns a human-readable name for the score.
func (s Score) String() string {
	switch s {
	case ScoreReport:
		return "report"
	case ScoreDislike:
		return "dislike"
	case ScoreLike:
		return "like"
	case ScoreSelfUpload:
		return "self_upload"
	default:
		return "unknown"
	}
}

// ModerationState is the upload permission of a user.
type ModerationState string

const (
	ModerationNormal        ModerationState = "normal"
	ModerationUploadBlocked ModerationState = "upload_blocked"
)

// Profile is the identity information refreshed on every request.
type Profile struct {
	ID       UserID `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
}

// User is a person known to the system.
type User struct {
	ID              UserID          `json:"id"`
	Name            string          `json:"name"`
	Language        string          `json:"language,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	LastActivity    time.Time       `json:"last_activity"`
	LastNotifiedAt  *time.Time      `json:"last_notified_at,omitempty"`
	ModerationState ModerationState `json:"moderation_state"`
}

// Item is an uploaded image.
type Item struct {
	ID          ItemID    `json:"id"`
	Ref         string    `json:"ref"`
	OwnerID     UserID    `json:"owner_id"`
	Fingerprint string    `json:"fingerprint"`
	CreatedAt   time.Time `json:"created_at"`
	Blocked     bool      `json:"blocked"`
	ReportCount int       `json:"report_count"`
}

// NewItem holds the fields supplied when an item is created.
type NewItem struct {
	OwnerID     UserID
	Fingerprint string
	Ref         string
	CreatedAt   time.Time
}

// Interaction is the single score a user gave an item.
type Interaction struct {
	UserID    UserID    `json:"user_id"`
	ItemID    ItemID    `json:"item_id"`
	Score     Score     `json:"score"`
	CreatedAt time.Time `json:"created_at"`
}

// Report is a complaint filed by a user against an item.
type Report struct {
	UserID    UserID    `json:"user_id"`
	ItemID    ItemID    `json:"item_id"`
	CreatedAt time.Time `json:"created_at"`
}

// ReportSummary is one row of the moderator review queue.
type ReportSummary struct {
	Item            Item      `json:"item"`
	Reports         int       `json:"reports"`
	FirstReportedAt time.Time `json:"first_reported_at"`
	LastReportedAt  time.Time `json:"last_reported_at"`
}

// RecommendationSource names the path that produced a recommendation.
type RecommendationSource string

const (
	SourceCollab    RecommendationSource = "collab"
	SourceRandom    RecommendationSource = "random"
	SourceColdStart RecommendationSource = "cold_start"
)

// Recommendation is an item offered to a user.
type Recommendation struct {
	ItemID ItemID `json:"item_id"`

	// Ref and OwnerID are filled when the recommendation is served.
	Ref     string `json:"ref,omitempty"`
	OwnerID UserID `json:"owner_id,omitempty"`

	// TasteSimilarity is the predicted affinity; 0 for heuristic sources.
	TasteSimilarity float64              `json:"taste_similarity"`
	Source          RecommendationSource `json:"source"`
}

// UserStats summarizes a user's activity.
type UserStats struct {
	UploadedCount   int             `json:"uploaded_count"`
	LikesGiven      int             `json:"likes_given"`
	LikesReceived   int             `json:"likes_received"`
	ModerationState ModerationState `json:"moderation_state"`
}

// EventType names a domain event.
type EventType string

const (
	EventItemUploaded       EventType = "item.uploaded"
	EventItemDeleted        EventType = "item.deleted"
	EventInteractionScored  EventType = "interaction.scored"
	EventItemReported       EventType = "item.reported"
	EventItemBlocked        EventType = "item.blocked"
	EventUserUploadBlocked  EventType = "user.upload_blocked"
	EventNotificationPushed EventType = "notification.pushed"
)

// AuditEvent is the durable record of a state-changing operation.
type AuditEvent struct {
	ID         string            `json:"id"`
	Type       EventType         `json:"type"`
	ActorID    UserID            `json:"actor_id"`
	ItemID     ItemID            `json:"item_id,omitempty"`
	Score      Score             `json:"score,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
	Details    map[string]string `json:"details,omitempty"`
}

// Actor is the authenticated caller of a privileged operation.
type Actor struct {
	ID    UserID   `json:"id"`
	Roles []string `json:"roles,omitempty"`
}
