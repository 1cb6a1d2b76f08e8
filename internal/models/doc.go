// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

/*
Package models defines the data structures shared by every ArtSwap component.

Key Components:

  - User, Profile: people who upload, score and report images
  - Item: an uploaded image, identified by an opaque external reference
  - Interaction: the single signed score a user gave an item
  - Report, ReportSummary: complaints and the moderator review queue
  - Recommendation: an item offered to a user with its taste similarity
  - AuditEvent: durable record of every state-changing operation
  - APIResponse: the JSON envelope used by the HTTP adapter

Errors returned across package boundaries live in errors.go. Callers test them
with errors.Is and errors.As; store drivers translate their own constraint
violations into these values.
*/
package models
