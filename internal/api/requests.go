// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package api

import (
	"net/http"
	"strconv"

	"github.com/tomtom215/artswap/internal/validation"
)

// UploadRequest is the body of POST /items.
type UploadRequest struct {
	Fingerprint string `json:"fingerprint" validate:"opaque,max=256"`
	Ref         string `json:"ref" validate:"opaque,max=512"`
}

// ScoreRequest is the body of POST /items/{ref}/score.
type ScoreRequest struct {
	Value int `json:"value" validate:"userscore"`
}

// ListRequest holds the query parameters of the moderator list endpoints.
// Zero means the server default.
type ListRequest struct {
	Limit int `json:"limit" validate:"gte=0,lte=500"`
}

func parseListRequest(r *http.Request) (ListRequest, error) {
	var req ListRequest
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return req, &validation.Error{Fields: []validation.FieldError{{
				Field:   "limit",
				Tag:     "number",
				Message: "limit must be an integer",
			}}}
		}
		req.Limit = n
	}
	if verr := validation.ValidateStruct(&req); verr != nil {
		return req, verr
	}
	return req, nil
}
