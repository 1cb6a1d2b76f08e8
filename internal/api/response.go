// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package api

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/artswap/internal/auth"
	"github.com/tomtom215/artswap/internal/logging"
	"github.com/tomtom215/artswap/internal/models"
	"github.com/tomtom215/artswap/internal/validation"
)

// Error codes for API responses
const (
	ErrCodeBadRequest         = "BAD_REQUEST"
	ErrCodeValidation         = "VALIDATION_ERROR"
	ErrCodeInvalidScore       = "INVALID_SCORE"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeUploadBlocked      = "UPLOAD_BLOCKED"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeDuplicate          = "DUPLICATE_CONTENT"
	ErrCodeItemBlocked        = "ITEM_BLOCKED"
	ErrCodeRateLimited        = "RATE_LIMITED"
	ErrCodeTooManyRequests    = "TOO_MANY_REQUESTS"
	ErrCodeInternal           = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
)

// maxBodyBytes bounds request bodies; every body is a small JSON object.
const maxBodyBytes = 64 << 10

func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Error().Err(err).Msg("Failed to write JSON response")
	}
}

func respondSuccess(w http.ResponseWriter, status int, data interface{}, start time.Time) {
	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(start).Milliseconds(),
		},
	})
}

func respondError(w http.ResponseWriter, status int, apiErr *models.APIError) {
	respondJSON(w, status, &models.APIResponse{
		Status: "error",
		Metadata: models.Metadata{
			Timestamp: time.Now().UTC(),
		},
		Error: apiErr,
	})
}

// writeError maps a domain error onto a status code and envelope. Unknown
// errors are logged and reported as 500 without their message.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, apiErr := mapError(err)
	if status == http.StatusTooManyRequests {
		var rl *models.RateLimitError
		if errors.As(err, &rl) && rl.RetryAfter > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(rl.RetryAfter.Seconds()))))
		}
	}

	event := logging.Ctx(r.Context()).Debug()
	if status >= http.StatusInternalServerError {
		event = logging.Ctx(r.Context()).Error()
	}
	event.Err(err).
		Str("code", apiErr.Code).
		Int("status", status).
		Str("path", sanitizeLogValue(r.URL.Path)).
		Msg("API error")

	respondError(w, status, apiErr)
}

func mapError(err error) (int, *models.APIError) {
	var (
		verr *validation.Error
		rl   *models.RateLimitError
		dup  *models.DuplicateContentError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.ToAPIError()
	case errors.As(err, &rl):
		return http.StatusTooManyRequests, &models.APIError{
			Code:    ErrCodeRateLimited,
			Message: rl.Error(),
			Details: map[string]interface{}{
				"action":              rl.Action,
				"limit":               rl.Limit,
				"window_seconds":      int64(rl.Window.Seconds()),
				"retry_after_seconds": int64(math.Ceil(rl.RetryAfter.Seconds())),
			},
		}
	case errors.As(err, &dup):
		details := map[string]interface{}{"field": dup.Field}
		if dup.Existing != nil {
			details["ref"] = dup.Existing.Ref
		}
		return http.StatusConflict, &models.APIError{Code: ErrCodeDuplicate, Message: "content already uploaded", Details: details}
	case errors.Is(err, models.ErrReportThresholdBlocked):
		return http.StatusForbidden, &models.APIError{Code: ErrCodeUploadBlocked, Message: models.ErrReportThresholdBlocked.Error()}
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden, &models.APIError{Code: ErrCodeForbidden, Message: "forbidden"}
	case errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized, &models.APIError{Code: ErrCodeUnauthorized, Message: "missing or invalid bearer token"}
	case errors.Is(err, models.ErrItemNotFound):
		return http.StatusNotFound, &models.APIError{Code: ErrCodeNotFound, Message: "item not found"}
	case errors.Is(err, models.ErrUserNotFound):
		return http.StatusNotFound, &models.APIError{Code: ErrCodeNotFound, Message: "user not found"}
	case errors.Is(err, models.ErrItemBlocked):
		return http.StatusGone, &models.APIError{Code: ErrCodeItemBlocked, Message: "item is blocked"}
	case errors.Is(err, models.ErrInvalidScore):
		return http.StatusBadRequest, &models.APIError{Code: ErrCodeInvalidScore, Message: "value must be 1 (like) or -1 (dislike)"}
	case errors.Is(err, models.ErrInvalidArgument):
		return http.StatusBadRequest, &models.APIError{Code: ErrCodeBadRequest, Message: err.Error()}
	default:
		return http.StatusInternalServerError, &models.APIError{Code: ErrCodeInternal, Message: "internal server error"}
	}
}

// decodeJSON reads a bounded JSON body into dst and validates it.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &validation.Error{Fields: []validation.FieldError{{
			Field:   "body",
			Tag:     "json",
			Message: "request body must be a JSON object: " + err.Error(),
		}}}
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		return verr
	}
	return nil
}

// sanitizeLogValue strips control characters from client-supplied values.
func sanitizeLogValue(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
