// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

// Package validation wraps a go-playground/validator singleton used for API
// request bodies and configuration sections.
//
// Field names in messages come from the json tag (falling back to koanf, then
// the Go name) so clients see the names they sent:
//
//	type scoreRequest struct {
//	    Value int `json:"value" validate:"score"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    ...
//	}
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/artswap/internal/models"
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// FieldError is one failed rule.
type FieldError struct {
	Field   string
	Tag     string
	Param   string
	Message string
}

func (e FieldError) Error() string { return e.Message }

// Error collects the failed rules of one struct.
type Error struct {
	Fields []FieldError
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	msgs := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		msgs[i] = f.Message
	}
	return strings.Join(msgs, "; ")
}

// ToAPIError converts to the VALIDATION_ERROR envelope.
func (e *Error) ToAPIError() *models.APIError {
	apiErr := &models.APIError{Code: "VALIDATION_ERROR", Message: e.Error()}
	switch len(e.Fields) {
	case 0:
		apiErr.Message = "Validation failed"
	case 1:
		apiErr.Details = map[string]interface{}{
			"field": e.Fields[0].Field,
			"tag":   e.Fields[0].Tag,
		}
	default:
		fields := make([]map[string]interface{}, len(e.Fields))
		for i, f := range e.Fields {
			fields[i] = map[string]interface{}{"field": f.Field, "tag": f.Tag, "message": f.Message}
		}
		apiErr.Details = map[string]interface{}{"fields": fields}
	}
	return apiErr
}

// GetValidator returns the shared validator with the custom rules registered.
func GetValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(fieldName)

		// score: one of the four interaction values.
		mustRegister("score", func(fl validator.FieldLevel) bool {
			return models.Score(fl.Field().Int()).Valid()
		})
		// userscore: a value a user may submit directly (like or dislike).
		mustRegister("userscore", func(fl validator.FieldLevel) bool {
			s := models.Score(fl.Field().Int())
			return s == models.ScoreLike || s == models.ScoreDislike
		})
		// opaque: non-empty printable token without whitespace.
		mustRegister("opaque", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			if s == "" {
				return false
			}
			for _, r := range s {
				if unicode.IsSpace(r) || !unicode.IsPrint(r) {
					return false
				}
			}
			return true
		})
	})
	return validate
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("validation: register %s: %v", tag, err))
	}
}

func fieldName(f reflect.StructField) string {
	for _, key := range []string{"json", "koanf"} {
		name := strings.SplitN(f.Tag.Get(key), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name != "" {
			return name
		}
	}
	return f.Name
}

// ValidateStruct returns nil or *Error.
func ValidateStruct(s interface{}) *Error {
	err := GetValidator().Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Fields: []FieldError{{Field: "unknown", Tag: "unknown", Message: err.Error()}}}
	}

	out := &Error{Fields: make([]FieldError, len(verrs))}
	for i, fe := range verrs {
		out.Fields[i] = FieldError{
			Field:   namespace(fe),
			Tag:     fe.Tag(),
			Param:   fe.Param(),
			Message: translateError(fe),
		}
	}
	return out
}

// namespace drops the root struct name: "Config.abuse.report_daily" -> "abuse.report_daily".
func namespace(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

var messageTemplates = map[string]string{
	"required":  "%s is required",
	"score":     "%s must be one of -2, -1, 1, 2",
	"userscore": "%s must be 1 (like) or -1 (dislike)",
	"opaque":    "%s must be a non-empty token without whitespace",
	"url":       "%s must be a valid URL",
}

var paramTemplates = map[string]string{
	"oneof":       "%s must be one of: %s",
	"gte":         "%s must be greater than or equal to %s",
	"lte":         "%s must be less than or equal to %s",
	"gt":          "%s must be greater than %s",
	"lt":          "%s must be less than %s",
	"required_if": "%s is required when %s",
	"gtefield":    "%s must be greater than or equal to %s",
	"ltfield":     "%s must be less than %s",
}

func translateError(fe validator.FieldError) string {
	field := namespace(fe)
	if tmpl, ok := messageTemplates[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field)
	}
	if tmpl, ok := paramTemplates[fe.Tag()]; ok {
		return fmt.Sprintf(tmpl, field, fe.Param())
	}

	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "min":
		if isString {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}
