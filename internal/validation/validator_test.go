// ArtSwap - Peer Image Recommendation and Moderation Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/artswap

package validation

import (
	"strings"
	"testing"
)

type uploadBody struct {
	Fingerprint string `json:"fingerprint" validate:"opaque,max=256"`
	Ref         string `json:"ref" validate:"opaque,max=512"`
}

type scoreBody struct {
	Value int `json:"value" validate:"userscore"`
}

type section struct {
	Cap    int    `koanf:"cap" validate:"gte=1"`
	Mode   string `koanf:"mode" validate:"oneof=linear tiered"`
	Nested struct {
		Limit int `koanf:"limit" validate:"min=1,max=10"`
	} `koanf:"nested"`
}

func TestGetValidatorSingleton(t *testing.T) {
	if GetValidator() != GetValidator() {
		t.Error("GetValidator() returned different instances")
	}
}

func TestValidateStruct(t *testing.T) {
	tests := []struct {
		name       string
		input      interface{}
		wantFields []string
	}{
		{"valid upload", &uploadBody{Fingerprint: "abc123", Ref: "AgACAgIAAxkBAAI"}, nil},
		{"empty fingerprint", &uploadBody{Ref: "r"}, []string{"fingerprint"}},
		{"ref with space", &uploadBody{Fingerprint: "f", Ref: "a b"}, []string{"ref"}},
		{"like", &scoreBody{Value: 1}, nil},
		{"dislike", &scoreBody{Value: -1}, nil},
		{"report value not user submittable", &scoreBody{Value: -2}, []string{"value"}},
		{"zero", &scoreBody{Value: 0}, []string{"value"}},
		{"section errors use koanf names", &section{Cap: 0, Mode: "cubic"}, []string{"cap", "mode", "nested.limit"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verr := ValidateStruct(tt.input)
			if len(tt.wantFields) == 0 {
				if verr != nil {
					t.Fatalf("ValidateStruct() = %v, want nil", verr)
				}
				return
			}
			if verr == nil {
				t.Fatalf("ValidateStruct() = nil, want errors on %v", tt.wantFields)
			}
			if len(verr.Fields) != len(tt.wantFields) {
				t.Fatalf("fields = %+v, want %v", verr.Fields, tt.wantFields)
			}
			for i, want := range tt.wantFields {
				if verr.Fields[i].Field != want {
					t.Errorf("Fields[%d].Field = %q, want %q", i, verr.Fields[i].Field, want)
				}
			}
		})
	}
}

func TestToAPIError(t *testing.T) {
	single := ValidateStruct(&scoreBody{Value: 3}).ToAPIError()
	if single.Code != "VALIDATION_ERROR" {
		t.Errorf("Code = %q", single.Code)
	}
	if !strings.Contains(single.Message, "value must be 1 (like) or -1 (dislike)") {
		t.Errorf("Message = %q", single.Message)
	}
	if single.Details["field"] != "value" {
		t.Errorf("Details = %v", single.Details)
	}

	multi := ValidateStruct(&section{}).ToAPIError()
	fields, ok := multi.Details["fields"].([]map[string]interface{})
	if !ok || len(fields) != 3 {
		t.Errorf("multi Details = %v", multi.Details)
	}

	if got := (&Error{}).ToAPIError().Message; got != "Validation failed" {
		t.Errorf("empty Message = %q", got)
	}
}

func TestTranslateMinMax(t *testing.T) {
	type bounded struct {
		Name string `json:"name" validate:"min=3"`
		N    int    `json:"n" validate:"max=2"`
	}
	verr := ValidateStruct(&bounded{Name: "ab", N: 5})
	if verr == nil || len(verr.Fields) != 2 {
		t.Fatalf("ValidateStruct() = %v", verr)
	}
	if verr.Fields[0].Message != "name must be at least 3 characters" {
		t.Errorf("min message = %q", verr.Fields[0].Message)
	}
	if verr.Fields[1].Message != "n must be at most 2" {
		t.Errorf("max message = %q", verr.Fields[1].Message)
	}
}
