package jsonutil

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlexibleStringValue(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", ``, ""},
		{"null", `null`, ""},
		{"string", `"Summer Launch"`, "Summer Launch"},
		{"integer", `42`, "42"},
		{"float", `19.5`, "19.5"},
		{"boolean", `true`, "true"},
		{"object falls back to raw", `{"a":1}`, `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FlexibleStringValue(json.RawMessage(tt.raw)))
		})
	}
}

func TestFlexibleInt64Value(t *testing.T) {
	tests := []struct {
		raw  string
		want int64
	}{
		{`42`, 42},
		{`"42"`, 42},
		{`" 7 "`, 7},
		{`42.0`, 42},
		{`42.5`, 0},
		{`"abc"`, 0},
		{`null`, 0},
		{``, 0},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			assert.Equal(t, tt.want, FlexibleInt64Value(json.RawMessage(tt.raw)))
		})
	}
}
