package sql

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckValueForInjection(t *testing.T) {
	tests := []struct {
		name            string
		value           any
		expectInjection bool
	}{
		{name: "plain title", value: "Summer Sale", expectInjection: false},
		{name: "empty string", value: "", expectInjection: false},
		{name: "integer", value: 42, expectInjection: false},
		{name: "boolean", value: true, expectInjection: false},
		{name: "tautology", value: "' OR '1'='1", expectInjection: true},
		{name: "comment terminated tautology", value: "1' OR 1=1 --", expectInjection: true},
		{name: "union select", value: "1 UNION SELECT password FROM users", expectInjection: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CheckValueForInjection("title", tt.value)
			if !tt.expectInjection {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.True(t, result.IsSQLi)
			assert.Equal(t, "title", result.Field)
			assert.NotEmpty(t, result.Fingerprint)
		})
	}
}

func TestCheckFields_WalksNestedValues(t *testing.T) {
	fields := map[string]any{
		"title": "Spring Launch",
		"meta": map[string]any{
			"subtitle": "' OR '1'='1",
		},
		"tags":  []any{"news", "1 UNION SELECT password FROM users"},
		"count": 3,
	}

	results := CheckFields(fields)
	require.Len(t, results, 2)
	assert.Equal(t, "meta.subtitle", results[0].Field)
	assert.Equal(t, "tags[1]", results[1].Field)
}

func TestCheckFields_Clean(t *testing.T) {
	assert.Empty(t, CheckFields(map[string]any{"title": "About Us", "status": "publish"}))
}
