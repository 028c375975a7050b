package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"bare object", `{"method":"delete","id":3}`, `{"method":"delete","id":3}`},
		{"markdown fence", "```json\n{\"method\": \"update\"}\n```", `{"method": "update"}`},
		{"prose around", `Here is the plan: {"method":"create","fields":{"title":"Hi"}} Done.`, `{"method":"create","fields":{"title":"Hi"}}`},
		{"think block", "<think>maybe {not json}</think>\n{\"id\": 7}", `{"id": 7}`},
		{"braces inside strings", `{"fields":{"title":"a } b"}}`, `{"fields":{"title":"a } b"}}`},
		{"skips broken brace", `use {placeholder} then {"id": 1}`, `{"id": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.content)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractJSONObject_None(t *testing.T) {
	for _, content := range []string{"", "no plan here", `{"unterminated": `, `["an", "array"]`} {
		_, err := ExtractJSONObject(content)
		assert.ErrorIs(t, err, ErrNoJSONObject, content)
	}
}

func TestParseJSONResponse(t *testing.T) {
	type plan struct {
		Method string `json:"method"`
		ID     int64  `json:"id"`
	}

	got, err := ParseJSONResponse[plan]("```json\n{\"method\": \"delete\", \"id\": 12}\n```")
	require.NoError(t, err)
	assert.Equal(t, plan{Method: "delete", ID: 12}, got)

	_, err = ParseJSONResponse[plan](`{"method": "delete", "id": "twelve"}`)
	assert.Error(t, err)
}
