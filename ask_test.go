package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
)

func TestPrintAnswer(t *testing.T) {
	tests := []struct {
		name     string
		resp     *models.ResponsePayload
		contains []string
		excludes []string
	}{
		{
			name: "rows as table",
			resp: &models.ResponsePayload{
				Success: true,
				Message: "Found 2 results.",
				Data: []*models.Row{
					models.RowOf("ID", int64(1), "post_title", "Hello"),
					models.RowOf("ID", int64(2), "post_title", "World"),
				},
				SQLQuery: "SELECT ID, post_title FROM wp_posts",
			},
			contains: []string{"Found 2 results.", "ID", "post_title", "Hello", "World", "SQL: SELECT ID"},
		},
		{
			name: "confirmation prompt",
			resp: &models.ResponsePayload{
				Success:              true,
				Message:              "Please confirm.",
				RequiresConfirmation: true,
				ConfirmationMessage:  "Update post \"Summer Launch\"?",
				ConfirmationData:     &models.ConfirmationPayload{Token: "tok-123"},
			},
			contains: []string{"Please confirm.", "Summer Launch", "--confirm tok-123"},
		},
		{
			name:     "refusal",
			resp:     &models.ResponsePayload{Message: "I can't share that."},
			contains: []string{"I can't share that."},
			excludes: []string{"SQL:"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, printAnswer(&buf, tt.resp))
			out := buf.String()
			for _, s := range tt.contains {
				assert.Contains(t, out, s)
			}
			for _, s := range tt.excludes {
				assert.NotContains(t, out, s)
			}
		})
	}
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()

	names := make([]string, 0)
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.Contains(t, names, "serve")
	assert.Contains(t, names, "ask")

	assert.NotNil(t, root.PersistentFlags().Lookup("config"))
}
