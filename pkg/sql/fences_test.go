package sql

import "testing"

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", "SELECT 1", "SELECT 1"},
		{"sql fence", "```sql\nSELECT 1\n```", "SELECT 1"},
		{"bare fence", "```\nSELECT 2\n```", "SELECT 2"},
		{"single line fence", "```SELECT 5```", "SELECT 5"},
		{"think block", "<think>which table?</think>\n```mysql\nSELECT 3\n```", "SELECT 3"},
		{"sql tag", "sql: SELECT 4", "SELECT 4"},
		{"unterminated fence", "```sql\nSELECT 6", "SELECT 6"},
		{"leading prose", "Here is the query:\nSELECT COUNT(*) FROM wp_posts", "SELECT COUNT(*) FROM wp_posts"},
		{"with clause", "```sql\nWITH x AS (SELECT 1) SELECT * FROM x\n```", "WITH x AS (SELECT 1) SELECT * FROM x"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFences(tt.input); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}
