package sql

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEnforceReadOnly_Allows(t *testing.T) {
	allowed := []string{
		"SELECT COUNT(*) FROM wp_posts",
		"select id from t where status = 'delete me'",
		"WITH recent AS (SELECT ID FROM wp_posts) SELECT COUNT(*) FROM recent",
		"(SELECT 1)",
		"SELECT REPLACE(post_title, 'a', 'b') FROM wp_posts",
		"SELECT INSERT(post_title, 1, 2, 'x') FROM wp_posts",
		"SELECT date_updated, update_count FROM stats",
		`SELECT "DROP TABLE" AS label FROM t`,
	}
	for _, q := range allowed {
		t.Run(q, func(t *testing.T) {
			assert.NoError(t, EnforceReadOnly(q))
		})
	}
}

func TestEnforceReadOnly_Denies(t *testing.T) {
	tests := []struct {
		query string
		token string
	}{
		{"DELETE FROM wp_posts", "DELETE"},
		{"UPDATE wp_posts SET post_title = 'x'", "UPDATE"},
		{"INSERT INTO wp_posts (ID) VALUES (1)", "INSERT"},
		{"DROP TABLE wp_posts", "DROP"},
		{"SHOW TABLES", "SHOW"},
		{"SELECT * FROM wp_users INTO OUTFILE '/tmp/x'", "INTO"},
		{"SELECT * FROM wp_posts FOR UPDATE", "UPDATE"},
		{"WITH x AS (DELETE FROM t RETURNING *) SELECT * FROM x", "DELETE"},
		{"SELECT SLEEP(10)", "SLEEP()"},
		{"SELECT BENCHMARK(1000000, MD5('a'))", "BENCHMARK()"},
		{"SELECT LOAD_FILE('/etc/passwd')", "LOAD_FILE()"},
		{"SELECT 1 /*! ; DROP TABLE t */", ""},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			err := EnforceReadOnly(tt.query)
			if tt.token == "" {
				// Executable comments are stripped rather than rejected.
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, ErrNotReadOnly), "expected ErrNotReadOnly, got %v", err)
			var violation *ReadOnlyViolation
			if assert.True(t, errors.As(err, &violation)) {
				assert.Equal(t, tt.token, violation.Token)
			}
		})
	}
}

func TestStripComments(t *testing.T) {
	assert.Equal(t, "SELECT 1", StripComments("SELECT 1 -- trailing"))
	assert.Equal(t, "SELECT 1", StripComments("# note\nSELECT 1"))
	assert.Equal(t, "SELECT '--not a comment'", StripComments("SELECT '--not a comment'"))
	assert.Equal(t, "SELECT   2", StripComments("SELECT /*! DROP */ 2"))
}
