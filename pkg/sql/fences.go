package sql

import (
	"regexp"
	"strings"
)

var (
	fencedBlock    = regexp.MustCompile("(?s)```(?:[A-Za-z]+[ \\t]*\\r?\\n)?(.*?)```")
	thinkBlock     = regexp.MustCompile(`(?s)<think>.*?</think>`)
	leadingSQLTag  = regexp.MustCompile(`(?i)^(?:sql|mysql|postgresql|query)\s*:?\s*\n?`)
	statementStart = regexp.MustCompile(`(?im)^\s*(SELECT|WITH)\b`)
)

// StripCodeFences extracts the SQL statement from a completion response that
// may wrap it in markdown fences, a leading "sql" tag, reasoning tags or a
// sentence of prose.
func StripCodeFences(text string) string {
	text = thinkBlock.ReplaceAllString(text, "")
	text = strings.TrimSpace(text)

	if m := fencedBlock.FindStringSubmatch(text); m != nil {
		text = m[1]
	} else {
		// Unterminated fence.
		if strings.HasPrefix(text, "```") {
			text = strings.TrimPrefix(text, "```")
			if nl := strings.IndexByte(text, '\n'); nl != -1 && !statementStart.MatchString(text[:nl]) {
				text = text[nl+1:]
			}
		}
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}

	text = strings.TrimSpace(text)
	text = strings.TrimSpace(leadingSQLTag.ReplaceAllString(text, ""))

	// Drop prose before the first line that starts a statement.
	if loc := statementStart.FindStringIndex(text); loc != nil && loc[0] > 0 {
		text = text[loc[0]:]
	}

	return strings.TrimSpace(text)
}
