package llm

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrNoJSONObject is returned when a completion contains no decodable object.
var ErrNoJSONObject = errors.New("no JSON object in completion")

var leadingThinkBlock = regexp.MustCompile(`(?s)^\s*<think>.*?</think>`)

// ExtractJSONObject returns the first complete JSON object in a completion.
// Models wrap plans in prose, markdown fences or a leading <think> block;
// each '{' is tried in turn until one decodes as a whole object.
func ExtractJSONObject(content string) (string, error) {
	content = leadingThinkBlock.ReplaceAllString(content, "")
	for i := strings.IndexByte(content, '{'); i >= 0; {
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(content[i:])).Decode(&raw); err == nil {
			return string(raw), nil
		}
		next := strings.IndexByte(content[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}
	return "", ErrNoJSONObject
}

// ParseJSONResponse decodes the first JSON object of a completion into T.
func ParseJSONResponse[T any](content string) (T, error) {
	var out T
	obj, err := ExtractJSONObject(content)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(obj), &out); err != nil {
		return out, fmt.Errorf("decode completion JSON: %w", err)
	}
	return out, nil
}
