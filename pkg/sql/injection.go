package sql

import (
	"fmt"
	"sort"

	libinjection "github.com/corazawaf/libinjection-go"
)

// InjectionCheckResult describes a value that libinjection flagged.
type InjectionCheckResult struct {
	IsSQLi      bool   // True if SQL injection pattern detected
	Fingerprint string // libinjection fingerprint of the detected pattern
	Field       string // Dotted path of the offending value
	Value       string // The value that was checked
}

// CheckValueForInjection runs libinjection over a user-supplied string.
// Non-string values cannot carry injection payloads and return nil.
//
// Example:
//
//	CheckValueForInjection("name", "Summer Sale")            // nil
//	CheckValueForInjection("name", "x' OR '1'='1")           // IsSQLi == true
func CheckValueForInjection(field string, value any) *InjectionCheckResult {
	strValue, ok := value.(string)
	if !ok || strValue == "" {
		return nil
	}

	isSQLi, fingerprint := libinjection.IsSQLi(strValue)
	if !isSQLi {
		return nil
	}
	return &InjectionCheckResult{
		IsSQLi:      true,
		Fingerprint: string(fingerprint),
		Field:       field,
		Value:       strValue,
	}
}

// CheckFields walks a field map (nested maps and slices included) and
// returns every flagged value, ordered by field path.
func CheckFields(fields map[string]any) []*InjectionCheckResult {
	var results []*InjectionCheckResult
	var walk func(path string, v any)
	walk = func(path string, v any) {
		switch val := v.(type) {
		case map[string]any:
			for k, inner := range val {
				walk(joinPath(path, k), inner)
			}
		case []any:
			for i, inner := range val {
				walk(fmt.Sprintf("%s[%d]", path, i), inner)
			}
		default:
			if r := CheckValueForInjection(path, val); r != nil {
				results = append(results, r)
			}
		}
	}
	for k, v := range fields {
		walk(k, v)
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Field < results[j].Field })
	return results
}

func joinPath(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
