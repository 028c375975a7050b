package intent

import (
	"regexp"
	"strings"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
	sqlutil "github.com/ekaya-inc/ekaya-sitequery/pkg/sql"
)

// Rule is one named predicate in the ordered classification list.
type Rule struct {
	Name string
	Kind models.IntentKind
	// SkipOnMutationLead disables the rule when the text leads with a
	// content-changing verb after any polite prefix.
	SkipOnMutationLead bool
	Match              func(v *Vocabulary, q *query) (models.IntentResult, bool)
}

var (
	numericIDPattern = regexp.MustCompile(`(?:\bid|#|\bno\.?|\bnumber)\s*:?\s*\d+\b|\b(?:post|page|product|order|user|comment|item|coupon)s?\s+#?\d+\b`)
	propertyPattern  = regexp.MustCompile(`\b(?:title|price|regular price|sale price|status|slug|sku|stock|excerpt|description)\s*(?:to\b|=|:|as\b)?\s*["'$€£\d]` +
		`|\b(?:title|price|status|slug|sku|stock|excerpt|description)\s+(?:to|as)\s+\S` +
		`|\bset\s+(?:the\s+)?(?:title|price|status|slug|sku|stock|excerpt|description)\b`)
	whatIsPattern  = regexp.MustCompile(`^(?:what|which)\s+(?:is|are|was|were)\s+(?:the|my|our)\b`)
	giveShowMe     = regexp.MustCompile(`\b(?:give|show|tell)\s+me\s+(?:the\s+)?(?:most|top|all|last|next|latest|first)\b`)
	canYouVerb     = regexp.MustCompile(`\b(?:can|could)\s+you\s+\w+`)
	quotedName     = regexp.MustCompile(`"([^"]+)"|“([^”]+)”|(?:^|\s)'([^']+)'(?:\s|$|[.,!?])`)
	namedName      = regexp.MustCompile(`(?i)\b(?:named|called|titled)\s+(.+?)(?:\s+(?:to|with|and|so|please|into)\b|[.?!,]|$)`)
	trailingName   = regexp.MustCompile(`(?i)\b(?:edit|update|change|modify|rename|retitle)\s+(?:the\s+|my\s+|our\s+)?(?:post|page|product|article|item)\s+(.+?)(?:\s+(?:to|with|so|please|and|into)\b|[.?!,]|$)`)
	numericName    = regexp.MustCompile(`^[#\d\s.,-]+$`)
	propertyNouns  = map[string]bool{"title": true, "price": true, "status": true, "content": true, "slug": true, "excerpt": true, "description": true, "name": true}
)

// when adapts a boolean predicate to a rule matcher.
func when(pred func(v *Vocabulary, q *query) bool) func(*Vocabulary, *query) (models.IntentResult, bool) {
	return func(v *Vocabulary, q *query) (models.IntentResult, bool) {
		if !pred(v, q) {
			return models.IntentResult{}, false
		}
		return models.IntentResult{ContentType: v.contentType(q)}, true
	}
}

func fetchRule(name string, pred func(v *Vocabulary, q *query) bool) Rule {
	return Rule{Name: name, Kind: models.IntentFetch, SkipOnMutationLead: true, Match: when(pred)}
}

// DefaultRules returns the classification rules in evaluation order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name: "capability",
			Kind: models.IntentCapability,
			Match: when(func(v *Vocabulary, q *query) bool {
				return q.hasAny(v.CapabilityPhrases) &&
					!(q.hasAny(v.MutationVerbs) && q.hasAny(v.dataNouns()))
			}),
		},
		fetchRule("fetch_keyword", func(v *Vocabulary, q *query) bool {
			return q.hasAny(v.FetchKeywords)
		}),
		fetchRule("fetch_question_data", func(v *Vocabulary, q *query) bool {
			return q.hasAny(v.QuestionWords) && q.hasAny(v.dataNouns())
		}),
		fetchRule("fetch_question_time", func(v *Vocabulary, q *query) bool {
			return q.hasAny(v.QuestionWords) && q.hasAny(v.TimeTerms)
		}),
		fetchRule("fetch_comparative", func(v *Vocabulary, q *query) bool {
			return q.hasAny(v.Comparatives) && q.hasAny(v.dataNouns())
		}),
		fetchRule("fetch_data_time", func(v *Vocabulary, q *query) bool {
			return q.hasAny(v.dataNouns()) && q.hasAny(v.TimeTerms)
		}),
		fetchRule("fetch_what_is", func(_ *Vocabulary, q *query) bool {
			return whatIsPattern.MatchString(strings.TrimSpace(q.padded))
		}),
		fetchRule("fetch_commerce", func(v *Vocabulary, q *query) bool {
			return q.hasAny(v.CommerceTerms)
		}),
		fetchRule("fetch_give_show", func(_ *Vocabulary, q *query) bool {
			return giveShowMe.MatchString(q.padded)
		}),
		fetchRule("fetch_can_you", func(v *Vocabulary, q *query) bool {
			return canYouVerb.MatchString(q.padded) && q.hasAny(v.dataNouns())
		}),
		fetchRule("fetch_fallback", func(v *Vocabulary, q *query) bool {
			return q.hasAny(v.dataNouns()) && (q.hasAny(v.QuestionWords) || q.hasAny(v.RequestWords))
		}),
		{
			Name:  "edit_by_name",
			Kind:  models.IntentEditByName,
			Match: matchEditByName,
		},
		{
			Name: "api_operation",
			Kind: models.IntentAPIOperation,
			Match: when(func(v *Vocabulary, q *query) bool {
				if !q.hasAny(v.MutationVerbs) {
					return false
				}
				return q.hasAny(v.dataNouns()) || numericIDPattern.MatchString(q.lower) || propertyPattern.MatchString(q.lower)
			}),
		},
		{
			Name: "greeting",
			Kind: models.IntentUnrecognized,
			Match: when(func(v *Vocabulary, q *query) bool {
				return q.hasAny(v.Greetings)
			}),
		},
		{
			Name:  "fallback",
			Kind:  models.IntentUnrecognized,
			Match: when(func(*Vocabulary, *query) bool { return true }),
		},
	}
}

func matchEditByName(v *Vocabulary, q *query) (models.IntentResult, bool) {
	if !q.hasAny(v.EditVerbs) || numericIDPattern.MatchString(q.lower) {
		return models.IntentResult{}, false
	}
	name := extractName(v, q.raw)
	if name == "" {
		return models.IntentResult{}, false
	}
	return models.IntentResult{Name: name, ContentType: v.contentType(q)}, true
}

// extractName tries the quoted, named/called/titled and trailing templates
// in order and returns the first acceptable name.
func extractName(v *Vocabulary, text string) string {
	var candidates []string
	if m := quotedName.FindStringSubmatch(text); m != nil {
		for _, g := range m[1:] {
			if g != "" {
				candidates = append(candidates, g)
				break
			}
		}
	}
	if m := namedName.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}
	if m := trailingName.FindStringSubmatch(text); m != nil {
		candidates = append(candidates, m[1])
	}

	for _, c := range candidates {
		if name := cleanName(v, c); name != "" {
			return name
		}
	}
	return ""
}

// cleanName trims quotes and leading filler words and rejects names that
// are numeric, property words or injection payloads.
func cleanName(v *Vocabulary, name string) string {
	name = strings.Trim(strings.TrimSpace(name), `"'“”.,!?`)
	fields := strings.Fields(name)
	for len(fields) > 1 && v.isFiller(fields[0]) {
		fields = fields[1:]
	}
	name = strings.Join(fields, " ")

	switch {
	case name == "", numericName.MatchString(name):
		return ""
	case len(fields) == 1 && (v.isFiller(name) || propertyNouns[strings.ToLower(name)]):
		return ""
	case sqlutil.CheckValueForInjection("name", name) != nil:
		return ""
	}
	return name
}
