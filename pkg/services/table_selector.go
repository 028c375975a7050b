package services

import (
	"regexp"
	"strings"

	"github.com/jinzhu/inflection"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
)

// DefaultMaxTables bounds how many tables are offered to the generator.
const DefaultMaxTables = 50

// coreSuffixes are the content tables every site has.
var coreSuffixes = map[string]bool{
	"posts":              true,
	"postmeta":           true,
	"users":              true,
	"usermeta":           true,
	"terms":              true,
	"term_taxonomy":      true,
	"term_relationships": true,
	"options":            true,
	"comments":           true,
}

// commercePrefixes mark store tables, which are always included.
var commercePrefixes = []string{"wc_", "woocommerce_"}

var selectorStopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true, "were": true,
	"what": true, "which": true, "who": true, "how": true, "many": true, "much": true,
	"show": true, "list": true, "give": true, "tell": true, "find": true, "get": true,
	"all": true, "any": true, "with": true, "from": true, "that": true, "this": true,
	"there": true, "have": true, "has": true, "had": true, "did": true, "does": true,
	"our": true, "your": true, "their": true, "can": true, "you": true, "please": true,
	"last": true, "past": true, "total": true, "number": true, "count": true,
	"top": true, "most": true, "least": true, "per": true, "each": true, "into": true,
	"about": true, "been": true, "since": true, "over": true, "between": true,
}

var (
	orderSynonyms = []string{
		"order", "orders", "sale", "sales", "sold", "revenue", "purchase", "purchases",
		"purchased", "bought", "transaction", "transactions", "checkout", "checkouts",
		"refund", "refunds", "income", "earnings", "sell", "selling",
	}
	customerSynonyms = []string{
		"customer", "customers", "buyer", "buyers", "shopper", "shoppers", "client", "clients",
	}
)

var selectorWordPattern = regexp.MustCompile(`[a-z0-9_]+`)

// TableSelector picks the subset of tenant tables relevant to a question.
type TableSelector struct {
	maxTables int
	logger    *zap.Logger
}

// NewTableSelector creates a selector capped at maxTables (DefaultMaxTables
// when not positive).
func NewTableSelector(maxTables int, logger *zap.Logger) *TableSelector {
	if maxTables <= 0 {
		maxTables = DefaultMaxTables
	}
	return &TableSelector{maxTables: maxTables, logger: logger.Named("table-selector")}
}

// Select returns relevant tables: keyword matches first, then tables injected
// for order or customer vocabulary, then the core content tables, then store
// tables. The result is deduplicated and capped.
func (s *TableSelector) Select(question string, tenant models.Tenant, tables []string) []string {
	keywords := questionKeywords(question)
	words := selectorWordPattern.FindAllString(strings.ToLower(question), -1)
	wantOrders := containsAny(words, orderSynonyms)
	wantCustomers := containsAny(words, customerSynonyms)

	selected := make([]string, 0, s.maxTables)
	seen := make(map[string]bool)
	add := func(t string) {
		if !seen[t] && len(selected) < s.maxTables {
			seen[t] = true
			selected = append(selected, t)
		}
	}

	suffixes := make([]string, len(tables))
	for i, t := range tables {
		suffixes[i] = strings.ToLower(tenant.Suffix(t))
	}

	for i, t := range tables {
		for _, kw := range keywords {
			if strings.Contains(suffixes[i], kw) {
				add(t)
				break
			}
		}
	}
	for i, t := range tables {
		if (wantOrders && strings.Contains(suffixes[i], "order")) ||
			(wantCustomers && strings.Contains(suffixes[i], "customer")) {
			add(t)
		}
	}
	for i, t := range tables {
		if coreSuffixes[suffixes[i]] {
			add(t)
		}
	}
	for i, t := range tables {
		for _, p := range commercePrefixes {
			if strings.HasPrefix(suffixes[i], p) {
				add(t)
				break
			}
		}
	}

	s.logger.Debug("Selected tables",
		zap.Strings("keywords", keywords),
		zap.Int("candidates", len(tables)),
		zap.Int("selected", len(selected)))
	return selected
}

// questionKeywords returns the question's content words longer than two
// characters, each with its singular and plural forms.
func questionKeywords(question string) []string {
	seen := make(map[string]bool)
	var out []string
	add := func(w string) {
		if len(w) > 2 && !seen[w] {
			seen[w] = true
			out = append(out, w)
		}
	}
	for _, w := range selectorWordPattern.FindAllString(strings.ToLower(question), -1) {
		if len(w) <= 2 || selectorStopWords[w] {
			continue
		}
		add(w)
		add(inflection.Singular(w))
		add(inflection.Plural(w))
	}
	return out
}

func containsAny(words, vocabulary []string) bool {
	for _, w := range words {
		for _, v := range vocabulary {
			if w == v {
				return true
			}
		}
	}
	return false
}
