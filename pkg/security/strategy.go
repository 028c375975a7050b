// Package security screens questions, generated SQL and result rows for
// attempts to extract credentials or bulk personal data.
package security

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/config"
	sqlutil "github.com/ekaya-inc/ekaya-sitequery/pkg/sql"
)

// Checkpoint names where a violation was found.
type Checkpoint string

const (
	CheckpointText Checkpoint = "text"
	CheckpointSQL  Checkpoint = "sql"
)

// Refusal reasons.
const (
	ReasonCredentialRequest = "credential request"
	ReasonPersonalData      = "personal data extraction"
	ReasonCredentialColumn  = "credential column selected"
	ReasonAccountsSelectAll = "unrestricted select on accounts table"
)

// Violation describes a refused question or statement.
type Violation struct {
	Checkpoint Checkpoint
	Strategy   string
	Reason     string
	// Match is the text fragment that triggered the refusal.
	Match string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("%s check refused by %s: %s", v.Checkpoint, v.Strategy, v.Reason)
}

// Strategy is one screening implementation. Any strategy may refuse.
type Strategy interface {
	Name() string
	// CheckText screens question text. analytic is true for aggregate
	// phrasing, where only hard credential patterns apply.
	CheckText(text string, analytic bool) *Violation
	CheckSQL(sqlQuery string) *Violation
	IsBlockedColumn(name string) bool
}

var (
	// hardTextPatterns always refuse, analytic phrasing or not.
	hardTextPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(passwords?|passwd|pass\s+words?|pwd|passphrases?|user_pass)\b`),
		regexp.MustCompile(`(?i)\b(credit\s*card(\s*numbers?)?|card\s*numbers?|cvv|cvc|card\s+security\s+codes?)\b`),
		regexp.MustCompile(`(?i)\b(ssn|social\s+security(\s+numbers?)?)\b`),
		regexp.MustCompile(`(?i)\b(api\s*(keys?|secrets?|tokens?)|secret\s+keys?|private\s+keys?|access\s+tokens?|auth(entication)?\s+tokens?|session\s+tokens?|activation\s+keys?)\b`),
	}

	// softTextPatterns refuse extraction requests unless phrased analytically.
	softTextPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b(give|show|share|send|tell|list|reveal|display|export|dump|get)\b.*\b(credentials?|logins?|email\s+addresses|emails|phone\s+numbers|home\s+addresses|personal\s+(data|information|details)|private\s+(data|information))\b`),
		regexp.MustCompile(`(?i)\b(dump|export)\s+(the\s+)?(entire\s+|whole\s+)?(database|users?\s+table|user\s+data|customer\s+data)\b`),
		regexp.MustCompile(`(?i)\ball\s+(user|customer)\s+(data|details|information|records)\b`),
		regexp.MustCompile(`(?i)\bhow\s+(do|can)\s+i\s+(log\s*in|login|sign\s+in)\s+as\b`),
	}

	analyticPattern = regexp.MustCompile(`(?i)\b(how\s+many|count|number\s+of|total|sum|average|avg|mean|top\s+\d+|most|least|percentage|percent|ratio|breakdown|trend|compare|per\s+(day|week|month|year))\b`)

	credentialColumn = regexp.MustCompile(`(?i)^(?:user_pass|user_activation_key|pass|pwd|passwd|cvv|cvc|ssn|apikey)$` +
		`|(?:^|_)(?:password|password_hash|secret|api_key|api_secret|access_token|auth_token|session_tokens|token|card_number|cc_number|credit_card)$`)

	identifierPattern = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_$]*`)
	literalPattern    = regexp.MustCompile(`'(?:[^'\\]|\\.|'')*'`)
)

// IsAnalytic reports whether text asks for an aggregate rather than records.
func IsAnalytic(text string) bool {
	return analyticPattern.MatchString(text)
}

// PatternStrategy screens with regular expressions and a column blocklist.
type PatternStrategy struct {
	name         string
	hard         []*regexp.Regexp
	soft         []*regexp.Regexp
	blockedNames map[string]bool
}

// NewBackstop returns the hardcoded minimal strategy that applies even when
// no configurable strategy is installed.
func NewBackstop() *PatternStrategy {
	return &PatternStrategy{
		name:         "backstop",
		hard:         hardTextPatterns,
		blockedNames: map[string]bool{},
	}
}

// NewPatternStrategy returns the full configurable strategy: hard and soft
// text patterns plus any patterns and columns named in cfg.
func NewPatternStrategy(cfg *config.SecurityConfig) (*PatternStrategy, error) {
	s := &PatternStrategy{
		name:         "patterns",
		hard:         append([]*regexp.Regexp{}, hardTextPatterns...),
		soft:         softTextPatterns,
		blockedNames: map[string]bool{},
	}
	if cfg == nil {
		return s, nil
	}
	for _, p := range cfg.BlockedPatterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return nil, fmt.Errorf("invalid blocked pattern %q: %w", p, err)
		}
		s.hard = append(s.hard, re)
	}
	for _, c := range cfg.BlockedColumns {
		s.blockedNames[strings.ToLower(c)] = true
	}
	return s, nil
}

func (s *PatternStrategy) Name() string { return s.name }

func (s *PatternStrategy) CheckText(text string, analytic bool) *Violation {
	for _, re := range s.hard {
		if m := re.FindString(text); m != "" {
			return &Violation{Checkpoint: CheckpointText, Strategy: s.name, Reason: ReasonCredentialRequest, Match: m}
		}
	}
	if analytic {
		return nil
	}
	for _, re := range s.soft {
		if m := re.FindString(text); m != "" {
			return &Violation{Checkpoint: CheckpointText, Strategy: s.name, Reason: ReasonPersonalData, Match: m}
		}
	}
	return nil
}

// CheckSQL refuses a credential column anywhere inside the SELECT list,
// including scalar subqueries and items next to a star, or SELECT * over an
// accounts table without an aggregate. Credential columns used only in WHERE
// or JOIN conditions are allowed.
func (s *PatternStrategy) CheckSQL(sqlQuery string) *Violation {
	for _, item := range sqlutil.SelectListItems(sqlQuery) {
		for _, ident := range columnIdentifiers(item) {
			if s.IsBlockedColumn(ident) {
				return &Violation{Checkpoint: CheckpointSQL, Strategy: s.name, Reason: ReasonCredentialColumn, Match: ident}
			}
		}
	}

	if sqlutil.IsSelectStar(sqlQuery) && !sqlutil.HasAggregate(sqlutil.SelectList(sqlQuery)) {
		for _, table := range sqlutil.ExtractTables(sqlQuery) {
			if IsAccountTable(table) {
				return &Violation{Checkpoint: CheckpointSQL, Strategy: s.name, Reason: ReasonAccountsSelectAll, Match: table}
			}
		}
	}
	return nil
}

func (s *PatternStrategy) IsBlockedColumn(name string) bool {
	name = strings.Trim(name, "`\"")
	return credentialColumn.MatchString(name) || s.blockedNames[strings.ToLower(name)]
}

// IsAccountTable reports whether a table holds user accounts or their metadata.
func IsAccountTable(table string) bool {
	t := strings.ToLower(table)
	return strings.HasSuffix(t, "users") || strings.HasSuffix(t, "usermeta")
}

// columnIdentifiers returns the identifiers referenced by a select-list
// expression, ignoring string literals.
func columnIdentifiers(expr string) []string {
	return identifierPattern.FindAllString(literalPattern.ReplaceAllString(expr, "''"), -1)
}

var (
	_ Strategy = (*PatternStrategy)(nil)
	_ error    = (*Violation)(nil)
)
