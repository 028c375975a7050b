// Package intent classifies free-text questions with an ordered list of
// named rules driven by a YAML vocabulary.
package intent

import (
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sitequery/pkg/models"
)

// Classifier evaluates rules in order; the first match wins.
type Classifier struct {
	vocab  *Vocabulary
	rules  []Rule
	logger *zap.Logger
}

// NewClassifier creates a classifier over the given vocabulary and the
// default rule list.
func NewClassifier(vocab *Vocabulary, logger *zap.Logger) *Classifier {
	return &Classifier{
		vocab:  vocab,
		rules:  DefaultRules(),
		logger: logger.Named("intent"),
	}
}

// NewDefaultClassifier loads the embedded vocabulary.
func NewDefaultClassifier(logger *zap.Logger) (*Classifier, error) {
	vocab, err := DefaultVocabulary()
	if err != nil {
		return nil, err
	}
	return NewClassifier(vocab, logger), nil
}

// Classify returns the decision of the first matching rule.
func (c *Classifier) Classify(text string) models.IntentResult {
	q := newQuery(text)
	mutationLead := c.isMutationVerb(q.leadingVerb(c.vocab.PolitePrefixes))

	for _, rule := range c.rules {
		if rule.SkipOnMutationLead && mutationLead {
			continue
		}
		result, ok := rule.Match(c.vocab, q)
		if !ok {
			continue
		}
		result.Kind = rule.Kind
		result.Rule = rule.Name
		c.logger.Debug("Classified question",
			zap.String("kind", string(result.Kind)),
			zap.String("rule", rule.Name),
			zap.String("content_type", result.ContentType))
		return result
	}

	// The fallback rule always matches; this is unreachable with DefaultRules.
	return models.IntentResult{Kind: models.IntentUnrecognized, Rule: "fallback"}
}

// RuleNames lists rule names in evaluation order.
func (c *Classifier) RuleNames() []string {
	names := make([]string, len(c.rules))
	for i, r := range c.rules {
		names[i] = r.Name
	}
	return names
}

// HelpfulResponse returns the canned answer for questions that do not
// reach the database.
func (c *Classifier) HelpfulResponse(result models.IntentResult) string {
	switch {
	case result.Kind == models.IntentCapability:
		return c.vocab.Templates.Capability
	case result.Rule == "greeting":
		return c.vocab.Templates.Greeting
	default:
		return c.vocab.Templates.Fallback
	}
}

func (c *Classifier) isMutationVerb(word string) bool {
	for _, v := range c.vocab.MutationVerbs {
		if v == word {
			return true
		}
	}
	return false
}
