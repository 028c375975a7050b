package intent

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/jinzhu/inflection"
	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var defaultVocabulary []byte

// Templates are the canned answers for questions that never reach the database.
type Templates struct {
	Greeting   string `yaml:"greeting"`
	Capability string `yaml:"capability"`
	Fallback   string `yaml:"fallback"`
}

// Vocabulary is the word corpus the rules match against.
type Vocabulary struct {
	CapabilityPhrases []string  `yaml:"capability_phrases"`
	Greetings         []string  `yaml:"greetings"`
	PolitePrefixes    []string  `yaml:"polite_prefixes"`
	MutationVerbs     []string  `yaml:"mutation_verbs"`
	EditVerbs         []string  `yaml:"edit_verbs"`
	DomainNouns       []string  `yaml:"domain_nouns"`
	CommerceTerms     []string  `yaml:"commerce_terms"`
	FetchKeywords     []string  `yaml:"fetch_keywords"`
	QuestionWords     []string  `yaml:"question_words"`
	RequestWords      []string  `yaml:"request_words"`
	TimeTerms         []string  `yaml:"time_terms"`
	Comparatives      []string  `yaml:"comparatives"`
	NameFiller        []string  `yaml:"name_filler"`
	Templates         Templates `yaml:"templates"`

	// plurals maps each generated plural back to its singular noun.
	plurals map[string]string
}

// DefaultVocabulary returns the embedded corpus.
func DefaultVocabulary() (*Vocabulary, error) {
	return ParseVocabulary(defaultVocabulary)
}

// ParseVocabulary decodes a YAML corpus and derives plural noun forms.
func ParseVocabulary(data []byte) (*Vocabulary, error) {
	var v Vocabulary
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse vocabulary: %w", err)
	}
	if len(v.DomainNouns) == 0 {
		return nil, fmt.Errorf("vocabulary has no domain nouns")
	}

	v.plurals = make(map[string]string, len(v.DomainNouns))
	for _, noun := range v.DomainNouns {
		if plural := inflection.Plural(noun); plural != noun {
			v.plurals[plural] = noun
		}
	}
	return &v, nil
}

// dataNouns returns domain nouns in both forms plus commerce terms.
func (v *Vocabulary) dataNouns() []string {
	out := make([]string, 0, len(v.DomainNouns)*2+len(v.CommerceTerms))
	out = append(out, v.DomainNouns...)
	for plural := range v.plurals {
		out = append(out, plural)
	}
	return append(out, v.CommerceTerms...)
}

// contentType returns the singular domain noun the text mentions first.
func (v *Vocabulary) contentType(q *query) string {
	best, bestIdx := "", -1
	consider := func(word, singular string) {
		if idx := q.index(word); idx != -1 && (bestIdx == -1 || idx < bestIdx) {
			best, bestIdx = singular, idx
		}
	}
	for _, noun := range v.DomainNouns {
		consider(noun, noun)
	}
	for plural, singular := range v.plurals {
		consider(plural, singular)
	}
	return best
}

// isFiller reports whether a word is dropped from the front of a name.
func (v *Vocabulary) isFiller(word string) bool {
	word = strings.ToLower(word)
	for _, f := range v.NameFiller {
		if f == word {
			return true
		}
	}
	return false
}
