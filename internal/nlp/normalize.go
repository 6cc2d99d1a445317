package nlp

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Normalizer turns review text into the ordered tokens the word clouds count.
type Normalizer interface {
	Normalize(text string) []string
}

// nonWord matches runs of anything that is not a letter (accented Latin
// included) or an emoji.
var nonWord = regexp.MustCompile(`[^a-zA-Z` +
	`\x{00C0}-\x{024F}\x{1E00}-\x{1EFF}` + // accented letters
	`\x{1F1E0}-\x{1F1FF}` + // flags
	`\x{1F300}-\x{1F5FF}` + // symbols & pictographs
	`\x{1F600}-\x{1F64F}` + // emoticons
	`\x{1F680}-\x{1F6FF}` + // transport & map
	`\x{1F700}-\x{1F77F}` +
	`\x{1F780}-\x{1F7FF}` +
	`\x{1F800}-\x{1F8FF}` +
	`\x{1F900}-\x{1F9FF}` +
	`\x{1FA00}-\x{1FA6F}` +
	`\x{1FA70}-\x{1FAFF}` +
	`\x{2702}-\x{27B0}` + // dingbats
	`\x{24C2}-\x{1F251}` +
	`]+`)

// FrenchNormalizer cleans, lowercases, tokenizes and drops stop words.
type FrenchNormalizer struct {
	stopWords StopWords
}

// NewFrenchNormalizer creates a normalizer. A nil set means DefaultStopWords.
func NewFrenchNormalizer(stopWords StopWords) *FrenchNormalizer {
	if stopWords == nil {
		stopWords = DefaultStopWords()
	}
	return &FrenchNormalizer{stopWords: stopWords}
}

// Clean replaces everything but letters and emoji with spaces, trims, and
// lowercases with French casing rules.
func (n *FrenchNormalizer) Clean(text string) string {
	text = nonWord.ReplaceAllString(text, " ")
	// A Caser is stateful; one per call keeps Clean safe for concurrent use.
	return cases.Lower(language.French).String(strings.TrimSpace(text))
}

// Normalize implements Normalizer.
func (n *FrenchNormalizer) Normalize(text string) []string {
	fields := strings.Fields(n.Clean(text))
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if n.stopWords.Contains(f) {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}
