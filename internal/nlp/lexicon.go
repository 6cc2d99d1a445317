package nlp

import (
	"context"
	"strings"

	"github.com/hugaba/api-sentiment-analysis/internal/types"
)

// Classifier labels a review as positive (1) or negative (0).
type Classifier interface {
	Name() string
	Classify(ctx context.Context, rec types.ReviewRecord) (int, error)
}

var positiveWords = []string{
	"bien", "bon", "bonne", "bons", "bonnes", "excellent", "excellente", "parfait", "parfaite",
	"super", "top", "génial", "géniale", "rapide", "rapides", "rapidement", "satisfait",
	"satisfaite", "satisfaits", "ravi", "ravie", "ravis", "merci", "recommande", "recommander",
	"qualité", "efficace", "sérieux", "sérieuse", "agréable", "impeccable", "conforme",
	"conformes", "professionnel", "professionnelle", "aimable", "réactif", "réactive",
	"facile", "pratique", "beau", "belle", "magnifique", "content", "contente", "contents",
	"fiable", "soigné", "soignée", "nickel", "parfaitement", "adore", "bravo", "plaisir",
	"meilleur", "meilleure", "idéal", "simple", "serviable", "confiance", "ponctuel",
	"rassurant", "excellence", "formidable", "extra", "recommandé",
}

var negativeWords = []string{
	"mauvais", "mauvaise", "nul", "nulle", "horrible", "lent", "lente", "retard", "retards",
	"arnaque", "escroquerie", "escroc", "escrocs", "déçu", "déçue", "déçus", "déception",
	"décevant", "décevante", "problème", "problèmes", "cassé",
	"cassée", "abîmé", "abîmée", "endommagé", "défectueux", "défectueuse", "remboursement",
	"rembourser", "remboursé", "litige", "fuir", "fuyez", "éviter", "évitez", "inadmissible",
	"inacceptable", "honteux", "honte", "lamentable", "catastrophe", "catastrophique",
	"injoignable", "perdu", "perdue", "attente", "annulé", "annulée", "erreur", "incompétent",
	"incompétents", "pire", "médiocre", "plainte", "galère", "dommage", "manquant",
	"manquante", "volé", "malhonnête", "scandaleux", "inexistant", "aberrant",
}

var negators = map[string]struct{}{
	"ne": {}, "n": {}, "pas": {}, "jamais": {}, "aucun": {}, "aucune": {}, "sans": {}, "ni": {}, "guère": {},
}

// negationWindow is how many tokens back a negator flips a polar word.
const negationWindow = 3

// LexiconClassifier scores cleaned review text against French polarity word
// lists, flipping words preceded by a negator. A zero score falls back to
// the star rating, then to positive.
type LexiconClassifier struct {
	cleaner        *FrenchNormalizer
	positive       map[string]struct{}
	negative       map[string]struct{}
	positiveRating int
}

// NewLexiconClassifier creates the default classifier. Ratings at or above
// positiveRating count as positive when the text is neutral.
func NewLexiconClassifier(positiveRating int) *LexiconClassifier {
	return &LexiconClassifier{
		cleaner:        NewFrenchNormalizer(StopWords{}),
		positive:       toSet(positiveWords),
		negative:       toSet(negativeWords),
		positiveRating: positiveRating,
	}
}

// Name implements Classifier.
func (c *LexiconClassifier) Name() string { return "lexicon" }

// Classify implements Classifier.
func (c *LexiconClassifier) Classify(ctx context.Context, rec types.ReviewRecord) (int, error) {
	score := c.Score(rec.Text())
	switch {
	case score > 0:
		return types.SentimentPositive, nil
	case score < 0:
		return types.SentimentNegative, nil
	case rec.Rating != nil && *rec.Rating < c.positiveRating:
		return types.SentimentNegative, nil
	default:
		return types.SentimentPositive, nil
	}
}

// Score returns the polarity balance of text.
func (c *LexiconClassifier) Score(text string) int {
	tokens := strings.Fields(c.cleaner.Clean(text))
	score := 0
	for i, tok := range tokens {
		polarity := 0
		if _, ok := c.positive[tok]; ok {
			polarity = 1
		} else if _, ok := c.negative[tok]; ok {
			polarity = -1
		}
		if polarity == 0 {
			continue
		}
		if negated(tokens, i) {
			polarity = -polarity
		}
		score += polarity
	}
	return score
}

func negated(tokens []string, i int) bool {
	for j := i - 1; j >= 0 && j >= i-negationWindow; j-- {
		if _, ok := negators[tokens[j]]; ok {
			return true
		}
	}
	return false
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
