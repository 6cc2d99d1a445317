package nlp

// frenchStopWords is the usual French function-word list.
var frenchStopWords = []string{
	"au", "aux", "avec", "ce", "ces", "dans", "de", "des", "du", "elle", "en", "et", "eux",
	"il", "ils", "je", "la", "le", "les", "leur", "lui", "ma", "mais", "me", "même", "mes",
	"moi", "mon", "ne", "nos", "notre", "nous", "on", "ou", "par", "pas", "pour", "qu", "que",
	"qui", "sa", "se", "ses", "son", "sur", "ta", "te", "tes", "toi", "ton", "tu", "un", "une",
	"vos", "votre", "vous", "c", "d", "j", "l", "à", "m", "n", "s", "t", "y",
	"été", "étée", "étées", "étés", "étant", "étante", "étants", "étantes",
	"suis", "es", "est", "sommes", "êtes", "sont", "serai", "seras", "sera", "serons", "serez",
	"seront", "serais", "serait", "serions", "seriez", "seraient", "étais", "était", "étions",
	"étiez", "étaient", "fus", "fut", "fûmes", "fûtes", "furent", "sois", "soit", "soyons",
	"soyez", "soient", "fusse", "fusses", "fût", "fussions", "fussiez", "fussent",
	"ayant", "ayante", "ayantes", "ayants", "eu", "eue", "eues", "eus", "ai", "as", "avons",
	"avez", "ont", "aurai", "auras", "aura", "aurons", "aurez", "auront", "aurais", "aurait",
	"aurions", "auriez", "auraient", "avais", "avait", "avions", "aviez", "avaient", "eut",
	"eûmes", "eûtes", "eurent", "aie", "aies", "ait", "ayons", "ayez", "aient", "eusse",
	"eusses", "eût", "eussions", "eussiez", "eussent",
}

// reviewStopWords are words that dominate every e-commerce review and carry
// no signal in a word cloud.
var reviewStopWords = []string{
	"avoir", "être", "dire", "donc", "si", "livraison", "livrer", "car",
	"command", "commande", "commander",
}

// StopWords is a set of words dropped by the normalizer.
type StopWords map[string]struct{}

// DefaultStopWords returns the French list plus the review-domain extras and
// any caller-supplied words.
func DefaultStopWords(extra ...string) StopWords {
	sw := make(StopWords, len(frenchStopWords)+len(reviewStopWords)+len(extra))
	for _, list := range [][]string{frenchStopWords, reviewStopWords, extra} {
		for _, w := range list {
			sw[w] = struct{}{}
		}
	}
	return sw
}

// Contains reports whether w is a stop word.
func (s StopWords) Contains(w string) bool {
	_, ok := s[w]
	return ok
}
