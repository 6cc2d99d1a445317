package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/hugaba/api-sentiment-analysis/internal/types"
)

// ErrUnparsableAnswer is returned when the model reply carries no label.
var ErrUnparsableAnswer = errors.New("unparsable sentiment answer")

const maxPromptChars = 2000

const sentimentPrompt = `Classify the sentiment of the following French customer review.
Answer with a single character: 1 if the review is positive, 0 if it is negative.

Review: %s`

// LLMClassifier labels reviews by asking an LLM. It satisfies the same
// contract as the lexicon classifier so the pipeline can swap them.
type LLMClassifier struct {
	client *LLMClient
	logger *slog.Logger
}

// NewLLMClassifier wraps client as a review classifier.
func NewLLMClassifier(client *LLMClient, logger *slog.Logger) *LLMClassifier {
	return &LLMClassifier{
		client: client,
		logger: logger.With("component", "llm_classifier"),
	}
}

// Name returns the classifier name.
func (c *LLMClassifier) Name() string { return "llm:" + string(c.client.Provider()) }

// Classify returns types.SentimentPositive or types.SentimentNegative.
func (c *LLMClassifier) Classify(ctx context.Context, rec types.ReviewRecord) (int, error) {
	text := strings.TrimSpace(rec.Text())
	text = truncateRunes(text, maxPromptChars)

	answer, err := c.client.Generate(ctx, fmt.Sprintf(sentimentPrompt, text))
	if err != nil {
		return 0, err
	}

	label, err := parseLabel(answer)
	if err != nil {
		c.logger.Debug("model answer ignored", "site", rec.Site, "answer", answer)
		return 0, err
	}
	return label, nil
}

// truncateRunes cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// parseLabel accepts a bare digit or word, or a JSON object with a
// "sentiment" key, as models tend to produce either.
func parseLabel(answer string) (int, error) {
	answer = strings.TrimSpace(answer)

	if strings.Contains(answer, "{") {
		var obj struct {
			Sentiment any `json:"sentiment"`
		}
		if err := json.Unmarshal([]byte(extractJSON(answer)), &obj); err == nil && obj.Sentiment != nil {
			answer = fmt.Sprint(obj.Sentiment)
		}
	}

	word := strings.ToLower(strings.Trim(firstField(answer), `."'*`))
	switch word {
	case "1", "positive", "positif", "pos":
		return types.SentimentPositive, nil
	case "0", "negative", "négatif", "negatif", "neg":
		return types.SentimentNegative, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnparsableAnswer, answer)
}

func firstField(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
