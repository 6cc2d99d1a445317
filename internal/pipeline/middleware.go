package pipeline

import (
	"context"
	"html"
	"log/slog"
	"regexp"
	"strings"
	"sync/atomic"

	"github.com/hugaba/api-sentiment-analysis/internal/nlp"
	"github.com/hugaba/api-sentiment-analysis/internal/types"
)

// SanitizeMiddleware strips leftover markup and entities from the title and
// body, then collapses whitespace.
type SanitizeMiddleware struct {
	stripRe *regexp.Regexp
}

func NewSanitizeMiddleware() *SanitizeMiddleware {
	return &SanitizeMiddleware{
		stripRe: regexp.MustCompile(`<[^>]*>`),
	}
}

func (m *SanitizeMiddleware) Name() string { return "sanitize" }

func (m *SanitizeMiddleware) Process(_ context.Context, rec *types.AnnotatedRecord) (*types.AnnotatedRecord, error) {
	rec.Title = m.clean(rec.Title)
	rec.Body = m.clean(rec.Body)
	return rec, nil
}

func (m *SanitizeMiddleware) clean(s string) string {
	if s == "" {
		return s
	}
	s = m.stripRe.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	return strings.Join(strings.Fields(s), " ")
}

// TokenizeMiddleware fills Tokens from the review text.
type TokenizeMiddleware struct {
	Normalizer nlp.Normalizer
}

func (m *TokenizeMiddleware) Name() string { return "tokenize" }

func (m *TokenizeMiddleware) Process(_ context.Context, rec *types.AnnotatedRecord) (*types.AnnotatedRecord, error) {
	rec.Tokens = m.Normalizer.Normalize(rec.Text())
	if rec.Tokens == nil {
		rec.Tokens = []string{}
	}
	return rec, nil
}

// ClassifyMiddleware sets Sentiment. When the primary classifier fails the
// fallback labels the record and the failure is logged.
type ClassifyMiddleware struct {
	primary   nlp.Classifier
	fallback  nlp.Classifier
	fallbacks atomic.Int64
	logger    *slog.Logger
}

// NewClassifyMiddleware creates the classification stage. fallback may be nil,
// in which case a primary failure fails the record.
func NewClassifyMiddleware(primary, fallback nlp.Classifier, logger *slog.Logger) *ClassifyMiddleware {
	return &ClassifyMiddleware{
		primary:  primary,
		fallback: fallback,
		logger:   logger.With("component", "classify", "classifier", primary.Name()),
	}
}

func (m *ClassifyMiddleware) Name() string { return "classify" }

// Fallbacks returns how many records the fallback classifier labelled.
func (m *ClassifyMiddleware) Fallbacks() int64 { return m.fallbacks.Load() }

func (m *ClassifyMiddleware) Process(ctx context.Context, rec *types.AnnotatedRecord) (*types.AnnotatedRecord, error) {
	label, err := m.primary.Classify(ctx, rec.ReviewRecord)
	if err == nil {
		rec.Sentiment = label
		return rec, nil
	}
	if m.fallback == nil || ctx.Err() != nil {
		return nil, err
	}

	m.logger.Warn("classifier failed, using fallback",
		"site", rec.Site,
		"fallback", m.fallback.Name(),
		"error", err,
	)
	label, err = m.fallback.Classify(ctx, rec.ReviewRecord)
	if err != nil {
		return nil, err
	}
	m.fallbacks.Add(1)
	rec.Sentiment = label
	return rec, nil
}

// BigramStage joins frequent adjacent token pairs across the whole batch.
type BigramStage struct {
	MinCount int
}

func (s *BigramStage) Name() string { return "bigrams" }

func (s *BigramStage) ProcessBatch(_ context.Context, recs []types.AnnotatedRecord) ([]types.AnnotatedRecord, error) {
	docs := make([][]string, len(recs))
	for i := range recs {
		docs[i] = recs[i].Tokens
	}
	for i, joined := range nlp.JoinBigrams(docs, s.MinCount) {
		recs[i].Tokens = joined
	}
	return recs, nil
}
