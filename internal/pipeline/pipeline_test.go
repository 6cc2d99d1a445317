package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/hugaba/api-sentiment-analysis/internal/nlp"
	"github.com/hugaba/api-sentiment-analysis/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type stubClassifier struct {
	name  string
	label int
	err   error
	calls int
}

func (s *stubClassifier) Name() string { return s.name }

func (s *stubClassifier) Classify(context.Context, types.ReviewRecord) (int, error) {
	s.calls++
	return s.label, s.err
}

type dropSite struct{ site types.ResolvedSite }

func (d dropSite) Name() string { return "drop_site" }

func (d dropSite) Process(_ context.Context, rec *types.AnnotatedRecord) (*types.AnnotatedRecord, error) {
	if rec.Site == d.site {
		return nil, nil
	}
	return rec, nil
}

func TestSanitizeMiddleware(t *testing.T) {
	m := NewSanitizeMiddleware()
	rec := &types.AnnotatedRecord{ReviewRecord: types.ReviewRecord{
		Title: "  Très <b>bien</b> ",
		Body:  "Colis reçu &amp; conforme<br>\n merci",
	}}

	got, err := m.Process(context.Background(), rec)
	if err != nil {
		t.Fatal(err)
	}
	if got.Title != "Très bien" {
		t.Errorf("title = %q", got.Title)
	}
	if got.Body != "Colis reçu & conforme merci" {
		t.Errorf("body = %q", got.Body)
	}
}

func TestClassifyFallback(t *testing.T) {
	primary := &stubClassifier{name: "llm", err: errors.New("connection refused")}
	fallback := &stubClassifier{name: "lexicon", label: types.SentimentNegative}
	m := NewClassifyMiddleware(primary, fallback, testLogger)

	got, err := m.Process(context.Background(), &types.AnnotatedRecord{Sentiment: types.SentimentPositive})
	if err != nil {
		t.Fatal(err)
	}
	if got.Sentiment != types.SentimentNegative {
		t.Errorf("expected fallback label, got %d", got.Sentiment)
	}
	if m.Fallbacks() != 1 {
		t.Errorf("expected one fallback, got %d", m.Fallbacks())
	}
	if primary.calls != 1 || fallback.calls != 1 {
		t.Errorf("calls primary=%d fallback=%d", primary.calls, fallback.calls)
	}
}

func TestClassifyNoFallback(t *testing.T) {
	boom := errors.New("boom")
	m := NewClassifyMiddleware(&stubClassifier{name: "llm", err: boom}, nil, testLogger)

	if _, err := m.Process(context.Background(), &types.AnnotatedRecord{}); !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestAnnotate(t *testing.T) {
	p := New(testLogger)
	p.Use(NewSanitizeMiddleware())
	p.Use(&TokenizeMiddleware{Normalizer: nlp.NewFrenchNormalizer(nil)})
	p.Use(NewClassifyMiddleware(nlp.NewLexiconClassifier(4), nil, testLogger))

	reviews := []types.ReviewRecord{
		{Site: "a.fr", Title: "Parfait", Body: "Service client rapide"},
		{Site: "b.fr", Title: "Arnaque", Body: "Service client injoignable"},
		{Site: "a.fr", Title: "", Body: ""},
	}

	got, err := p.Annotate(context.Background(), reviews)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}

	wantTokens := [][]string{
		{"parfait", "service", "client", "rapide"},
		{"arnaque", "service", "client", "injoignable"},
		{},
	}
	wantSentiment := []int{types.SentimentPositive, types.SentimentNegative, types.SentimentPositive}
	for i, rec := range got {
		if rec.Site != reviews[i].Site {
			t.Errorf("record %d: order not preserved, site %q", i, rec.Site)
		}
		if diff := cmp.Diff(wantTokens[i], rec.Tokens); diff != "" {
			t.Errorf("record %d tokens (-want +got):\n%s", i, diff)
		}
		if rec.Sentiment != wantSentiment[i] {
			t.Errorf("record %d sentiment = %d, want %d", i, rec.Sentiment, wantSentiment[i])
		}
	}
}

func TestAnnotateDropsAndFailures(t *testing.T) {
	p := New(testLogger)
	p.Use(dropSite{site: "spam.fr"})
	p.Use(NewClassifyMiddleware(&stubClassifier{name: "broken", err: errors.New("down")}, nil, testLogger))

	got, err := p.Annotate(context.Background(), []types.ReviewRecord{{Site: "spam.fr"}, {Site: "a.fr"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("expected every record left out, got %d", len(got))
	}
}

func TestAnnotateCancelled(t *testing.T) {
	p := New(testLogger)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Annotate(ctx, []types.ReviewRecord{{Site: "a.fr"}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestBigramStage(t *testing.T) {
	p := New(testLogger)
	p.Use(&TokenizeMiddleware{Normalizer: nlp.NewFrenchNormalizer(nil)})
	p.UseBatch(&BigramStage{MinCount: 2})

	got, err := p.Annotate(context.Background(), []types.ReviewRecord{
		{Title: "Service client", Body: "top"},
		{Title: "Service client", Body: "nul"},
	})
	if err != nil {
		t.Fatal(err)
	}
	want := [][]string{{"service_client", "top"}, {"service_client", "nul"}}
	for i := range got {
		if diff := cmp.Diff(want[i], got[i].Tokens); diff != "" {
			t.Errorf("record %d (-want +got):\n%s", i, diff)
		}
	}
	if p.Len() != 1 {
		t.Errorf("expected one middleware, got %d", p.Len())
	}
}
