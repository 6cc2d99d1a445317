package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hugaba/api-sentiment-analysis/internal/config"
	"github.com/hugaba/api-sentiment-analysis/internal/observability"
	"github.com/hugaba/api-sentiment-analysis/internal/storage"
	"github.com/hugaba/api-sentiment-analysis/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func listingPage(hasNext bool, names ...string) string {
	body := "<html><body>"
	for _, n := range names {
		body += fmt.Sprintf(`<div class="styles_businessTitle__1IANo">%s</div>`, n)
	}
	if hasNext {
		body += `<a name="pagination-button-next" href="#">Suivant</a>`
	}
	return body + "</body></html>"
}

type review struct {
	date, rating, title, body string
}

func reviewPage(hasNext bool, reviews ...review) string {
	body := "<html><body>"
	for _, r := range reviews {
		body += `<div class="review-content">`
		if r.date != "" {
			body += fmt.Sprintf(`<div class="review-content-header__dates"><script>{"publishedDate":"%s","updatedDate":null}</script></div>`, r.date)
		}
		body += fmt.Sprintf(`<div class="star-rating"><img alt="Noté %s sur 5 étoiles"></div>`, r.rating)
		body += fmt.Sprintf(`<h2 class="review-content__title">%s</h2><p class="review-content__text">%s</p></div>`, r.title, r.body)
	}
	if hasNext {
		body += `<a class="next-page" href="#">Page suivante</a>`
	}
	return body + "</body></html>"
}

// trustpilotStub serves a two-page category, one search result and the
// review pages of two sites.
func trustpilotStub(t *testing.T) *httptest.Server {
	t.Helper()
	pages := map[string]string{
		"/categories/bijoux?page=1": listingPage(true, "Flashbay", "shop.fr"),
		"/categories/bijoux?page=2": listingPage(false, "shop.fr", "Oldshop n'existe plus"),
		"/search?query=Flashbay": `<html><body>
			<a class="search-result-heading">Flashbay | flashbay.fr</a></body></html>`,
		"/review/flashbay.fr?page=1": reviewPage(true,
			review{"2024-05-20T09:00:00Z", "5", "Parfait", "Livré vite et bien emballé"}),
		"/review/flashbay.fr?page=2": reviewPage(false,
			review{"2023-01-10T09:00:00Z", "1", "Arnaque", "Colis abîmé"}),
		"/review/shop.fr?page=1": reviewPage(false,
			review{"", "4", "Correct", "Rien à signaler"}),
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.RequestURI()]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.Site.BaseURL = baseURL
	cfg.Discovery.RequestsPerSecond = 0
	cfg.Extraction.MaxDelay = 0
	cfg.Fetcher.RetryTimeout = 2 * time.Second
	return cfg
}

func newTestEngine(t *testing.T, cfg *config.Config, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	e, err := New(cfg, testLogger, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestRun(t *testing.T) {
	srv := trustpilotStub(t)
	e := newTestEngine(t, testConfig(srv.URL))

	report, err := e.Run(context.Background(), types.RunConfig{Category: "bijoux", SiteLimit: 5}, RunOptions{})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	s := report.Summary
	if s.NbReviewAnalysed != 3 || s.NbReview.Pos != 2 || s.NbReview.Neg != 1 {
		t.Errorf("summary counts = %d (%+v)", s.NbReviewAnalysed, s.NbReview)
	}
	if s.NbConcurrent == nil || *s.NbConcurrent != 2 || *s.NbConcurrentAnalysed != 2 {
		t.Errorf("site block = %v/%v", s.NbConcurrent, s.NbConcurrentAnalysed)
	}
	if diff := cmp.Diff([]types.ResolvedSite{"flashbay.fr", "shop.fr"}, report.Details.Sites()); diff != "" {
		t.Errorf("details sites (-want +got):\n%s", diff)
	}
	if report.Recent.NbReviewAnalysed != 1 {
		t.Errorf("recent count = %d, want 1", report.Recent.NbReviewAnalysed)
	}
	if s.WordCloud.Pos.Count("parfait") != 1 || s.WordCloud.Neg.Count("arnaque") != 1 {
		t.Errorf("unexpected clouds %+v", s.WordCloud)
	}

	run := report.Run
	if run == nil || run.ID == "" || run.Classifier != "lexicon" {
		t.Fatalf("unexpected run info %+v", run)
	}
	// 2 listing + 1 search + 3 review pages
	if run.Fetch.Attempted != 6 || run.Fetch.Failed != 0 {
		t.Errorf("fetch stats = %+v", *run.Fetch)
	}
	if _, ok := run.Stages[StageTotal]; !ok {
		t.Error("total stage timing missing")
	}
	if e.ActiveRuns() != 0 {
		t.Errorf("active runs leaked: %d", e.ActiveRuns())
	}
}

func TestRunPageLimit(t *testing.T) {
	srv := trustpilotStub(t)
	e := newTestEngine(t, testConfig(srv.URL))

	report, err := e.Run(context.Background(), types.RunConfig{Category: "bijoux", SiteLimit: 1, PageLimit: 1}, RunOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if report.Summary.NbReviewAnalysed != 1 {
		t.Errorf("expected one review, got %d", report.Summary.NbReviewAnalysed)
	}
	if *report.Summary.NbConcurrent != 2 || *report.Summary.NbConcurrentAnalysed != 1 {
		t.Errorf("site block = %d/%d, want 2/1", *report.Summary.NbConcurrent, *report.Summary.NbConcurrentAnalysed)
	}
}

func TestRunMissingCategory(t *testing.T) {
	e := newTestEngine(t, testConfig("http://127.0.0.1"))
	report, err := e.Run(context.Background(), types.RunConfig{Category: "  "}, RunOptions{})
	if !errors.Is(err, types.ErrMissingCategory) || report != nil {
		t.Fatalf("expected ErrMissingCategory and no report, got %v, %v", report, err)
	}
}

func TestRunUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	m := observability.NewMetrics(testLogger)
	e := newTestEngine(t, testConfig(base), WithMetrics(m))

	report, err := e.Run(context.Background(), types.RunConfig{Category: "bijoux"}, RunOptions{})
	if !errors.Is(err, types.ErrHostUnreachable) {
		t.Fatalf("expected ErrHostUnreachable, got %v", err)
	}
	if report == nil || report.Summary.NbReviewAnalysed != 0 {
		t.Fatalf("expected an empty report alongside the error, got %+v", report)
	}
	if m.RunsUnreachable.Load() != 1 || m.RunsFailed.Load() != 1 {
		t.Errorf("metrics not updated: %v", m.Snapshot())
	}
}

func TestRunNotFoundIsNotUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	e := newTestEngine(t, testConfig(srv.URL))
	report, err := e.Run(context.Background(), types.RunConfig{Category: "inconnue"}, RunOptions{})
	if err != nil {
		t.Fatalf("a host that answers is reachable, got %v", err)
	}
	if report.Summary.NbReviewAnalysed != 0 || *report.Summary.NbConcurrent != 0 {
		t.Errorf("expected an empty report, got %+v", report.Summary)
	}
}

func TestRunCancelled(t *testing.T) {
	srv := trustpilotStub(t)
	e := newTestEngine(t, testConfig(srv.URL))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := e.Run(ctx, types.RunConfig{Category: "bijoux"}, RunOptions{})
	if !errors.Is(err, context.Canceled) || report != nil {
		t.Fatalf("expected context.Canceled and no report, got %v, %v", report, err)
	}
}

type failingClassifier struct{}

func (failingClassifier) Name() string { return "llm:test" }

func (failingClassifier) Classify(context.Context, types.ReviewRecord) (int, error) {
	return 0, errors.New("model offline")
}

func TestRunAltClassifierFallsBack(t *testing.T) {
	srv := trustpilotStub(t)
	m := observability.NewMetrics(testLogger)
	e := newTestEngine(t, testConfig(srv.URL), WithAltClassifier(failingClassifier{}), WithMetrics(m))

	report, err := e.Run(context.Background(), types.RunConfig{Category: "bijoux"}, RunOptions{UseAltClassifier: true})
	if err != nil {
		t.Fatal(err)
	}
	if report.Run.Classifier != "llm:test" {
		t.Errorf("classifier = %q", report.Run.Classifier)
	}
	if report.Summary.NbReview.Pos != 2 || report.Summary.NbReview.Neg != 1 {
		t.Errorf("fallback labels differ from lexicon: %+v", report.Summary.NbReview)
	}
	if got := m.ClassifierFallbacks.Load(); got != 3 {
		t.Errorf("fallbacks = %d, want 3", got)
	}
	if total, _, _ := m.PageSnapshot("review"); total != 3 {
		t.Errorf("review fetches observed = %d, want 3", total)
	}
}

func TestRunExport(t *testing.T) {
	srv := trustpilotStub(t)
	cfg := testConfig(srv.URL)
	cfg.Storage.Type = "jsonl"
	cfg.Storage.OutputPath = t.TempDir()
	e := newTestEngine(t, cfg)

	report, err := e.Run(context.Background(), types.RunConfig{Category: "bijoux"}, RunOptions{})
	if err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(cfg.Storage.OutputPath, "reviews-"+report.Run.ID+".jsonl")
	recs, err := storage.Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	again := e.Analyze(recs)
	if diff := cmp.Diff(report.Summary.NbReview, again.Summary.NbReview); diff != "" {
		t.Errorf("analyze counts differ (-run +analyze):\n%s", diff)
	}
	if diff := cmp.Diff(report.Summary.WordCloud, again.Summary.WordCloud); diff != "" {
		t.Errorf("analyze clouds differ (-run +analyze):\n%s", diff)
	}
	if again.Summary.NbConcurrent != nil {
		t.Error("retrospective report must not carry the site block")
	}
	if again.Recent.NbReviewAnalysed != report.Recent.NbReviewAnalysed {
		t.Errorf("recent differs: %d vs %d", again.Recent.NbReviewAnalysed, report.Recent.NbReviewAnalysed)
	}
}
