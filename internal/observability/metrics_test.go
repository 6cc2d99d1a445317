package observability

import (
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hugaba/api-sentiment-analysis/internal/fetcher"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

var _ fetcher.Observer = (*Metrics)(nil)

func TestObserveFetch(t *testing.T) {
	m := NewMetrics(testLogger)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m.ObserveFetch("review", i%5 != 0, i%10 == 0, time.Millisecond)
		}(i)
	}
	wg.Wait()
	m.ObserveFetch("listing", true, false, 0)

	total, failed, retried := m.PageSnapshot("review")
	if total != 50 || failed != 10 || retried != 5 {
		t.Errorf("review counters = %d/%d/%d, want 50/10/5", total, failed, retried)
	}
	if total, _, _ := m.PageSnapshot("search"); total != 0 {
		t.Errorf("unseen tag should be zero, got %d", total)
	}
}

func TestServeHTTP(t *testing.T) {
	m := NewMetrics(testLogger)
	m.RunsTotal.Add(2)
	m.ReviewsPositive.Add(7)
	m.ObserveFetch("listing", false, true, 3*time.Millisecond)

	rec := httptest.NewRecorder()
	m.ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Result().Body)
	out := string(body)

	for _, want := range []string{
		"reviewscan_runs_total 2",
		"reviewscan_reviews_positive_total 7",
		"# TYPE reviewscan_active_runs gauge",
		`reviewscan_page_fetches_failed_total{tag="listing"} 1`,
		`reviewscan_page_fetches_retried_total{tag="listing"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output lacks %q", want)
		}
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("unexpected content type %q", ct)
	}
}
