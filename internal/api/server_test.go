package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hugaba/api-sentiment-analysis/internal/aggregator"
	"github.com/hugaba/api-sentiment-analysis/internal/config"
	"github.com/hugaba/api-sentiment-analysis/internal/engine"
	"github.com/hugaba/api-sentiment-analysis/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type stubRunner struct {
	gotRC   types.RunConfig
	gotOpts engine.RunOptions
	report  *aggregator.Report
	err     error
}

func (s *stubRunner) Run(_ context.Context, rc types.RunConfig, opts engine.RunOptions) (*aggregator.Report, error) {
	s.gotRC, s.gotOpts = rc, opts
	if err := rc.Validate(); err != nil {
		return nil, err
	}
	return s.report, s.err
}

func (s *stubRunner) ActiveRuns() int32 { return 0 }

func sampleReport() *aggregator.Report {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return aggregator.Aggregate([]types.AnnotatedRecord{
		{ReviewRecord: types.ReviewRecord{Site: "a.fr", PublishedAt: &day}, Tokens: []string{"top"}, Sentiment: types.SentimentPositive},
	}, aggregator.Options{Now: day, Sites: &aggregator.SiteContext{Known: 3, Analysed: 1}})
}

func get(t *testing.T, h http.Handler, target string) (*http.Response, []byte) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	resp := rec.Result()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, body
}

func newTestServer(r Runner) *Server {
	return NewServer(config.DefaultConfig().Server, r, testLogger)
}

func TestGraphs(t *testing.T) {
	runner := &stubRunner{report: sampleReport()}
	s := newTestServer(runner)

	resp, body := get(t, s.Handler(), "/graphs?category=animals_pets&location=Paris&num_of_site=3&num_page=0&model=camembert")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, body %s", resp.StatusCode, body)
	}

	want := types.RunConfig{Category: "animals_pets", Location: "Paris", SiteLimit: 3, PageLimit: 0}
	if diff := cmp.Diff(want, runner.gotRC); diff != "" {
		t.Errorf("run config (-want +got):\n%s", diff)
	}
	if !runner.gotOpts.UseAltClassifier {
		t.Error("model parameter should select the alternative classifier")
	}

	var got aggregator.Report
	if err := json.Unmarshal(body, &got); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if got.Summary.NbReviewAnalysed != 1 || *got.Summary.NbConcurrent != 3 {
		t.Errorf("unexpected summary %+v", got.Summary)
	}
}

func TestGraphsDefaults(t *testing.T) {
	runner := &stubRunner{report: sampleReport()}
	s := newTestServer(runner)

	if resp, _ := get(t, s.Handler(), "/graphs?category=sports"); resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if runner.gotRC.SiteLimit != types.DefaultSiteLimit || runner.gotRC.PageLimit != types.DefaultPageLimit {
		t.Errorf("defaults not applied: %+v", runner.gotRC)
	}
	if runner.gotOpts.UseAltClassifier {
		t.Error("lexicon is the default classifier")
	}
}

func TestGraphsErrors(t *testing.T) {
	tests := []struct {
		name   string
		target string
		err    error
		status int
	}{
		{"missing category", "/graphs", nil, http.StatusBadRequest},
		{"bad limit", "/graphs?category=sports&num_page=deux", nil, http.StatusBadRequest},
		{"negative limit", "/graphs?category=sports&num_of_site=-1", nil, http.StatusBadRequest},
		{"unreachable", "/graphs?category=sports", fmt.Errorf("run: %w", types.ErrHostUnreachable), http.StatusBadGateway},
		{"internal", "/graphs?category=sports", fmt.Errorf("create fetcher: boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(&stubRunner{report: sampleReport(), err: tt.err})
			resp, body := get(t, s.Handler(), tt.target)
			if resp.StatusCode != tt.status {
				t.Fatalf("status = %d, want %d (%s)", resp.StatusCode, tt.status, body)
			}
			var payload map[string]any
			if err := json.Unmarshal(body, &payload); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if msg, _ := payload["error"].(string); msg == "" {
				t.Errorf("expected an error message, got %s", body)
			}
		})
	}
}

func TestHomeAndNotFound(t *testing.T) {
	s := newTestServer(&stubRunner{})

	resp, body := get(t, s.Handler(), "/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("home status = %d", resp.StatusCode)
	}
	for _, c := range []string{"restaurants_bars", "vehicles_transportation"} {
		if !strings.Contains(string(body), "<li>"+c+"</li>") {
			t.Errorf("home page lacks category %s", c)
		}
	}

	resp, body = get(t, s.Handler(), "/nope")
	if resp.StatusCode != http.StatusNotFound || !strings.Contains(string(body), "404") {
		t.Errorf("not found = %d %s", resp.StatusCode, body)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(&stubRunner{})
	s.SetVersion("1.2.3")

	resp, body := get(t, s.Handler(), "/api/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatal(err)
	}
	if payload["status"] != "ok" || payload["version"] != "1.2.3" {
		t.Errorf("unexpected health payload %v", payload)
	}
}

func TestHandleMountsExtraRoutes(t *testing.T) {
	s := newTestServer(&stubRunner{})
	s.Handle("GET /metrics", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "reviewscan_runs_total 0\n")
	}))

	resp, body := get(t, s.Handler(), "/metrics")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "reviewscan_runs_total") {
		t.Errorf("metrics route = %d %s", resp.StatusCode, body)
	}
}
