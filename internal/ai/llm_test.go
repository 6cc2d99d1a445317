package ai

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/hugaba/api-sentiment-analysis/internal/config"
	"github.com/hugaba/api-sentiment-analysis/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func ollamaServer(t *testing.T, answer string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			http.NotFound(w, r)
			return
		}
		var payload map[string]any
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if payload["stream"] != false {
			http.Error(w, "stream must be false", http.StatusBadRequest)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"response": answer})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func aiConfig(provider, endpoint string) config.AIConfig {
	return config.AIConfig{
		Provider:  provider,
		Model:     "test",
		Endpoint:  endpoint,
		MaxTokens: 8,
		Timeout:   5 * time.Second,
	}
}

func TestLLMClassifierOllama(t *testing.T) {
	tests := []struct {
		answer string
		want   int
	}{
		{"1", types.SentimentPositive},
		{" 0\n", types.SentimentNegative},
		{"Positive.", types.SentimentPositive},
		{`{"sentiment": 0}`, types.SentimentNegative},
		{`Here you go: {"sentiment": "positive"}`, types.SentimentPositive},
	}

	for _, tt := range tests {
		t.Run(tt.answer, func(t *testing.T) {
			srv := ollamaServer(t, tt.answer)
			c := NewLLMClassifier(NewLLMClient(aiConfig("ollama", srv.URL), testLogger), testLogger)

			got, err := c.Classify(context.Background(), types.ReviewRecord{Title: "Super", Body: "Rien à dire"})
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestLLMClassifierUnparsable(t *testing.T) {
	srv := ollamaServer(t, "I cannot decide")
	c := NewLLMClassifier(NewLLMClient(aiConfig("ollama", srv.URL), testLogger), testLogger)

	_, err := c.Classify(context.Background(), types.ReviewRecord{Body: "Bof"})
	if !errors.Is(err, ErrUnparsableAnswer) {
		t.Fatalf("expected ErrUnparsableAnswer, got %v", err)
	}
}

func TestLLMClassifierTruncatesOnRuneBoundary(t *testing.T) {
	var prompt string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		prompt, _ = payload["prompt"].(string)
		json.NewEncoder(w).Encode(map[string]string{"response": "1"})
	}))
	defer srv.Close()
	c := NewLLMClassifier(NewLLMClient(aiConfig("ollama", srv.URL), testLogger), testLogger)

	body := strings.Repeat("a", maxPromptChars-1) + "été"
	if _, err := c.Classify(context.Background(), types.ReviewRecord{Body: body}); err != nil {
		t.Fatal(err)
	}
	if strings.ContainsRune(prompt, utf8.RuneError) {
		t.Error("prompt carries a replacement character")
	}
	if !strings.HasSuffix(prompt, strings.Repeat("a", maxPromptChars-1)) {
		t.Errorf("prompt should end before the split accent, tail %q", prompt[len(prompt)-5:])
	}

	for _, tt := range []struct {
		in   string
		n    int
		want string
	}{
		{"court", 10, "court"},
		{"abé", 3, "ab"},
		{"abé", 4, "abé"},
		{"été", 1, ""},
	} {
		if got := truncateRunes(tt.in, tt.n); got != tt.want {
			t.Errorf("truncateRunes(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}

func TestLLMClientOpenAI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer secret" {
			http.Error(w, "bad auth "+got, http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"0"}}]}`))
	}))
	defer srv.Close()

	cfg := aiConfig("openai", srv.URL)
	cfg.APIKey = "secret"
	c := NewLLMClassifier(NewLLMClient(cfg, testLogger), testLogger)

	if c.Name() != "llm:openai" {
		t.Errorf("unexpected name %q", c.Name())
	}
	got, err := c.Classify(context.Background(), types.ReviewRecord{Body: "Arnaque"})
	if err != nil {
		t.Fatal(err)
	}
	if got != types.SentimentNegative {
		t.Errorf("got %d, want negative", got)
	}
}

func TestLLMClientHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewLLMClient(aiConfig("ollama", srv.URL), testLogger)
	_, err := client.Generate(context.Background(), "hi")
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected HTTP 503 error, got %v", err)
	}
}

func TestLLMClientUnsupportedProvider(t *testing.T) {
	client := NewLLMClient(aiConfig("mystery", "http://localhost"), testLogger)
	if _, err := client.Generate(context.Background(), "hi"); !errors.Is(err, ErrUnsupportedProvider) {
		t.Fatalf("expected ErrUnsupportedProvider, got %v", err)
	}
}

func TestExtractJSON(t *testing.T) {
	if got := extractJSON(`noise {"a":{"b":1}} tail`); got != `{"a":{"b":1}}` {
		t.Errorf("unexpected %q", got)
	}
	if got := extractJSON("none"); got != "{}" {
		t.Errorf("unexpected %q", got)
	}
}
