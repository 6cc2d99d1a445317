package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hugaba/api-sentiment-analysis/internal/config"
)

// LLMProvider specifies which LLM backend to use.
type LLMProvider string

const (
	ProviderOllama LLMProvider = "ollama"
	ProviderOpenAI LLMProvider = "openai"
	ProviderCustom LLMProvider = "custom"
)

const defaultOpenAIEndpoint = "https://api.openai.com/v1"

// ErrUnsupportedProvider is returned by Generate for an unknown provider.
var ErrUnsupportedProvider = errors.New("unsupported LLM provider")

// LLMClient communicates with an LLM over HTTP.
type LLMClient struct {
	cfg    config.AIConfig
	client *http.Client
	logger *slog.Logger
}

// NewLLMClient creates a new LLM client.
func NewLLMClient(cfg config.AIConfig, logger *slog.Logger) *LLMClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &LLMClient{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger.With("component", "llm_client"),
	}
}

// Provider returns the configured backend.
func (c *LLMClient) Provider() LLMProvider { return LLMProvider(c.cfg.Provider) }

// Generate sends a prompt to the LLM and returns the response.
func (c *LLMClient) Generate(ctx context.Context, prompt string) (string, error) {
	switch c.Provider() {
	case ProviderOllama:
		return c.generateOllama(ctx, prompt)
	case ProviderOpenAI:
		return c.generateOpenAI(ctx, prompt)
	case ProviderCustom:
		return c.generateCustom(ctx, prompt)
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedProvider, c.cfg.Provider)
	}
}

func (c *LLMClient) generateOllama(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model":  c.cfg.Model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": c.cfg.Temperature,
			"num_predict": c.cfg.MaxTokens,
		},
	}

	resp, err := c.post(ctx, strings.TrimRight(c.cfg.Endpoint, "/")+"/api/generate", payload, false)
	if err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Response string `json:"response"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode ollama response: %w", err)
	}
	return result.Response, nil
}

func (c *LLMClient) generateOpenAI(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model": c.cfg.Model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens":  c.cfg.MaxTokens,
		"temperature": c.cfg.Temperature,
	}

	endpoint := c.cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultOpenAIEndpoint
	}

	resp, err := c.post(ctx, strings.TrimRight(endpoint, "/")+"/chat/completions", payload, true)
	if err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode openai response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in openai response")
	}
	return result.Choices[0].Message.Content, nil
}

func (c *LLMClient) generateCustom(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"prompt": prompt,
		"model":  c.cfg.Model,
	}

	resp, err := c.post(ctx, c.cfg.Endpoint, payload, c.cfg.APIKey != "")
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(respBody), nil
}

func (c *LLMClient) post(ctx context.Context, endpoint string, payload any, auth bool) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, endpoint)
	}
	return resp, nil
}

// extractJSON tries to find a JSON object in the LLM response.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	if start < 0 {
		return "{}"
	}
	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return "{}"
}
