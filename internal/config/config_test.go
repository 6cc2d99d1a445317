package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.Fetcher.PrimaryTimeout != time.Second {
		t.Errorf("expected 1s primary timeout, got %v", cfg.Fetcher.PrimaryTimeout)
	}
	if cfg.Analysis.TopWords != 40 {
		t.Errorf("expected top_words 40, got %d", cfg.Analysis.TopWords)
	}
	if len(cfg.Fetcher.HeaderProfiles) < 2 {
		t.Errorf("expected a pool of header profiles, got %d", len(cfg.Fetcher.HeaderProfiles))
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"fetcher type", func(c *Config) { c.Fetcher.Type = "ftp" }, "fetcher.type"},
		{"primary timeout", func(c *Config) { c.Fetcher.PrimaryTimeout = 0 }, "fetcher.primary_timeout"},
		{"base url", func(c *Config) { c.Site.BaseURL = "trustpilot" }, "site.base_url"},
		{"suffixes", func(c *Config) { c.Site.DomainSuffixes = nil }, "site.domain_suffixes"},
		{"site concurrency", func(c *Config) { c.Extraction.SiteConcurrency = 0 }, "extraction.site_concurrency"},
		{"max pages", func(c *Config) { c.Discovery.MaxPages = -1 }, "discovery.max_pages"},
		{"date pattern", func(c *Config) { c.Markup.PublishedDatePattern = "(" }, "markup.published_date_pattern"},
		{"top words", func(c *Config) { c.Analysis.TopWords = 0 }, "analysis.top_words"},
		{"storage", func(c *Config) { c.Storage.Type = "s3" }, "storage.type"},
		{"mongo uri", func(c *Config) { c.Storage.Type = "mongodb" }, "storage.mongo_uri"},
		{"storage list", func(c *Config) { c.Storage.Type = "jsonl, ftp" }, "storage.type"},
		{"log level", func(c *Config) { c.Logging.Level = "trace" }, "logging.level"},
		{"positive rating", func(c *Config) { c.Classifier.PositiveRating = 6 }, "classifier.positive_rating"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error mentioning %q, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reviewscan.yaml")
	content := `
site:
  base_url: https://www.trustpilot.com
fetcher:
  primary_timeout: 2s
extraction:
  site_concurrency: 4
analysis:
  extra_stop_words: [colis, produit]
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Site.BaseURL != "https://www.trustpilot.com" {
		t.Errorf("base_url not loaded: %s", cfg.Site.BaseURL)
	}
	if cfg.Fetcher.PrimaryTimeout != 2*time.Second {
		t.Errorf("primary_timeout not loaded: %v", cfg.Fetcher.PrimaryTimeout)
	}
	if cfg.Extraction.SiteConcurrency != 4 {
		t.Errorf("site_concurrency not loaded: %d", cfg.Extraction.SiteConcurrency)
	}
	if diff := cmp.Diff([]string{"colis", "produit"}, cfg.Analysis.ExtraStopWords); diff != "" {
		t.Errorf("extra_stop_words mismatch (-want +got):\n%s", diff)
	}
	// untouched sections keep their defaults
	if cfg.Fetcher.RetryTimeout != 30*time.Second {
		t.Errorf("retry_timeout default lost: %v", cfg.Fetcher.RetryTimeout)
	}
	if len(cfg.Fetcher.HeaderProfiles) == 0 {
		t.Error("header profiles default lost")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("REVIEWSCAN_SERVER_PORT", "8088")
	t.Setenv("REVIEWSCAN_LOGGING_LEVEL", "debug")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		// explicit path that does not exist must fail
		t.Fatal("expected error for missing explicit config file")
	}

	// without an explicit path a missing file is fine
	wd, _ := os.Getwd()
	t.Cleanup(func() { os.Chdir(wd) })
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Setenv("HOME", t.TempDir())

	cfg, err = Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8088 {
		t.Errorf("expected env port 8088, got %d", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected env level debug, got %s", cfg.Logging.Level)
	}
}

func TestStorageTypes(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"", []string{"none"}},
		{"jsonl", []string{"jsonl"}},
		{" jsonl , sqlite,", []string{"jsonl", "sqlite"}},
	}
	for _, tt := range tests {
		got := StorageConfig{Type: tt.in}.Types()
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("Types(%q) (-want +got):\n%s", tt.in, diff)
		}
	}
}
