package config

import (
	"fmt"
	"net/url"
	"regexp"
)

// Validate checks the configuration for invalid values.
func Validate(cfg *Config) error {
	if err := ValidateURL(cfg.Site.BaseURL); err != nil {
		return fmt.Errorf("site.base_url: %w", err)
	}
	if len(cfg.Site.DomainSuffixes) == 0 {
		return fmt.Errorf("site.domain_suffixes must not be empty")
	}

	if cfg.Fetcher.Type != "http" && cfg.Fetcher.Type != "browser" {
		return fmt.Errorf("fetcher.type must be 'http' or 'browser', got %q", cfg.Fetcher.Type)
	}
	if cfg.Fetcher.PrimaryTimeout <= 0 {
		return fmt.Errorf("fetcher.primary_timeout must be > 0")
	}
	if cfg.Fetcher.RetryTimeout <= 0 {
		return fmt.Errorf("fetcher.retry_timeout must be > 0")
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return fmt.Errorf("fetcher.max_body_size must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return fmt.Errorf("fetcher.max_redirects must be >= 0")
	}
	for i, p := range cfg.Fetcher.HeaderProfiles {
		if len(p.Headers) == 0 {
			return fmt.Errorf("fetcher.header_profiles[%d] (%s) has no headers", i, p.Name)
		}
	}

	if cfg.Proxy.Enabled {
		if cfg.Proxy.Rotation != "round_robin" && cfg.Proxy.Rotation != "random" {
			return fmt.Errorf("proxy.rotation must be 'round_robin' or 'random', got %q", cfg.Proxy.Rotation)
		}
		for _, proxyURL := range cfg.Proxy.URLs {
			if _, err := url.Parse(proxyURL); err != nil {
				return fmt.Errorf("invalid proxy URL %q: %w", proxyURL, err)
			}
		}
	}

	if cfg.Discovery.RequestsPerSecond < 0 {
		return fmt.Errorf("discovery.requests_per_second must be >= 0")
	}
	if cfg.Discovery.MaxPages < 0 {
		return fmt.Errorf("discovery.max_pages must be >= 0, got %d", cfg.Discovery.MaxPages)
	}

	if cfg.Extraction.MaxDelay < 0 {
		return fmt.Errorf("extraction.max_delay must be >= 0")
	}
	if cfg.Extraction.SiteConcurrency < 1 {
		return fmt.Errorf("extraction.site_concurrency must be >= 1, got %d", cfg.Extraction.SiteConcurrency)
	}

	if _, err := regexp.Compile(cfg.Markup.PublishedDatePattern); err != nil {
		return fmt.Errorf("markup.published_date_pattern: %w", err)
	}

	if cfg.Analysis.TopWords < 1 {
		return fmt.Errorf("analysis.top_words must be >= 1, got %d", cfg.Analysis.TopWords)
	}
	if cfg.Analysis.RecentMonths < 0 {
		return fmt.Errorf("analysis.recent_months must be >= 0, got %d", cfg.Analysis.RecentMonths)
	}

	if cfg.Classifier.PositiveRating < 1 || cfg.Classifier.PositiveRating > 5 {
		return fmt.Errorf("classifier.positive_rating must be 1-5, got %d", cfg.Classifier.PositiveRating)
	}

	validStorageTypes := map[string]bool{
		"none": true, "json": true, "jsonl": true, "csv": true, "mongodb": true, "sqlite": true,
	}
	for _, t := range cfg.Storage.Types() {
		if !validStorageTypes[t] {
			return fmt.Errorf("storage.type %q is not supported (valid: none, json, jsonl, csv, mongodb, sqlite)", t)
		}
		if t == "mongodb" && cfg.Storage.MongoURI == "" {
			return fmt.Errorf("storage.mongo_uri is required for mongodb storage")
		}
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", cfg.Server.Port)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return fmt.Errorf("metrics.port must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateURL checks if a URL string is valid for crawling.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
