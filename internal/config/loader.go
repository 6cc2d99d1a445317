package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file, environment, and defaults.
// Priority (highest to lowest): env vars > config file > defaults. CLI flags
// are applied by the caller on the returned Config.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("REVIEWSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("reviewscan")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".reviewscan"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is okay if not explicitly specified
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// An explicit empty list in the file would leave the fetcher without a
	// client fingerprint.
	if len(cfg.Fetcher.HeaderProfiles) == 0 {
		cfg.Fetcher.HeaderProfiles = DefaultHeaderProfiles()
	}

	return cfg, nil
}

// setDefaults registers default values in viper so env overrides resolve.
func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("site.base_url", cfg.Site.BaseURL)
	v.SetDefault("site.domain_suffixes", cfg.Site.DomainSuffixes)
	v.SetDefault("site.removal_markers", cfg.Site.RemovalMarkers)

	v.SetDefault("fetcher.type", cfg.Fetcher.Type)
	v.SetDefault("fetcher.primary_timeout", cfg.Fetcher.PrimaryTimeout)
	v.SetDefault("fetcher.retry_timeout", cfg.Fetcher.RetryTimeout)
	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)
	v.SetDefault("fetcher.stealth", cfg.Fetcher.Stealth)
	v.SetDefault("fetcher.detect_challenges", cfg.Fetcher.DetectChallenges)

	v.SetDefault("proxy.enabled", cfg.Proxy.Enabled)
	v.SetDefault("proxy.rotation", cfg.Proxy.Rotation)

	v.SetDefault("discovery.requests_per_second", cfg.Discovery.RequestsPerSecond)
	v.SetDefault("discovery.max_pages", cfg.Discovery.MaxPages)

	v.SetDefault("extraction.max_delay", cfg.Extraction.MaxDelay)
	v.SetDefault("extraction.site_concurrency", cfg.Extraction.SiteConcurrency)

	v.SetDefault("markup.business_title", cfg.Markup.BusinessTitle)
	v.SetDefault("markup.listing_next", cfg.Markup.ListingNext)
	v.SetDefault("markup.search_result_xpath", cfg.Markup.SearchResultXPath)
	v.SetDefault("markup.search_separator", cfg.Markup.SearchSeparator)
	v.SetDefault("markup.review_block", cfg.Markup.ReviewBlock)
	v.SetDefault("markup.review_rating", cfg.Markup.ReviewRating)
	v.SetDefault("markup.review_title", cfg.Markup.ReviewTitle)
	v.SetDefault("markup.review_body", cfg.Markup.ReviewBody)
	v.SetDefault("markup.review_dates", cfg.Markup.ReviewDates)
	v.SetDefault("markup.review_next", cfg.Markup.ReviewNext)
	v.SetDefault("markup.published_date_pattern", cfg.Markup.PublishedDatePattern)

	v.SetDefault("analysis.top_words", cfg.Analysis.TopWords)
	v.SetDefault("analysis.recent_months", cfg.Analysis.RecentMonths)
	v.SetDefault("analysis.bigrams", cfg.Analysis.Bigrams)
	v.SetDefault("analysis.bigram_min_count", cfg.Analysis.BigramMinCount)

	v.SetDefault("classifier.positive_rating", cfg.Classifier.PositiveRating)
	v.SetDefault("classifier.alt.provider", cfg.Classifier.Alt.Provider)
	v.SetDefault("classifier.alt.model", cfg.Classifier.Alt.Model)
	v.SetDefault("classifier.alt.endpoint", cfg.Classifier.Alt.Endpoint)
	v.SetDefault("classifier.alt.api_key", cfg.Classifier.Alt.APIKey)
	v.SetDefault("classifier.alt.max_tokens", cfg.Classifier.Alt.MaxTokens)
	v.SetDefault("classifier.alt.temperature", cfg.Classifier.Alt.Temperature)
	v.SetDefault("classifier.alt.timeout", cfg.Classifier.Alt.Timeout)

	v.SetDefault("storage.type", cfg.Storage.Type)
	v.SetDefault("storage.output_path", cfg.Storage.OutputPath)
	v.SetDefault("storage.batch_size", cfg.Storage.BatchSize)
	v.SetDefault("storage.mongo_uri", cfg.Storage.MongoURI)
	v.SetDefault("storage.mongo_database", cfg.Storage.MongoDatabase)
	v.SetDefault("storage.mongo_collection", cfg.Storage.MongoCollection)

	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
