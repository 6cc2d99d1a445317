package config

import (
	"strings"
	"time"
)

// Version is set at build time via ldflags.
var Version = "dev"

// Config is the root configuration for reviewscan.
type Config struct {
	Site       SiteConfig       `mapstructure:"site"       yaml:"site"`
	Fetcher    FetcherConfig    `mapstructure:"fetcher"    yaml:"fetcher"`
	Proxy      ProxyConfig      `mapstructure:"proxy"      yaml:"proxy"`
	Discovery  DiscoveryConfig  `mapstructure:"discovery"  yaml:"discovery"`
	Extraction ExtractionConfig `mapstructure:"extraction" yaml:"extraction"`
	Markup     MarkupConfig     `mapstructure:"markup"     yaml:"markup"`
	Analysis   AnalysisConfig   `mapstructure:"analysis"   yaml:"analysis"`
	Classifier ClassifierConfig `mapstructure:"classifier" yaml:"classifier"`
	Storage    StorageConfig    `mapstructure:"storage"    yaml:"storage"`
	Server     ServerConfig     `mapstructure:"server"     yaml:"server"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"    yaml:"metrics"`
}

// SiteConfig describes the crawled review site.
type SiteConfig struct {
	BaseURL        string   `mapstructure:"base_url"        yaml:"base_url"`
	DomainSuffixes []string `mapstructure:"domain_suffixes" yaml:"domain_suffixes"`
	RemovalMarkers []string `mapstructure:"removal_markers" yaml:"removal_markers"`
}

// FetcherConfig controls the page fetcher.
type FetcherConfig struct {
	Type             string          `mapstructure:"type"              yaml:"type"`
	PrimaryTimeout   time.Duration   `mapstructure:"primary_timeout"   yaml:"primary_timeout"`
	RetryTimeout     time.Duration   `mapstructure:"retry_timeout"     yaml:"retry_timeout"`
	FollowRedirects  bool            `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects     int             `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize      int64           `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure      bool            `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout  time.Duration   `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns     int             `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	Stealth          bool            `mapstructure:"stealth"           yaml:"stealth"`
	DetectChallenges bool            `mapstructure:"detect_challenges" yaml:"detect_challenges"`
	HeaderProfiles   []HeaderProfile `mapstructure:"header_profiles"   yaml:"header_profiles"`
}

// HeaderProfile is a named set of request headers presented as one client.
type HeaderProfile struct {
	Name    string            `mapstructure:"name"    yaml:"name"`
	Headers map[string]string `mapstructure:"headers" yaml:"headers"`
}

// ProxyConfig controls proxy rotation.
type ProxyConfig struct {
	Enabled  bool     `mapstructure:"enabled"  yaml:"enabled"`
	Rotation string   `mapstructure:"rotation" yaml:"rotation"`
	URLs     []string `mapstructure:"urls"     yaml:"urls"`
}

// DiscoveryConfig controls the category walk.
type DiscoveryConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
	MaxPages          int     `mapstructure:"max_pages"           yaml:"max_pages"`
}

// ExtractionConfig controls the review walk.
type ExtractionConfig struct {
	MaxDelay        time.Duration `mapstructure:"max_delay"        yaml:"max_delay"`
	SiteConcurrency int           `mapstructure:"site_concurrency" yaml:"site_concurrency"`
}

// MarkupConfig holds the selectors the parser relies on. The crawled site's
// markup is outside our control, so every selector is overridable.
type MarkupConfig struct {
	BusinessTitle        string `mapstructure:"business_title"         yaml:"business_title"`
	ListingNext          string `mapstructure:"listing_next"           yaml:"listing_next"`
	SearchResultXPath    string `mapstructure:"search_result_xpath"    yaml:"search_result_xpath"`
	SearchSeparator      string `mapstructure:"search_separator"       yaml:"search_separator"`
	ReviewBlock          string `mapstructure:"review_block"           yaml:"review_block"`
	ReviewRating         string `mapstructure:"review_rating"          yaml:"review_rating"`
	ReviewTitle          string `mapstructure:"review_title"           yaml:"review_title"`
	ReviewBody           string `mapstructure:"review_body"            yaml:"review_body"`
	ReviewDates          string `mapstructure:"review_dates"           yaml:"review_dates"`
	ReviewNext           string `mapstructure:"review_next"            yaml:"review_next"`
	PublishedDatePattern string `mapstructure:"published_date_pattern" yaml:"published_date_pattern"`
}

// AnalysisConfig controls normalization and aggregation.
type AnalysisConfig struct {
	TopWords       int      `mapstructure:"top_words"        yaml:"top_words"`
	RecentMonths   int      `mapstructure:"recent_months"    yaml:"recent_months"`
	Bigrams        bool     `mapstructure:"bigrams"          yaml:"bigrams"`
	BigramMinCount int      `mapstructure:"bigram_min_count" yaml:"bigram_min_count"`
	ExtraStopWords []string `mapstructure:"extra_stop_words" yaml:"extra_stop_words"`
}

// ClassifierConfig controls sentiment classification.
type ClassifierConfig struct {
	PositiveRating int      `mapstructure:"positive_rating" yaml:"positive_rating"`
	Alt            AIConfig `mapstructure:"alt"             yaml:"alt"`
}

// AIConfig controls the LLM-backed alternative classifier.
type AIConfig struct {
	Provider    string        `mapstructure:"provider"    yaml:"provider"`
	Model       string        `mapstructure:"model"       yaml:"model"`
	Endpoint    string        `mapstructure:"endpoint"    yaml:"endpoint"`
	APIKey      string        `mapstructure:"api_key"     yaml:"api_key"`
	MaxTokens   int           `mapstructure:"max_tokens"  yaml:"max_tokens"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"     yaml:"timeout"`
}

// StorageConfig controls the optional record export.
type StorageConfig struct {
	Type            string `mapstructure:"type"             yaml:"type"`
	OutputPath      string `mapstructure:"output_path"      yaml:"output_path"`
	BatchSize       int    `mapstructure:"batch_size"       yaml:"batch_size"`
	MongoURI        string `mapstructure:"mongo_uri"        yaml:"mongo_uri"`
	MongoDatabase   string `mapstructure:"mongo_database"   yaml:"mongo_database"`
	MongoCollection string `mapstructure:"mongo_collection" yaml:"mongo_collection"`
}

// Types splits Type on commas, so "jsonl,sqlite" exports to both backends.
// An empty Type means "none".
func (s StorageConfig) Types() []string {
	var out []string
	for _, t := range strings.Split(s.Type, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return []string{"none"}
	}
	return out
}

// ServerConfig controls the HTTP front end.
type ServerConfig struct {
	Port         int           `mapstructure:"port"          yaml:"port"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `mapstructure:"level"  yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// MetricsConfig controls the metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			BaseURL:        "https://fr.trustpilot.com",
			DomainSuffixes: []string{".fr", ".com"},
			RemovalMarkers: []string{"n'existe plus", "no longer exists"},
		},
		Fetcher: FetcherConfig{
			Type:             "http",
			PrimaryTimeout:   1 * time.Second,
			RetryTimeout:     30 * time.Second,
			FollowRedirects:  true,
			MaxRedirects:     10,
			MaxBodySize:      10 * 1024 * 1024, // 10MB
			IdleConnTimeout:  90 * time.Second,
			MaxIdleConns:     100,
			HeaderProfiles:   DefaultHeaderProfiles(),
			DetectChallenges: true,
		},
		Proxy: ProxyConfig{
			Enabled:  false,
			Rotation: "round_robin",
		},
		Discovery: DiscoveryConfig{
			RequestsPerSecond: 2,
		},
		Extraction: ExtractionConfig{
			MaxDelay:        3 * time.Second,
			SiteConcurrency: 1,
		},
		Markup: MarkupConfig{
			BusinessTitle:        "div.styles_businessTitle__1IANo",
			ListingNext:          `a[name="pagination-button-next"]`,
			SearchResultXPath:    `//a[contains(concat(' ', normalize-space(@class), ' '), ' search-result-heading ')]`,
			SearchSeparator:      " | ",
			ReviewBlock:          "div.review-content",
			ReviewRating:         "div.star-rating img",
			ReviewTitle:          "h2.review-content__title",
			ReviewBody:           "p.review-content__text",
			ReviewDates:          "div.review-content-header__dates",
			ReviewNext:           "a.next-page",
			PublishedDatePattern: `"publishedDate":"(.*?)","updatedDate`,
		},
		Analysis: AnalysisConfig{
			TopWords:       40,
			RecentMonths:   3,
			Bigrams:        false,
			BigramMinCount: 5,
		},
		Classifier: ClassifierConfig{
			PositiveRating: 4,
			Alt: AIConfig{
				Provider:    "ollama",
				Model:       "llama3",
				Endpoint:    "http://localhost:11434",
				MaxTokens:   8,
				Temperature: 0,
				Timeout:     60 * time.Second,
			},
		},
		Storage: StorageConfig{
			Type:            "none",
			OutputPath:      "./output",
			BatchSize:       100,
			MongoDatabase:   "reviewscan",
			MongoCollection: "reviews",
		},
		Server: ServerConfig{
			Port:         5000,
			WriteTimeout: 30 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}

// DefaultHeaderProfiles returns the built-in client fingerprints. The first
// one is the desktop Firefox profile the crawler has always sent.
func DefaultHeaderProfiles() []HeaderProfile {
	return []HeaderProfile{
		{
			Name: "firefox-linux",
			Headers: map[string]string{
				"Access-Control-Allow-Origin":  "*",
				"Access-Control-Allow-Methods": "GET",
				"Access-Control-Allow-Headers": "Content-Type",
				"Access-Control-Max-Age":       "3600",
				"User-Agent":                   "Mozilla/5.0 (X11; Ubuntu; Linux x86_64; rv:52.0) Gecko/20100101 Firefox/52.0",
			},
		},
		{
			Name: "chrome-windows",
			Headers: map[string]string{
				"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8",
				"Accept-Language": "fr-FR,fr;q=0.9,en-US;q=0.8,en;q=0.7",
			},
		},
		{
			Name: "safari-macos",
			Headers: map[string]string{
				"User-Agent":      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.1 Safari/605.1.15",
				"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
				"Accept-Language": "fr-FR,fr;q=0.9",
			},
		},
	}
}
