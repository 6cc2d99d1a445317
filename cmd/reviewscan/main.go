package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/hugaba/api-sentiment-analysis/internal/config"
)

var (
	cfgFile string
	verbose bool

	location      string
	siteLimit     int
	pageLimit     int
	altClassifier bool
	reportPath    string
	runFilter     string
	storageType   string
	fetcherType   string
	servePort     int
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "reviewscan",
		Short: "reviewscan: Trustpilot review crawler and sentiment aggregator",
		Long: `reviewscan crawls the businesses of a Trustpilot category, collects their
reviews, labels each one positive or negative and aggregates the result
into counts and word clouds.

Features:
  • Category walk with display-name disambiguation
  • Rotating header profiles, one retry per page, host-unreachable detection
  • French lexicon classifier with an optional LLM alternative
  • Word clouds overall, per site and over the last months
  • Optional export to JSON, JSONL, CSV, SQLite or MongoDB
  • HTTP front end and Prometheus metrics endpoint`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(configCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd creates the "version" subcommand.
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("reviewscan %s\n", config.Version)
		},
	}
}

// configCmd creates the "config" subcommand for inspecting configuration.
func configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg.Classifier.Alt.APIKey != "" {
				cfg.Classifier.Alt.APIKey = "<redacted>"
			}
			if cfg.Storage.MongoURI != "" {
				cfg.Storage.MongoURI = "<redacted>"
			}

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(cfg); err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			return enc.Close()
		},
	}
}

// loadConfig loads, overrides and validates the configuration.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	applyCLIOverrides(cmd, cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// applyCLIOverrides applies command-line flag values to the config. Only
// flags the user actually set override the file and environment.
func applyCLIOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("storage") {
		cfg.Storage.Type = strings.ToLower(storageType)
	}
	if flags.Changed("fetcher") {
		cfg.Fetcher.Type = strings.ToLower(fetcherType)
	}
	if flags.Changed("port") {
		cfg.Server.Port = servePort
	}
	if verbose {
		cfg.Logging.Level = "debug"
	}
}

// reportLogging moves stdout logging to stderr when the report itself is
// written to stdout.
func reportLogging(lc config.LoggingConfig, reportPath string) config.LoggingConfig {
	if reportPath == "" && lc.Output == "stdout" {
		lc.Output = "stderr"
	}
	return lc
}

// setupLogger creates the structured root logger. The returned func closes
// the log file, if any.
func setupLogger(lc config.LoggingConfig) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	switch lc.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	var out io.Writer = os.Stderr
	closeFn := func() {}
	switch lc.Output {
	case "", "stderr":
	case "stdout":
		out = os.Stdout
	default:
		f, err := os.OpenFile(lc.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closeFn = func() { f.Close() }
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if lc.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}
	return slog.New(handler), closeFn, nil
}
