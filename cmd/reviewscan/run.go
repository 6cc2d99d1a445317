package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hugaba/api-sentiment-analysis/internal/aggregator"
	"github.com/hugaba/api-sentiment-analysis/internal/engine"
	"github.com/hugaba/api-sentiment-analysis/internal/observability"
	"github.com/hugaba/api-sentiment-analysis/internal/storage"
	"github.com/hugaba/api-sentiment-analysis/internal/types"
)

// runCmd creates the "run" subcommand.
func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <category>",
		Short: "Crawl a category and print its sentiment report",
		Long: `Crawl the businesses of a Trustpilot category, classify their reviews and
print the aggregated report as JSON.

Examples:
  reviewscan run restaurants_bars
  reviewscan run animals_pets --sites 3 --pages 0 -o report.json
  reviewscan run sports --alt-classifier --storage jsonl`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalysis,
	}

	cmd.Flags().StringVarP(&location, "location", "l", "", "restrict the category to a location")
	cmd.Flags().IntVarP(&siteLimit, "sites", "s", types.DefaultSiteLimit, "number of sites to analyse (0 = all)")
	cmd.Flags().IntVarP(&pageLimit, "pages", "p", types.DefaultPageLimit, "review pages per site (0 = all)")
	cmd.Flags().BoolVar(&altClassifier, "alt-classifier", false, "classify with the configured LLM instead of the lexicon")
	cmd.Flags().StringVarP(&reportPath, "output", "o", "", "write the report to this file instead of stdout")
	cmd.Flags().StringVar(&storageType, "storage", "", "export records: none, json, jsonl, csv, sqlite, mongodb (comma-separated)")
	cmd.Flags().StringVar(&fetcherType, "fetcher", "", "page fetcher: http or browser")

	return cmd
}

// runAnalysis executes the run command.
func runAnalysis(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := setupLogger(reportLogging(cfg.Logging, reportPath))
	if err != nil {
		return err
	}
	defer closeLog()

	var opts []engine.Option
	if cfg.Metrics.Enabled {
		metrics := observability.NewMetrics(logger)
		srv := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
		defer srv.Close()
		opts = append(opts, engine.WithMetrics(metrics))
	}

	eng, err := engine.New(cfg, logger, opts...)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	ctx, stop := signalContext(logger)
	defer stop()

	rc := types.RunConfig{
		Category:  args[0],
		Location:  location,
		SiteLimit: siteLimit,
		PageLimit: pageLimit,
	}

	start := time.Now()
	report, runErr := eng.Run(ctx, rc, engine.RunOptions{UseAltClassifier: altClassifier})
	if report == nil {
		return runErr
	}

	if err := writeReport(report, reportPath); err != nil {
		return err
	}

	logger.Info("run finished",
		"elapsed", time.Since(start).Round(time.Millisecond),
		"reviews", report.Summary.NbReviewAnalysed,
		"positive", report.Summary.NbReview.Pos,
		"negative", report.Summary.NbReview.Neg,
		"output", outputName(reportPath),
	)
	if errors.Is(runErr, types.ErrHostUnreachable) {
		fmt.Fprintln(os.Stderr, "\n⚠️  The review site could not be reached; the report is empty.")
		fmt.Fprintln(os.Stderr, "   Check site.base_url, your network or proxy settings, or try --fetcher browser.")
	}
	return runErr
}

// analyzeCmd creates the "analyze" subcommand.
func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <records>",
		Short: "Aggregate previously exported records",
		Long: `Build a report from records exported by an earlier run (.json, .jsonl,
.csv or a SQLite .db). The report carries no site counts since no
discovery took place. A SQLite database holds every run; --run keeps
only the records of the given run_id.`,
		Args: cobra.ExactArgs(1),
		RunE: runAnalyze,
	}

	cmd.Flags().StringVarP(&reportPath, "output", "o", "", "write the report to this file instead of stdout")
	cmd.Flags().StringVar(&runFilter, "run", "", "only read records of this run_id (SQLite only)")

	return cmd
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := setupLogger(reportLogging(cfg.Logging, reportPath))
	if err != nil {
		return err
	}
	defer closeLog()

	ctx, stop := signalContext(logger)
	defer stop()

	recs, err := storage.LoadRun(ctx, args[0], runFilter)
	if err != nil {
		return err
	}
	logger.Info("records loaded", "path", args[0], "run_id", runFilter, "records", len(recs))

	eng, err := engine.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}
	return writeReport(eng.Analyze(recs), reportPath)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(logger *slog.Logger) (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down...", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, func() {
		signal.Stop(sigCh)
		cancel()
	}
}

func writeReport(report *aggregator.Report, path string) error {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		defer f.Close()
		w = f
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

func outputName(path string) string {
	if path == "" {
		return "stdout"
	}
	return path
}
