package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hugaba/api-sentiment-analysis/internal/api"
	"github.com/hugaba/api-sentiment-analysis/internal/config"
	"github.com/hugaba/api-sentiment-analysis/internal/engine"
	"github.com/hugaba/api-sentiment-analysis/internal/observability"
)

// serveCmd creates the "serve" subcommand.
func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve reports over HTTP",
		Long: `Start the HTTP front end.

  GET /                       help page with the category list
  GET /graphs?category=...    run an analysis and return the report
        &location=  &num_of_site=5  &num_page=2  &model=1
  GET /api/health             liveness and active runs
  GET /metrics                Prometheus metrics (when metrics.enabled)`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().IntVar(&servePort, "port", 5000, "listen port")
	cmd.Flags().StringVar(&storageType, "storage", "", "export records: none, json, jsonl, csv, sqlite, mongodb (comma-separated)")
	cmd.Flags().StringVar(&fetcherType, "fetcher", "", "page fetcher: http or browser")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLog, err := setupLogger(cfg.Logging)
	if err != nil {
		return err
	}
	defer closeLog()

	var opts []engine.Option
	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics(logger)
		opts = append(opts, engine.WithMetrics(metrics))
	}

	eng, err := engine.New(cfg, logger, opts...)
	if err != nil {
		return fmt.Errorf("create engine: %w", err)
	}

	srv := api.NewServer(cfg.Server, eng, logger)
	srv.SetVersion(config.Version)
	if metrics != nil {
		if cfg.Metrics.Port == cfg.Server.Port {
			srv.Handle("GET "+cfg.Metrics.Path, metrics)
		} else {
			msrv := metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
			defer msrv.Close()
		}
	}

	ctx, stop := signalContext(logger)
	defer stop()

	return srv.Start(ctx)
}
