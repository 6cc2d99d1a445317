// Package engine runs one crawl-and-analyse request end to end: discover the
// category's sites, extract their reviews, annotate them and aggregate the
// report.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/hugaba/api-sentiment-analysis/internal/aggregator"
	"github.com/hugaba/api-sentiment-analysis/internal/ai"
	"github.com/hugaba/api-sentiment-analysis/internal/config"
	"github.com/hugaba/api-sentiment-analysis/internal/crawler"
	"github.com/hugaba/api-sentiment-analysis/internal/fetcher"
	"github.com/hugaba/api-sentiment-analysis/internal/nlp"
	"github.com/hugaba/api-sentiment-analysis/internal/observability"
	"github.com/hugaba/api-sentiment-analysis/internal/parser"
	"github.com/hugaba/api-sentiment-analysis/internal/pipeline"
	"github.com/hugaba/api-sentiment-analysis/internal/storage"
	"github.com/hugaba/api-sentiment-analysis/internal/types"
)

// Stage names used in timing logs and RunInfo.Stages.
const (
	StageDiscovery   = "discovery"
	StageExtraction  = "extraction"
	StageAnnotation  = "annotation"
	StageAggregation = "aggregation"
	StageExport      = "export"
	StageTotal       = "total"
)

// RunOptions are per-request switches.
type RunOptions struct {
	// UseAltClassifier labels reviews with the LLM classifier instead of the
	// lexicon. Failures still fall back to the lexicon.
	UseAltClassifier bool
}

// FetcherFactory builds the Fetcher used by one run.
type FetcherFactory func() (fetcher.Fetcher, error)

// Engine is the run orchestrator. It is safe for concurrent use; every Run
// gets its own fetcher, pacing and counters.
type Engine struct {
	cfg        *config.Config
	logger     *slog.Logger
	markup     parser.Markup
	normalizer nlp.Normalizer
	lexicon    nlp.Classifier
	alt        nlp.Classifier
	newFetcher FetcherFactory
	metrics    *observability.Metrics
	sleep      fetcher.Sleeper
	now        func() time.Time
	exportOff  bool

	active atomic.Int32
}

// Option configures an Engine.
type Option func(*Engine)

// WithFetcherFactory replaces the fetcher built from cfg.Fetcher.
func WithFetcherFactory(f FetcherFactory) Option {
	return func(e *Engine) { e.newFetcher = f }
}

// WithMetrics reports runs and page fetches to m.
func WithMetrics(m *observability.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithAltClassifier replaces the LLM classifier built from cfg.Classifier.Alt.
func WithAltClassifier(c nlp.Classifier) Option {
	return func(e *Engine) { e.alt = c }
}

// WithSleeper replaces the review throttle's sleep.
func WithSleeper(s fetcher.Sleeper) Option {
	return func(e *Engine) { e.sleep = s }
}

// WithClock sets the evaluation time used by the recent window.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithoutExport disables storage regardless of cfg.Storage.
func WithoutExport() Option {
	return func(e *Engine) { e.exportOff = true }
}

// New creates an Engine with the given configuration.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) (*Engine, error) {
	markup, err := parser.NewTrustpilot(&cfg.Markup, logger)
	if err != nil {
		return nil, fmt.Errorf("markup: %w", err)
	}

	e := &Engine{
		cfg:        cfg,
		logger:     logger.With("component", "engine"),
		markup:     markup,
		normalizer: nlp.NewFrenchNormalizer(nlp.DefaultStopWords(cfg.Analysis.ExtraStopWords...)),
		lexicon:    nlp.NewLexiconClassifier(cfg.Classifier.PositiveRating),
		now:        time.Now,
	}
	e.newFetcher = func() (fetcher.Fetcher, error) { return fetcher.New(cfg, logger) }
	for _, opt := range opts {
		opt(e)
	}
	if e.alt == nil {
		e.alt = ai.NewLLMClassifier(ai.NewLLMClient(cfg.Classifier.Alt, logger), logger)
	}
	return e, nil
}

// ActiveRuns returns the number of runs in flight.
func (e *Engine) ActiveRuns() int32 { return e.active.Load() }

// Run executes one request. A report is returned whenever the run got as far
// as aggregation, even alongside ErrHostUnreachable. Configuration errors and
// cancellation return a nil report.
func (e *Engine) Run(ctx context.Context, rc types.RunConfig, opts RunOptions) (*aggregator.Report, error) {
	if err := rc.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := e.logger.With("run_id", runID, "category", rc.Category)
	started := time.Now()
	stages := make(map[string]int64)
	mark := stageTimer(logger, stages)

	e.active.Add(1)
	defer e.active.Add(-1)
	if e.metrics != nil {
		e.metrics.RunsTotal.Add(1)
		e.metrics.ActiveRuns.Add(1)
		defer e.metrics.ActiveRuns.Add(-1)
	}

	report, err := e.run(ctx, rc, opts, runID, logger, mark)
	if report != nil {
		mark(StageTotal, started)
		report.Run.StartedAt = started
		report.Run.Stages = stages
	}
	if err != nil && e.metrics != nil {
		e.metrics.RunsFailed.Add(1)
		if errors.Is(err, types.ErrHostUnreachable) {
			e.metrics.RunsUnreachable.Add(1)
		}
	}
	return report, err
}

func (e *Engine) run(ctx context.Context, rc types.RunConfig, opts RunOptions, runID string, logger *slog.Logger, mark func(string, time.Time)) (*aggregator.Report, error) {
	f, err := e.newFetcher()
	if err != nil {
		return nil, fmt.Errorf("create fetcher: %w", err)
	}
	defer f.Close()

	var pageOpts []fetcher.PageOption
	if e.metrics != nil {
		pageOpts = append(pageOpts, fetcher.WithObserver(e.metrics))
	}
	root := fetcher.NewPageFetcher(f, &e.cfg.Fetcher, logger, pageOpts...)
	discoveryLimit := fetcher.NewLimiter(e.cfg.Discovery.RequestsPerSecond)
	listing := root.Paced(types.TagListing, discoveryLimit)
	search := root.Paced(types.TagSearch, discoveryLimit)
	reviews := root.Paced(types.TagReview, fetcher.NewThrottle(e.cfg.Extraction.MaxDelay, e.sleep))

	logger.Info("run started",
		"location", rc.Location,
		"site_limit", rc.SiteLimit,
		"page_limit", rc.PageLimit,
		"fetcher", f.Type(),
	)

	// Scraping
	t := time.Now()
	discovery, err := crawler.NewDiscoverer(listing, e.markup, e.cfg, logger).
		WithSearchSource(search).
		Discover(ctx, rc.Category, rc.Location, rc.SiteLimit)
	if err != nil {
		return nil, err
	}
	mark(StageDiscovery, t)

	t = time.Now()
	records, err := crawler.NewExtractor(reviews, e.markup, e.cfg, logger).Extract(ctx, discovery.Resolved, rc.PageLimit)
	if err != nil {
		return nil, err
	}
	mark(StageExtraction, t)

	if e.metrics != nil {
		e.metrics.SitesKnown.Add(int64(len(discovery.Candidates)))
		e.metrics.SitesResolved.Add(int64(len(discovery.Resolved)))
		e.metrics.ReviewsExtracted.Add(int64(len(records)))
	}

	// Annotation
	t = time.Now()
	classifier := e.classifierFor(opts)
	annotated, err := e.annotate(ctx, records, classifier, logger)
	if err != nil {
		return nil, err
	}
	mark(StageAnnotation, t)

	// Aggregation
	t = time.Now()
	report := aggregator.Aggregate(annotated, aggregator.Options{
		Now:          e.now(),
		TopN:         e.cfg.Analysis.TopWords,
		RecentMonths: e.cfg.Analysis.RecentMonths,
		Sites:        aggregator.SitesFrom(discovery),
	})
	mark(StageAggregation, t)

	snap := root.Stats().Snapshot()
	report.Run = &aggregator.RunInfo{
		ID:         runID,
		Category:   rc.Category,
		Location:   rc.Location,
		SiteLimit:  rc.SiteLimit,
		PageLimit:  rc.PageLimit,
		Classifier: classifier.Name(),
		Fetch:      &snap,
	}

	if e.metrics != nil {
		e.metrics.ReviewsPositive.Add(int64(report.Summary.NbReview.Pos))
		e.metrics.ReviewsNegative.Add(int64(report.Summary.NbReview.Neg))
	}

	t = time.Now()
	e.export(ctx, annotated, runID, logger)
	mark(StageExport, t)

	logger.Info("run complete",
		"candidates", len(discovery.Candidates),
		"resolved", len(discovery.Resolved),
		"reviews", len(records),
		"analysed", report.Summary.NbReviewAnalysed,
		"pages_attempted", snap.Attempted,
		"pages_failed", snap.Failed,
	)

	if snap.Unreachable() {
		return report, fmt.Errorf("%w: %s (%d pages attempted)", types.ErrHostUnreachable, e.cfg.Site.BaseURL, snap.Attempted)
	}
	return report, nil
}

func (e *Engine) classifierFor(opts RunOptions) nlp.Classifier {
	if opts.UseAltClassifier {
		return e.alt
	}
	return e.lexicon
}

func (e *Engine) annotate(ctx context.Context, records []types.ReviewRecord, classifier nlp.Classifier, logger *slog.Logger) ([]types.AnnotatedRecord, error) {
	var fallback nlp.Classifier
	if classifier != e.lexicon {
		fallback = e.lexicon
	}
	classify := pipeline.NewClassifyMiddleware(classifier, fallback, logger)

	p := pipeline.New(logger)
	p.Use(pipeline.NewSanitizeMiddleware())
	p.Use(&pipeline.TokenizeMiddleware{Normalizer: e.normalizer})
	p.Use(classify)
	if e.cfg.Analysis.Bigrams {
		p.UseBatch(&pipeline.BigramStage{MinCount: e.cfg.Analysis.BigramMinCount})
	}

	annotated, err := p.Annotate(ctx, records)
	if n := classify.Fallbacks(); n > 0 {
		logger.Warn("classifier fell back to lexicon", "records", n, "classifier", classifier.Name())
		if e.metrics != nil {
			e.metrics.ClassifierFallbacks.Add(n)
		}
	}
	return annotated, err
}

// export writes the annotated records to the configured backends. Failures
// are logged; the report is unaffected.
func (e *Engine) export(ctx context.Context, recs []types.AnnotatedRecord, runID string, logger *slog.Logger) {
	if e.exportOff {
		return
	}
	s, err := storage.New(e.cfg.Storage, runID, logger)
	if err != nil {
		logger.Error("export disabled for this run", "error", err)
		e.countExportError()
		return
	}
	if s == nil {
		return
	}
	if err := storage.Export(ctx, s, recs, e.cfg.Storage.BatchSize); err != nil {
		logger.Error("export failed", "backend", s.Name(), "error", err)
		e.countExportError()
		return
	}
	if e.metrics != nil {
		e.metrics.RecordsExported.Add(int64(len(recs)))
	}
}

func (e *Engine) countExportError() {
	if e.metrics != nil {
		e.metrics.ExportErrors.Add(1)
	}
}

// Analyze builds a retrospective report from stored records: no discovery
// context, so the summary carries no site block.
func (e *Engine) Analyze(records []types.AnnotatedRecord) *aggregator.Report {
	return aggregator.Aggregate(records, aggregator.Options{
		Now:          e.now(),
		TopN:         e.cfg.Analysis.TopWords,
		RecentMonths: e.cfg.Analysis.RecentMonths,
	})
}

func stageTimer(logger *slog.Logger, stages map[string]int64) func(stage string, since time.Time) {
	return func(stage string, since time.Time) {
		d := time.Since(since)
		stages[stage] = d.Milliseconds()
		logger.Info("stage finished", "stage", stage, "duration", d.Round(time.Millisecond))
	}
}
