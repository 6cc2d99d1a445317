package pipeline

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hugaba/api-sentiment-analysis/internal/types"
)

// Middleware processes a record and returns the (possibly modified) record.
// Return nil to drop the record from the pipeline.
type Middleware interface {
	// Name returns the middleware's identifier.
	Name() string

	// Process transforms a record. Return nil to drop it.
	Process(ctx context.Context, rec *types.AnnotatedRecord) (*types.AnnotatedRecord, error)
}

// BatchStage runs once over every record that survived the middleware
// chain. Stages that need corpus-wide statistics live here.
type BatchStage interface {
	Name() string
	ProcessBatch(ctx context.Context, recs []types.AnnotatedRecord) ([]types.AnnotatedRecord, error)
}

// Pipeline chains middleware processors together.
type Pipeline struct {
	middlewares []Middleware
	batch       []BatchStage
	logger      *slog.Logger
}

// New creates a new Pipeline.
func New(logger *slog.Logger) *Pipeline {
	return &Pipeline{
		logger: logger.With("component", "pipeline"),
	}
}

// Use adds a middleware to the pipeline chain.
func (p *Pipeline) Use(mw Middleware) {
	p.middlewares = append(p.middlewares, mw)
	p.logger.Debug("middleware added", "name", mw.Name(), "position", len(p.middlewares))
}

// UseBatch adds a stage that runs after the per-record chain.
func (p *Pipeline) UseBatch(stage BatchStage) {
	p.batch = append(p.batch, stage)
	p.logger.Debug("batch stage added", "name", stage.Name(), "position", len(p.batch))
}

// Process runs the record through all middleware in order.
func (p *Pipeline) Process(ctx context.Context, rec *types.AnnotatedRecord) (*types.AnnotatedRecord, error) {
	current := rec

	for _, mw := range p.middlewares {
		result, err := mw.Process(ctx, current)
		if err != nil {
			return nil, &types.PipelineError{
				Stage:  mw.Name(),
				Record: current,
				Err:    err,
			}
		}
		if result == nil {
			p.logger.Debug("record dropped", "stage", mw.Name(), "site", rec.Site)
			return nil, nil
		}
		current = result
	}

	return current, nil
}

// Annotate wraps every review, runs it through the chain and then through
// the batch stages. Input order is preserved. A record whose chain fails is
// logged and left out; a failing batch stage is logged and skipped. Only a
// cancelled context aborts the run.
func (p *Pipeline) Annotate(ctx context.Context, reviews []types.ReviewRecord) ([]types.AnnotatedRecord, error) {
	out := make([]types.AnnotatedRecord, 0, len(reviews))
	for _, r := range reviews {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := p.Process(ctx, &types.AnnotatedRecord{ReviewRecord: r})
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return out, err
			}
			p.logger.Warn("record left out", "site", r.Site, "error", err)
			continue
		}
		if res != nil {
			out = append(out, *res)
		}
	}

	for _, stage := range p.batch {
		next, err := stage.ProcessBatch(ctx, out)
		if err != nil {
			p.logger.Warn("batch stage skipped", "stage", stage.Name(), "error", &types.PipelineError{Stage: stage.Name(), Err: err})
			continue
		}
		out = next
	}
	return out, nil
}

// Len returns the number of middleware in the chain.
func (p *Pipeline) Len() int {
	return len(p.middlewares)
}
