package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/onepage/internal/model"
	"golang.org/x/sync/errgroup"
)

// DefaultBatchConcurrency is the number of targets mirrored at the same time
// when WithConcurrency is not given.
const DefaultBatchConcurrency = 4

// Factory creates the pipeline for one target. Each target gets a fresh
// pipeline so that per-site settings and output directories do not leak.
type Factory func(target string) (*Pipeline, error)

// BatchProcessor mirrors multiple root URLs concurrently.
// It uses errgroup to manage goroutines and respect the concurrency limit.
type BatchProcessor struct {
	// factory creates a new pipeline for each target.
	factory Factory

	// concurrency is the maximum number of concurrent mirrors.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent mirrors.
// Non-positive values keep DefaultBatchConcurrency.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(factory Factory, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		factory:     factory,
		concurrency: DefaultBatchConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch mirrors targets concurrently and returns one report per
// target, in the order of targets.
//
// A failing target does not stop the others; its error is stored in its
// report. The returned error is non-nil only if ctx was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []string) ([]*model.MirrorReport, error) {
	results := make([]*model.MirrorReport, len(targets))
	err := bp.ProcessBatchWithCallback(ctx, targets, func(report *model.MirrorReport, index int) {
		results[index] = report
	})
	return results, err
}

// ProcessBatchWithCallback mirrors targets and calls callback for each
// finished target. This is useful for streaming results.
//
// The callback is called from the goroutine that finished the mirror, so
// it must be safe for concurrent use if it touches shared state. Targets
// not started because ctx was cancelled get no callback.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []string,
	callback func(report *model.MirrorReport, index int),
) error {
	bp.logger.Info("starting batch processing",
		"total_targets", len(targets),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("mirroring target",
				"url", target,
				"index", i+1,
				"total", len(targets),
			)

			report := model.NewMirrorReport(target)

			p, err := bp.factory(target)
			if err != nil {
				report.Error = err.Error()
				report.Finish()
			} else if err := p.Execute(ctx, report); err != nil {
				// The error is recorded in the report.
				bp.logger.Warn("mirror failed",
					"url", target,
					"error", err,
				)
			}

			callback(report, i)
			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch processing complete",
		"total_targets", len(targets),
		"elapsed", time.Since(startTime),
	)

	return err
}
