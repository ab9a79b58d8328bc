package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/mdimg/internal/model"
)

// BatchProcessor handles concurrent processing of multiple documents.
// It uses errgroup to manage goroutines and respect concurrency limits.
type BatchProcessor struct {
	// pipelineFactory creates a new pipeline for each document.
	// A factory ensures each document gets a fresh pipeline instance.
	pipelineFactory func() *Pipeline

	// concurrency is the maximum number of documents processed at once.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger

	// results stores completed sync reports.
	// Access is synchronized via mutex.
	results []*model.SyncReport
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrently processed
// documents. Default is 4 if not specified.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
//
// The pipelineFactory function is called for each document to create a
// fresh pipeline instance, so pipeline state never leaks between
// documents.
func NewBatchProcessor(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		pipelineFactory: pipelineFactory,
		concurrency:     4,
		results:         make([]*model.SyncReport, 0),
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch syncs multiple documents concurrently.
// It respects the configured concurrency limit and context cancellation.
//
// Returns all reports collected, even for documents that failed.
// The error return indicates if the batch was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, documents []string) ([]*model.SyncReport, error) {
	bp.logger.Info("starting batch processing",
		"total_documents", len(documents),
		"concurrency", bp.concurrency,
	)

	startTime := time.Now()

	// Pre-allocate results slice to maintain input order
	bp.results = make([]*model.SyncReport, len(documents))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, document := range documents {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			bp.logger.Info("syncing document",
				"document", document,
				"index", i+1,
				"total", len(documents),
			)

			report := model.NewSyncReport(document)

			p := bp.pipelineFactory()
			err := p.Execute(ctx, report)

			// Store result regardless of error; the report carries the
			// error information when the sync failed.
			bp.mu.Lock()
			bp.results[i] = report
			bp.mu.Unlock()

			if err != nil {
				bp.logger.Warn("sync failed",
					"document", document,
					"error", err,
				)
				// A failed document must not cancel its siblings.
				return nil
			}

			bp.logger.Info("sync completed",
				"document", document,
			)

			return nil
		})
	}

	err := g.Wait()

	bp.logger.Info("batch processing complete",
		"total_documents", len(documents),
		"elapsed", time.Since(startTime),
	)

	return bp.results, err
}

// ProcessBatchWithCallback syncs multiple documents and calls a
// callback for each completed document. This is useful for streaming
// results.
//
// The callback receives the report and the index of the document in
// the original slice. It runs on the goroutine that completed the
// sync, so it must be safe for concurrent use.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	documents []string,
	callback func(report *model.SyncReport, index int),
) error {
	bp.logger.Info("starting batch processing with callback",
		"total_documents", len(documents),
		"concurrency", bp.concurrency,
	)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, document := range documents {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			report := model.NewSyncReport(document)
			p := bp.pipelineFactory()
			_ = p.Execute(ctx, report) //nolint:errcheck // Error is stored in report

			callback(report, i)

			return nil
		})
	}

	return g.Wait()
}
