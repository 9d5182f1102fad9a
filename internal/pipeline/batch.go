package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/arrestscan/internal/model"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// DateScraper scrapes one date. *Runner implements it.
type DateScraper interface {
	ScrapeDate(ctx context.Context, date string) model.DateResult
}

// BatchProcessor scrapes many dates with bounded concurrency. Date starts
// are spaced by a rate limiter so the site is not hit in bursts.
type BatchProcessor struct {
	scraper     DateScraper
	concurrency int
	interval    time.Duration
	logger      *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of dates scraped at once.
// Default is 1.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithInterval sets the minimum spacing between two date starts.
func WithInterval(d time.Duration) BatchOption {
	return func(b *BatchProcessor) {
		if d >= 0 {
			b.interval = d
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(scraper DateScraper, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		scraper:     scraper,
		concurrency: 1,
	}
	for _, opt := range opts {
		opt(bp)
	}
	if bp.logger == nil {
		bp.logger = slog.Default()
	}
	return bp
}

// ProcessDatesWithCallback scrapes every date and calls callback with each
// result and its index as soon as the date finishes. A failed date does not
// stop the others. Cancellation stops scheduling; dates never started are
// reported with the context error. The callback runs on
// the worker goroutine and must be safe for concurrent use when the
// concurrency is above one.
func (bp *BatchProcessor) ProcessDatesWithCallback(
	ctx context.Context,
	dates []string,
	callback func(result model.DateResult, index int),
) error {
	bp.logger.Info("starting batch",
		"dates", len(dates),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	limit := rate.Inf
	if bp.interval > 0 {
		limit = rate.Every(bp.interval)
	}
	limiter := rate.NewLimiter(limit, 1)

	g := new(errgroup.Group)
	g.SetLimit(bp.concurrency)

	for i, date := range dates {
		if err := limiter.Wait(ctx); err != nil {
			bp.skip(ctx, dates[i:], i, callback)
			break
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				callback(model.DateResult{Date: date, Method: model.MethodNone, Error: err.Error()}, i)
				return nil
			}

			bp.logger.Info("scraping date", "date", date, "index", i+1, "total", len(dates))
			result := bp.scraper.ScrapeDate(ctx, date)
			if result.Failed() {
				bp.logger.Warn("date failed", "date", date, "attempts", result.Attempts, "error", result.Error)
			} else {
				bp.logger.Info("date completed", "date", date, "records", len(result.Records), "pages", result.Pages)
			}
			callback(result, i)
			return nil
		})
	}

	_ = g.Wait() //nolint:errcheck // workers never return errors

	bp.logger.Info("batch complete",
		"dates", len(dates),
		"elapsed", time.Since(startTime),
	)
	return ctx.Err()
}

// skip reports dates that were never started because ctx ended.
func (bp *BatchProcessor) skip(ctx context.Context, dates []string, offset int, callback func(model.DateResult, int)) {
	reason := "cancelled"
	if err := ctx.Err(); err != nil {
		reason = err.Error()
	}
	for j, date := range dates {
		callback(model.DateResult{Date: date, Method: model.MethodNone, Error: reason}, offset+j)
	}
}
