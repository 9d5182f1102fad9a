package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/arrestscan/internal/browser"
	"github.com/nao1215/arrestscan/internal/config"
	"github.com/nao1215/arrestscan/internal/model"
	"github.com/nao1215/arrestscan/internal/retry"
)

// Runner scrapes single dates. Each attempt gets a fresh tab and a fresh
// pipeline, and timed-out attempts are retried with backoff.
type Runner struct {
	opener          browser.Opener
	pipelineFactory func() *Pipeline
	retry           retry.Config
	logger          *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger sets a custom logger for the runner.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// WithRetry sets the retry policy for each date.
func WithRetry(cfg retry.Config) RunnerOption {
	return func(r *Runner) {
		r.retry = cfg
	}
}

// NewRunner creates a Runner opening tabs with opener and running the
// standard scrape pipeline built from cfg.
func NewRunner(opener browser.Opener, cfg *config.Config, opts ...RunnerOption) *Runner {
	r := &Runner{
		opener: opener,
		retry: retry.Config{
			MaxAttempts:    cfg.Retries,
			InitialBackoff: cfg.RetryInitial,
			MaxBackoff:     cfg.RetryMax,
			Multiplier:     2.0,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	r.pipelineFactory = func() *Pipeline {
		return NewScrapePipeline(cfg, r.logger)
	}
	return r
}

// ScrapeDate runs the pipeline for date until it succeeds, fails with a
// non-retryable error, or the attempts run out. Failures are reported in
// the result rather than returned.
func (r *Runner) ScrapeDate(ctx context.Context, date string) model.DateResult {
	start := time.Now()
	result := model.DateResult{Date: date, Method: model.MethodNone}

	policy := r.retry
	policy.OnRetry = retry.Logger(r.logger, "scrape", "date", date)

	job, err := retry.DoVal(ctx, policy, func(ctx context.Context) (*Job, error) {
		result.Attempts++
		return r.attempt(ctx, date)
	})

	result.Duration = time.Since(start)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.Records = job.Records
	result.Pages = job.Pages
	result.Method = job.Method
	return result
}

func (r *Runner) attempt(ctx context.Context, date string) (*Job, error) {
	page, err := r.opener.NewPage(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := page.Close(); cerr != nil {
			r.logger.Debug("failed to close page", "date", date, "error", cerr)
		}
	}()

	job := NewJob(date, page)
	pl := r.pipelineFactory()
	r.logger.Debug("starting attempt", "date", date, "steps", pl.StepNames())
	if err := pl.Execute(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}
