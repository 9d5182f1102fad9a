package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/arrestscan/internal/browser"
	"github.com/nao1215/arrestscan/internal/config"
	"github.com/nao1215/arrestscan/internal/model"
)

// Job is the state of one scrape attempt for one date. Steps read the page
// and accumulate their findings here.
type Job struct {
	// Date is the searched date in YYYY-MM-DD form.
	Date string

	// Page is the browser tab the attempt runs in.
	Page browser.Page

	// Records are the records found so far.
	Records []model.ArrestRecord

	// Pages is the number of result pages read.
	Pages int

	// Method is the extraction strategy that produced Records.
	Method model.Method

	// Steps lists the steps that completed, in order.
	Steps []string

	// dateHint is the hint whose inputs received the date.
	dateHint *config.Hint
}

// NewJob returns a job for date running in page.
func NewJob(date string, page browser.Page) *Job {
	return &Job{
		Date:   date,
		Page:   page,
		Method: model.MethodNone,
	}
}

// Step is one stage of a scrape attempt.
type Step interface {
	// Do runs the step. A returned error ends the attempt.
	Do(ctx context.Context, job *Job) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline runs steps in order.
type Pipeline struct {
	steps []Step

	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// NewScrapePipeline builds the standard step sequence from cfg.
func NewScrapePipeline(cfg *config.Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := New(WithLogger(logger))
	p.AddSteps(
		NewNavigateStep(cfg.EntryURL, cfg.QuickLinks, logger),
		NewFrameStep(cfg.Selectors, logger),
		NewFillDateStep(cfg.Selectors),
		NewSearchStep(cfg.Selectors, cfg.SettleDelay, logger),
		NewCollectStep(cfg.Selectors, cfg.MaxPages, cfg.PageDelay, logger),
		NewJSONFallbackStep(logger),
		NewRawTextStep(logger),
		NewDedupeStep(),
	)
	return p
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence. Cancellation is checked before each
// step; steps handle their own timeouts.
func (p *Pipeline) Execute(ctx context.Context, job *Job) error {
	for _, step := range p.steps {
		select {
		case <-ctx.Done():
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"date", job.Date,
				"reason", ctx.Err(),
			)
			return ctx.Err()
		default:
		}

		p.logger.Debug("executing step", "step", step.Name(), "date", job.Date)

		if err := step.Do(ctx, job); err != nil {
			p.logger.Debug("step failed",
				"step", step.Name(),
				"date", job.Date,
				"error", err,
			)
			return err
		}
		job.Steps = append(job.Steps, step.Name())
	}
	return nil
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
