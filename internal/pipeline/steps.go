package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/nao1215/arrestscan/internal/config"
	"github.com/nao1215/arrestscan/internal/extract"
	"github.com/nao1215/arrestscan/internal/model"
)

var (
	// ErrNoDateInput is returned when no date field could be filled.
	ErrNoDateInput = errors.New("no date input found")

	// ErrNoSearch is returned when the search form could not be submitted.
	ErrNoSearch = errors.New("no search button or date input to submit")
)

// maxDateInputs is the number of inputs filled per hint: a single date
// field, or the from and to fields of a range filter.
const maxDateInputs = 2

// NavigateStep opens the entry page and follows the first quick link
// present on it.
type NavigateStep struct {
	entryURL   string
	quickLinks []string
	logger     *slog.Logger
}

// NewNavigateStep creates a NavigateStep.
func NewNavigateStep(entryURL string, quickLinks []string, logger *slog.Logger) *NavigateStep {
	return &NavigateStep{entryURL: entryURL, quickLinks: quickLinks, logger: orDefault(logger)}
}

// Name returns the step name.
func (s *NavigateStep) Name() string {
	return "navigate"
}

// Do executes the navigate step.
func (s *NavigateStep) Do(ctx context.Context, job *Job) error {
	if err := job.Page.Navigate(ctx, s.entryURL); err != nil {
		return fmt.Errorf("failed to open entry page: %w", err)
	}
	if err := job.Page.WaitReady(ctx); err != nil {
		return fmt.Errorf("entry page not ready: %w", err)
	}

	for _, text := range s.quickLinks {
		clicked, err := s.follow(ctx, job, config.Hint{CSS: "a", Text: text})
		if err != nil {
			return fmt.Errorf("failed to follow quick link %q: %w", text, err)
		}
		if !clicked {
			continue
		}
		s.logger.Debug("followed quick link", "text", text, "date", job.Date)
		if err := job.Page.WaitReady(ctx); err != nil {
			return fmt.Errorf("page after quick link not ready: %w", err)
		}
		break
	}
	return nil
}

// follow clicks the link matching h. A link that would open a new tab is
// loaded in the current one from its href instead.
func (s *NavigateStep) follow(ctx context.Context, job *Job, h config.Hint) (bool, error) {
	target, _, err := job.Page.Attr(ctx, h, "target")
	if err != nil {
		return false, err
	}
	if target != "_blank" {
		return job.Page.Click(ctx, h)
	}

	href, ok, err := job.Page.Attr(ctx, h, "href")
	if err != nil {
		return false, err
	}
	pageURL, err := job.Page.URL(ctx)
	if err != nil {
		return false, err
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return false, err
	}
	ref, err := url.Parse(strings.TrimSpace(href))
	if !ok || err != nil || ref.String() == "" {
		return job.Page.Click(ctx, h)
	}
	if err := job.Page.Navigate(ctx, base.ResolveReference(ref).String()); err != nil {
		return false, err
	}
	return true, nil
}

// FrameStep moves into the iframe that hosts the search form when the
// current document has no date input of its own.
type FrameStep struct {
	selectors config.Selectors
	logger    *slog.Logger
}

// NewFrameStep creates a FrameStep.
func NewFrameStep(selectors config.Selectors, logger *slog.Logger) *FrameStep {
	return &FrameStep{selectors: selectors, logger: orDefault(logger)}
}

// Name returns the step name.
func (s *FrameStep) Name() string {
	return "frame"
}

// Do executes the frame step.
func (s *FrameStep) Do(ctx context.Context, job *Job) error {
	for _, h := range s.selectors.DateInputs {
		n, err := job.Page.Count(ctx, h)
		if err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
	}

	content, err := job.Page.HTML(ctx)
	if err != nil {
		return err
	}
	pageURL, err := job.Page.URL(ctx)
	if err != nil {
		return err
	}
	frames, err := extract.Frames(content, pageURL)
	if err != nil {
		return fmt.Errorf("failed to read frames: %w", err)
	}
	frame, ok := extract.SearchFrame(frames, pageURL)
	if !ok {
		return nil
	}

	s.logger.Debug("entering search frame", "src", frame.Src, "date", job.Date)
	if err := job.Page.Navigate(ctx, frame.Src); err != nil {
		return fmt.Errorf("failed to open search frame: %w", err)
	}
	return job.Page.WaitReady(ctx)
}

// FillDateStep writes the searched date into the date filter. Each input
// gets the ISO form first; inputs that reject it stay empty and then get
// the MM/DD/YYYY form. An input counts as filled once it holds a value.
type FillDateStep struct {
	selectors config.Selectors
}

// NewFillDateStep creates a FillDateStep.
func NewFillDateStep(selectors config.Selectors) *FillDateStep {
	return &FillDateStep{selectors: selectors}
}

// Name returns the step name.
func (s *FillDateStep) Name() string {
	return "fill_date"
}

// Do executes the fill date step.
func (s *FillDateStep) Do(ctx context.Context, job *Job) error {
	usDate, err := model.ToUSDate(job.Date)
	if err != nil {
		return err
	}

	for _, h := range s.selectors.DateInputs {
		filled, err := fillInputs(ctx, job, h, usDate)
		if err != nil {
			return err
		}
		if filled > 0 {
			job.dateHint = &h
			return nil
		}
	}

	return ErrNoDateInput
}

func fillInputs(ctx context.Context, job *Job, h config.Hint, usDate string) (int, error) {
	n, err := job.Page.Count(ctx, h)
	if err != nil {
		return 0, err
	}
	n = min(n, maxDateInputs)

	filled := 0
	for i := range n {
		if _, err := job.Page.SetValue(ctx, h, i, job.Date, false); err != nil {
			return filled, fmt.Errorf("failed to fill %s: %w", h, err)
		}
		if _, err := job.Page.SetValue(ctx, h, i, usDate, true); err != nil {
			return filled, fmt.Errorf("failed to fill %s: %w", h, err)
		}
		v, err := job.Page.Value(ctx, h, i)
		if err != nil {
			return filled, fmt.Errorf("failed to read %s: %w", h, err)
		}
		if v != "" {
			filled++
		}
	}
	return filled, nil
}

// SearchStep submits the search form and waits for the results to settle.
type SearchStep struct {
	selectors config.Selectors
	settle    time.Duration
	logger    *slog.Logger
}

// NewSearchStep creates a SearchStep.
func NewSearchStep(selectors config.Selectors, settle time.Duration, logger *slog.Logger) *SearchStep {
	return &SearchStep{selectors: selectors, settle: settle, logger: orDefault(logger)}
}

// Name returns the step name.
func (s *SearchStep) Name() string {
	return "search"
}

// Do executes the search step.
func (s *SearchStep) Do(ctx context.Context, job *Job) error {
	submitted := false
	for _, h := range s.selectors.SearchButtons {
		ok, err := job.Page.Click(ctx, h)
		if err != nil {
			return fmt.Errorf("failed to click %s: %w", h, err)
		}
		if ok {
			s.logger.Debug("clicked search", "hint", h.String(), "date", job.Date)
			submitted = true
			break
		}
	}

	if !submitted && job.dateHint != nil {
		ok, err := job.Page.PressEnter(ctx, *job.dateHint)
		if err != nil {
			return fmt.Errorf("failed to press enter: %w", err)
		}
		submitted = ok
	}
	if !submitted {
		return ErrNoSearch
	}

	if err := job.Page.WaitReady(ctx); err != nil {
		return fmt.Errorf("results not ready: %w", err)
	}
	return job.Page.Sleep(ctx, s.settle)
}

// CollectStep extracts records from the current result page and keeps
// following next-page controls until none is enabled, the page stops
// changing, or maxPages pages have been read.
type CollectStep struct {
	selectors config.Selectors
	maxPages  int
	delay     time.Duration
	logger    *slog.Logger
}

// NewCollectStep creates a CollectStep.
func NewCollectStep(selectors config.Selectors, maxPages int, delay time.Duration, logger *slog.Logger) *CollectStep {
	if maxPages <= 0 {
		maxPages = config.DefaultMaxPages
	}
	return &CollectStep{selectors: selectors, maxPages: maxPages, delay: delay, logger: orDefault(logger)}
}

// Name returns the step name.
func (s *CollectStep) Name() string {
	return "collect"
}

// Do executes the collect step.
func (s *CollectStep) Do(ctx context.Context, job *Job) error {
	content, err := job.Page.HTML(ctx)
	if err != nil {
		return err
	}

	for {
		pageURL, err := job.Page.URL(ctx)
		if err != nil {
			return err
		}
		res, err := extract.Extract(content, s.selectors, pageURL)
		if err != nil {
			return err
		}
		job.Pages++
		if len(res.Records) > 0 {
			job.Records = append(job.Records, res.Records...)
			if job.Method == model.MethodNone {
				job.Method = res.Method
			}
		}
		s.logger.Debug("read result page",
			"date", job.Date,
			"page", job.Pages,
			"records", len(res.Records),
			"method", res.Method,
		)

		if job.Pages >= s.maxPages {
			s.logger.Warn("page limit reached", "date", job.Date, "max_pages", s.maxPages)
			return nil
		}

		advanced, err := s.next(ctx, job)
		if err != nil || !advanced {
			return err
		}

		next, err := job.Page.HTML(ctx)
		if err != nil {
			return err
		}
		if next == content {
			return nil
		}
		content = next
	}
}

// next clicks the first enabled next-page control.
func (s *CollectStep) next(ctx context.Context, job *Job) (bool, error) {
	for _, h := range s.selectors.NextButtons {
		enabled, err := job.Page.Enabled(ctx, h)
		if err != nil {
			return false, err
		}
		if !enabled {
			continue
		}
		clicked, err := job.Page.Click(ctx, h)
		if err != nil {
			return false, fmt.Errorf("failed to click %s: %w", h, err)
		}
		if !clicked {
			continue
		}
		if err := job.Page.WaitReady(ctx); err != nil {
			return false, fmt.Errorf("next page not ready: %w", err)
		}
		return true, job.Page.Sleep(ctx, s.delay)
	}
	return false, nil
}

// JSONFallbackStep reads records from captured search API responses when
// the result page yielded none.
type JSONFallbackStep struct {
	logger *slog.Logger
}

// NewJSONFallbackStep creates a JSONFallbackStep.
func NewJSONFallbackStep(logger *slog.Logger) *JSONFallbackStep {
	return &JSONFallbackStep{logger: orDefault(logger)}
}

// Name returns the step name.
func (s *JSONFallbackStep) Name() string {
	return "json_fallback"
}

// Do executes the JSON fallback step.
func (s *JSONFallbackStep) Do(ctx context.Context, job *Job) error {
	if len(job.Records) > 0 {
		return nil
	}
	responses := job.Page.JSONResponses()
	if len(responses) == 0 {
		return nil
	}

	payloads := make([]json.RawMessage, len(responses))
	for i, r := range responses {
		payloads[i] = r.Body
	}
	recs, err := extract.FromJSON(payloads, responses[len(responses)-1].URL)
	if err != nil {
		// an unreadable payload is not fatal, the raw text fallback may still work
		s.logger.Debug("ignoring JSON payload", "date", job.Date, "error", err)
		return nil
	}
	if len(recs) > 0 {
		job.Records = recs
		job.Method = model.MethodJSON
	}
	return ctx.Err()
}

// RawTextStep keeps the text of table rows when nothing else was found.
type RawTextStep struct {
	logger *slog.Logger
}

// NewRawTextStep creates a RawTextStep.
func NewRawTextStep(logger *slog.Logger) *RawTextStep {
	return &RawTextStep{logger: orDefault(logger)}
}

// Name returns the step name.
func (s *RawTextStep) Name() string {
	return "raw_text"
}

// Do executes the raw text step.
func (s *RawTextStep) Do(ctx context.Context, job *Job) error {
	if len(job.Records) > 0 {
		return nil
	}
	content, err := job.Page.HTML(ctx)
	if err != nil {
		return err
	}
	pageURL, err := job.Page.URL(ctx)
	if err != nil {
		return err
	}
	recs, err := extract.RawRows(content, job.Date, pageURL)
	if err != nil {
		return err
	}
	if len(recs) > 0 {
		s.logger.Warn("no structured results, keeping raw row text", "date", job.Date, "rows", len(recs))
		job.Records = recs
		job.Method = model.MethodRawText
	}
	return nil
}

// DedupeStep stamps records lacking an arrest date with the searched date
// and drops duplicates.
type DedupeStep struct{}

// NewDedupeStep creates a DedupeStep.
func NewDedupeStep() *DedupeStep {
	return &DedupeStep{}
}

// Name returns the step name.
func (s *DedupeStep) Name() string {
	return "dedupe"
}

// Do executes the dedupe step.
func (s *DedupeStep) Do(_ context.Context, job *Job) error {
	for i := range job.Records {
		if job.Records[i].ArrestDate == "" {
			job.Records[i].ArrestDate = job.Date
		}
	}
	job.Records = model.Dedupe(job.Records)
	return nil
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
