package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"regexp"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/nao1215/arrestscan/internal/browser"
	"github.com/nao1215/arrestscan/internal/config"
	"github.com/nao1215/arrestscan/internal/database"
	"github.com/nao1215/arrestscan/internal/model"
	"github.com/nao1215/arrestscan/internal/pipeline"
	"github.com/nao1215/arrestscan/internal/report"
	"github.com/nao1215/arrestscan/internal/sheets"
	"github.com/spf13/cobra"
)

// sheetIDEnv supplies the spreadsheet ID when neither flag nor file sets it.
const sheetIDEnv = "ARRESTSCAN_SHEET_ID"

var (
	// errAllDatesFailed is returned when no requested date could be scraped.
	errAllDatesFailed = errors.New("every requested date failed")

	// errUploadFailed wraps spreadsheet upload failures.
	errUploadFailed = errors.New("upload failed")
)

// NewScrapeCmd creates the scrape command.
func NewScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Scrape arrest reports for a date or a date range",
		Long: `Scrape opens the arrest-report search in Chrome, searches each requested
date, reads every result page, and uploads the records to Google Sheets.

Without --date or --start/--end the previous day is scraped. Dates accept
YYYY-MM-DD or MM/DD/YYYY. A date that still fails after all retries is
reported and skipped; the command exits non-zero only when every date
failed or the upload failed.

Examples:
  # Scrape yesterday and upload
  arrestscan scrape --sheet-id 1AbC...xyz

  # Scrape one day without uploading and save a spreadsheet
  arrestscan scrape --date 10/18/2026 --no-upload -o arrests.xlsx

  # Scrape a week, two dates at a time, appending only unseen records
  arrestscan scrape --start 2026-10-12 --end 2026-10-18 --batch 2 --mode append --only-new

  # Watch the browser while debugging selector hints
  arrestscan scrape --date 2026-10-18 --headful --no-upload -v`,
		Args: cobra.NoArgs,
		RunE: runScrapeCmd,
	}

	// Date selection
	cmd.Flags().StringP("date", "d", "", "Date to scrape (YYYY-MM-DD or MM/DD/YYYY)")
	cmd.Flags().String("start", "", "First date of an inclusive range")
	cmd.Flags().String("end", "", "Last date of an inclusive range")

	// Browser
	cmd.Flags().Bool("headful", false, "Show the browser window")
	cmd.Flags().DurationP("timeout", "t", config.DefaultPageTimeout, "Timeout for each page load or element wait")
	cmd.Flags().IntP("retries", "r", config.DefaultRetries, "Attempts per date, including the first")
	cmd.Flags().IntP("max-pages", "p", config.DefaultMaxPages, "Maximum result pages read per date")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize, "Number of dates scraped concurrently")
	cmd.Flags().String("chrome-path", "", "Chrome or Chromium executable (default: auto-detect)")
	cmd.Flags().Bool("no-sandbox", false, "Run Chrome without its sandbox (containers)")

	// Output
	cmd.Flags().StringP("output", "o", "", "Also write records to this file")
	cmd.Flags().StringP("format", "f", "", "Output file format: json, csv, xlsx or markdown (default: from extension)")

	// Upload
	cmd.Flags().Bool("no-upload", false, "Skip the Google Sheets upload")
	cmd.Flags().String("sheet-id", "", "Spreadsheet ID (env "+sheetIDEnv+")")
	cmd.Flags().StringP("worksheet", "w", config.DefaultWorksheet, "Worksheet (tab) name")
	cmd.Flags().String("credentials", config.DefaultCredentialsFile, "Service-account JSON key")
	cmd.Flags().String("mode", config.UploadReplace, "Upload mode: replace or append (--only-new defaults to append)")

	// History
	cmd.Flags().Bool("only-new", false, "Output and upload only records not seen by earlier runs")
	cmd.Flags().Bool("no-history", false, "Do not record this run in the history database")

	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .arrestscan in current or home directory)")

	return cmd
}

// runScrapeCmd executes the scrape command.
func runScrapeCmd(cmd *cobra.Command, _ []string) error {
	cfg, err := buildConfig(cmd)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd, os.Stderr)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := defaultScrapeEnv(cmd.OutOrStdout(), logger)
	return runScrape(ctx, cfg, env)
}

// buildConfig layers defaults, the configuration file, the environment and
// flags, in increasing priority.
func buildConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.NewConfig()

	var err error
	cfg.ConfigFilePath, err = cmd.Flags().GetString("config")
	if err != nil {
		return nil, err
	}

	// If user explicitly specified a config file path, error if not found.
	// If no path specified, silently use defaults if no file found.
	modeSet := false
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	if configPath != "" {
		file, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(file)
		modeSet = file.Upload.Mode != ""
	} else if cfg.ConfigFilePath != "" {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	if cfg.SheetID == "" {
		cfg.SheetID = lookupEnv(sheetIDEnv)
	}

	f := flagSetter{cmd: cmd}
	f.str("date", &cfg.Date)
	f.str("start", &cfg.Start)
	f.str("end", &cfg.End)
	f.boolean("headful", &cfg.Headful)
	f.duration("timeout", &cfg.PageTimeout)
	f.integer("retries", &cfg.Retries)
	f.integer("max-pages", &cfg.MaxPages)
	f.integer("batch", &cfg.BatchSize)
	f.str("chrome-path", &cfg.ChromePath)
	f.boolean("no-sandbox", &cfg.NoSandbox)
	f.str("output", &cfg.Output)
	f.str("format", &cfg.Format)
	f.boolean("no-upload", &cfg.NoUpload)
	f.str("sheet-id", &cfg.SheetID)
	f.str("worksheet", &cfg.Worksheet)
	f.str("credentials", &cfg.CredentialsFile)
	f.str("mode", &cfg.UploadMode)
	f.boolean("only-new", &cfg.OnlyNew)
	if f.err != nil {
		return nil, f.err
	}
	// Uploading only the new records only makes sense when appending.
	if cfg.OnlyNew && !modeSet && !cmd.Flags().Changed("mode") {
		cfg.UploadMode = config.UploadAppend
	}

	noHistory, err := cmd.Flags().GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory
	cfg.DBDir = config.XDGDataDir()
	cfg.Verbose = getVerboseFlag(cmd)

	return cfg, nil
}

// flagSetter copies flags the user actually set, so unset flags keep the
// values loaded from the configuration file.
type flagSetter struct {
	cmd *cobra.Command
	err error
}

func (f *flagSetter) changed(name string) bool {
	return f.err == nil && f.cmd.Flags().Changed(name)
}

func (f *flagSetter) str(name string, dst *string) {
	if f.changed(name) {
		*dst, f.err = f.cmd.Flags().GetString(name)
	}
}

func (f *flagSetter) boolean(name string, dst *bool) {
	if f.changed(name) {
		*dst, f.err = f.cmd.Flags().GetBool(name)
	}
}

func (f *flagSetter) integer(name string, dst *int) {
	if f.changed(name) {
		*dst, f.err = f.cmd.Flags().GetInt(name)
	}
}

func (f *flagSetter) duration(name string, dst *time.Duration) {
	if f.changed(name) {
		*dst, f.err = f.cmd.Flags().GetDuration(name)
	}
}

// recordUploader is the part of *sheets.Uploader the scrape command uses.
type recordUploader interface {
	Upload(ctx context.Context, records []model.ArrestRecord) (sheets.Result, error)
}

// scrapeEnv holds the collaborators of a scrape run. Tests replace the
// browser and the uploader.
type scrapeEnv struct {
	stdout      io.Writer
	logger      *slog.Logger
	now         func() time.Time
	openBrowser func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (browser.Opener, func(), error)
	newUploader func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (recordUploader, error)
}

func defaultScrapeEnv(stdout io.Writer, logger *slog.Logger) scrapeEnv {
	return scrapeEnv{
		stdout:      stdout,
		logger:      logger,
		now:         time.Now,
		openBrowser: launchChrome,
		newUploader: newSheetsUploader,
	}
}

// launchChrome starts the browser configured by cfg.
func launchChrome(ctx context.Context, cfg *config.Config, logger *slog.Logger) (browser.Opener, func(), error) {
	opts := []browser.Option{
		browser.WithHeadless(!cfg.Headful),
		browser.WithNoSandbox(cfg.NoSandbox),
		browser.WithTimeout(cfg.PageTimeout),
		browser.WithUserAgent(cfg.UserAgent),
		browser.WithLogger(logger),
	}
	if cfg.ChromePath != "" {
		opts = append(opts, browser.WithExecPath(cfg.ChromePath))
	}
	if cfg.WindowWidth > 0 && cfg.WindowHeight > 0 {
		opts = append(opts, browser.WithWindowSize(cfg.WindowWidth, cfg.WindowHeight))
	}
	if cfg.JSONURLPattern != "" {
		re, err := regexp.Compile(cfg.JSONURLPattern)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid JSON URL pattern: %w", err)
		}
		opts = append(opts, browser.WithJSONCapture(re))
	}

	b, err := browser.New(ctx, opts...)
	if err != nil {
		return nil, nil, err
	}
	return b, b.Close, nil
}

// newSheetsUploader authenticates with the configured service-account key.
func newSheetsUploader(ctx context.Context, cfg *config.Config, logger *slog.Logger) (recordUploader, error) {
	return sheets.NewFromCredentialsFile(ctx, cfg.CredentialsFile, cfg.SheetID, cfg.Worksheet,
		sheets.WithMode(cfg.UploadMode),
		sheets.WithLogger(logger),
	)
}

// runScrape scrapes every requested date, then writes, uploads and records
// the result.
func runScrape(ctx context.Context, cfg *config.Config, env scrapeEnv) error {
	dates, err := cfg.Dates(env.now())
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	logger := env.logger
	out := env.stdout

	logger.Info("starting scrape",
		"dates", len(dates),
		"entryURL", cfg.EntryURL,
		"batchSize", cfg.BatchSize,
		"upload", !cfg.NoUpload,
	)

	// Open database connection if saving or filtering is enabled
	var db *database.HistoryDB
	if cfg.SaveToDB || cfg.OnlyNew {
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open history database: %w", err)
		}
		defer db.Close()
		logger.Info("history database opened", "path", db.Path())
	}

	fmt.Fprintf(out, "Scraping %s...\n", report.DateSpan(dates))

	opener, closeBrowser, err := env.openBrowser(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}

	run := model.NewRunReport(dates)
	run.StartedAt = env.now()
	run.Results = make([]model.DateResult, len(dates))

	runner := pipeline.NewRunner(opener, cfg, pipeline.WithRunnerLogger(logger))
	bp := pipeline.NewBatchProcessor(runner,
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithInterval(cfg.DateDelay),
		pipeline.WithBatchLogger(logger),
	)

	var mu sync.Mutex
	scrapeErr := bp.ProcessDatesWithCallback(ctx, dates, func(result model.DateResult, index int) {
		mu.Lock()
		defer mu.Unlock()

		run.Results[index] = result
		if result.Failed() {
			fmt.Fprintf(out, "[%d/%d] %s failed: %s\n", index+1, len(dates), result.Date, result.Error)
			return
		}
		fmt.Fprintf(out, "[%d/%d] %s: %d record(s)\n", index+1, len(dates), result.Date, len(result.Records))
	})
	closeBrowser()
	run.FinishedAt = env.now()

	if scrapeErr != nil {
		logger.Warn("scrape interrupted", "error", scrapeErr)
	}

	// History is written even after an interrupt.
	dbCtx := context.WithoutCancel(ctx)

	view := run
	if cfg.OnlyNew {
		if view, err = newRecordsOnly(dbCtx, db, run); err != nil {
			return err
		}
		fmt.Fprintf(out, "%d of %d record(s) not seen before\n", view.TotalRecords(), run.TotalRecords())
	}

	if cfg.Output != "" {
		if err := report.WriteFile(cfg.Output, cfg.OutputFormat(), cfg.Worksheet, view); err != nil {
			return err
		}
		run.OutputFile = cfg.Output
		fmt.Fprintf(out, "Saved %d record(s) to %s\n", view.TotalRecords(), cfg.Output)
	}

	var uploadErr error
	if !cfg.NoUpload && scrapeErr == nil && !run.AllFailed() {
		uploadErr = upload(ctx, cfg, env, view)
		if uploadErr != nil {
			run.UploadError = uploadErr.Error()
			logger.Error("upload failed", "error", uploadErr)
		} else {
			run.Uploaded = true
		}
	}

	if cfg.SaveToDB && db != nil {
		newCount, err := db.SaveRun(dbCtx, run)
		if err != nil {
			logger.Error("failed to save run", "error", err)
		} else {
			logger.Info("run saved to history", "run", run.ID, "new", newCount)
		}
	}

	fmt.Fprintln(out)
	if _, err := report.NewSimpleWriter(out, report.WithVerbose(cfg.Verbose)).Write(run); err != nil {
		logger.Error("failed to print summary", "error", err)
	}

	switch {
	case scrapeErr != nil:
		return fmt.Errorf("scrape interrupted: %w", scrapeErr)
	case run.AllFailed():
		return errAllDatesFailed
	case uploadErr != nil:
		return fmt.Errorf("%w: %w", errUploadFailed, uploadErr)
	}
	return nil
}

// upload sends the records of run to the configured worksheet.
func upload(ctx context.Context, cfg *config.Config, env scrapeEnv, run *model.RunReport) error {
	records := run.Records()
	if len(records) == 0 {
		fmt.Fprintln(env.stdout, "No records to upload")
		return nil
	}

	u, err := env.newUploader(ctx, cfg, env.logger)
	if err != nil {
		return err
	}
	res, err := u.Upload(ctx, records)
	if err != nil {
		return err
	}

	if res.Created {
		fmt.Fprintf(env.stdout, "Created worksheet %q\n", cfg.Worksheet)
	}
	fmt.Fprintf(env.stdout, "Uploaded %d record(s) to %q (%s)\n", res.Rows, cfg.Worksheet, cfg.UploadMode)
	return nil
}

// newRecordsOnly returns a copy of run whose per-date records exclude every
// record already stored in the history database.
func newRecordsOnly(ctx context.Context, db *database.HistoryDB, run *model.RunReport) (*model.RunReport, error) {
	fresh, err := db.FilterNew(ctx, run.Records())
	if err != nil {
		return nil, fmt.Errorf("failed to filter known records: %w", err)
	}
	keep := make(map[string]struct{}, len(fresh))
	for _, rec := range fresh {
		keep[rec.Fingerprint()] = struct{}{}
	}

	view := *run
	view.Results = make([]model.DateResult, len(run.Results))
	for i, res := range run.Results {
		filtered := make([]model.ArrestRecord, 0, len(res.Records))
		for _, rec := range res.Records {
			if _, ok := keep[rec.Fingerprint()]; ok {
				filtered = append(filtered, rec)
			}
		}
		res.Records = filtered
		view.Results[i] = res
	}
	return &view, nil
}

// lookupEnv returns the trimmed value of an environment variable.
func lookupEnv(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}
