package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/nao1215/arrestscan/internal/model"
)

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "arrestscan"

	// DefaultEntryURL is the landing page of the sheriff's arrest reports.
	DefaultEntryURL = "https://www.sarasotasheriff.org/arrest-reports/index.php"

	// DefaultWorksheet is the spreadsheet tab that receives the records.
	DefaultWorksheet = "Sarasota County"

	// DefaultCredentialsFile is the service-account key read when uploading.
	DefaultCredentialsFile = "credentials.json"

	// DefaultPageTimeout bounds a single navigation or element wait.
	// The site loads its search form through an embedded frame, so the
	// budget is generous.
	DefaultPageTimeout = 60 * time.Second

	// DefaultSettleDelay is how long to wait after submitting the search
	// before reading results.
	DefaultSettleDelay = 1500 * time.Millisecond

	// DefaultPageDelay is the pause after clicking a "next" control.
	DefaultPageDelay = 800 * time.Millisecond

	// DefaultDateDelay is the minimum spacing between two scraped dates.
	DefaultDateDelay = 500 * time.Millisecond

	// DefaultMaxPages caps pagination per date so a "next" link that never
	// disables cannot loop forever.
	DefaultMaxPages = 50

	// DefaultRetries is the number of attempts per date, including the first.
	DefaultRetries = 3

	// DefaultRetryInitial and DefaultRetryMax bound the exponential backoff.
	DefaultRetryInitial = 1 * time.Second
	DefaultRetryMax     = 6 * time.Second

	// DefaultBatchSize scrapes one date at a time.
	DefaultBatchSize = 1

	// DefaultJSONURLPattern selects which JSON responses are kept as a
	// fallback data source.
	DefaultJSONURLPattern = `(?i)arrest|inmate|search|booking`

	// DefaultUserAgent is sent by the browser instead of the headless marker.
	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
)

// Upload modes.
const (
	// UploadReplace clears the worksheet and writes header plus rows.
	UploadReplace = "replace"
	// UploadAppend appends rows below existing data.
	UploadAppend = "append"
)

// Output formats for --format.
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatXLSX     = "xlsx"
	FormatMarkdown = "markdown"
)

// Config holds all configuration options for arrestscan.
// It is populated from CLI flags, optionally overlaid on values from the
// .arrestscan file, and passed through the application explicitly.
type Config struct {
	// Date is a single date to scrape. Mutually exclusive with Start/End.
	Date string

	// Start and End form an inclusive date range.
	Start string
	End   string

	// Headful shows the browser window instead of running headless.
	Headful bool

	// NoUpload skips the spreadsheet upload.
	NoUpload bool

	// Output is an optional local file receiving all scraped records.
	Output string

	// Format selects the encoding of Output. Empty means infer from the
	// file extension, falling back to JSON.
	Format string

	// EntryURL is the first page the browser opens.
	EntryURL string

	// QuickLinks are link texts clicked, in order, to reach the search form
	// when the entry page is a landing page.
	QuickLinks []string

	// Selectors are the CSS hints used to find form controls and results.
	Selectors Selectors

	// JSONURLPattern is a regular expression matched against response URLs
	// when capturing JSON payloads.
	JSONURLPattern string

	// SheetID is the spreadsheet ID taken from the sheet URL.
	SheetID string

	// Worksheet is the tab name inside the spreadsheet.
	Worksheet string

	// CredentialsFile is the path of the service-account JSON key.
	CredentialsFile string

	// UploadMode is UploadReplace or UploadAppend.
	UploadMode string

	// PageTimeout bounds navigation and element waits.
	PageTimeout time.Duration

	// SettleDelay is waited after submitting the search form.
	SettleDelay time.Duration

	// PageDelay is waited after each pagination click.
	PageDelay time.Duration

	// DateDelay is the minimum spacing between starting two dates.
	DateDelay time.Duration

	// MaxPages caps the number of result pages read per date.
	MaxPages int

	// Retries is the number of attempts per date including the first one.
	Retries int

	// RetryInitial and RetryMax bound the exponential backoff between attempts.
	RetryInitial time.Duration
	RetryMax     time.Duration

	// BatchSize is the number of dates scraped concurrently.
	BatchSize int

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is an explicit path to the configuration file.
	ConfigFilePath string

	// DBDir is the directory holding the history database. Empty disables history.
	DBDir string

	// SaveToDB records the run in the history database.
	SaveToDB bool

	// OnlyNew drops records already stored by a previous run before output
	// and upload.
	OnlyNew bool

	// ChromePath overrides the Chrome executable lookup.
	ChromePath string

	// NoSandbox passes --no-sandbox to Chrome, needed in most containers.
	NoSandbox bool

	// UserAgent is the browser user agent.
	UserAgent string

	// WindowWidth and WindowHeight size the browser viewport. Zero keeps
	// the browser default.
	WindowWidth  int
	WindowHeight int
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		EntryURL:        DefaultEntryURL,
		QuickLinks:      DefaultQuickLinks(),
		Selectors:       DefaultSelectors(),
		JSONURLPattern:  DefaultJSONURLPattern,
		Worksheet:       DefaultWorksheet,
		CredentialsFile: DefaultCredentialsFile,
		UploadMode:      UploadReplace,
		PageTimeout:     DefaultPageTimeout,
		SettleDelay:     DefaultSettleDelay,
		PageDelay:       DefaultPageDelay,
		DateDelay:       DefaultDateDelay,
		MaxPages:        DefaultMaxPages,
		Retries:         DefaultRetries,
		RetryInitial:    DefaultRetryInitial,
		RetryMax:        DefaultRetryMax,
		BatchSize:       DefaultBatchSize,
		UserAgent:       DefaultUserAgent,
	}
}

// DefaultQuickLinks returns the link texts that lead from the sheriff's
// landing page to the arrest search.
func DefaultQuickLinks() []string {
	return []string{"Arrests & Inmates", "Arrests & Inmates Search", "Arrest Inquiry"}
}

// XDGDataDir returns the XDG data directory for arrestscan.
// On Linux: ~/.local/share/arrestscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for arrestscan.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if c.Date != "" && (c.Start != "" || c.End != "") {
		return ErrConflictingDates
	}
	if (c.Start == "") != (c.End == "") {
		return ErrIncompleteRange
	}
	if c.Date != "" {
		if _, err := model.NormalizeDate(c.Date); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidDate, c.Date)
		}
	}
	if c.Start != "" {
		if _, err := model.DateRange(c.Start, c.End); err != nil {
			if errors.Is(err, model.ErrRangeOrder) {
				return ErrInvalidRange
			}
			return fmt.Errorf("%w: %v", ErrInvalidDate, err)
		}
	}

	if strings.TrimSpace(c.EntryURL) == "" {
		return ErrNoEntryURL
	}
	if c.PageTimeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}
	if c.Retries < 1 {
		return ErrInvalidRetries
	}
	if c.MaxPages <= 0 {
		return ErrInvalidMaxPages
	}
	if c.SettleDelay < 0 || c.PageDelay < 0 || c.DateDelay < 0 || c.RetryInitial < 0 || c.RetryMax < 0 {
		return ErrInvalidDelay
	}

	if c.UploadMode != UploadReplace && c.UploadMode != UploadAppend {
		return ErrInvalidUploadMode
	}
	if c.WindowWidth < 0 || c.WindowHeight < 0 {
		return ErrInvalidWindowSize
	}
	if !c.NoUpload {
		if c.OnlyNew && c.UploadMode == UploadReplace {
			return ErrOnlyNewReplace
		}
		if strings.TrimSpace(c.SheetID) == "" {
			return ErrNoSheetID
		}
		if strings.TrimSpace(c.Worksheet) == "" {
			return ErrNoWorksheet
		}
	}

	switch c.Format {
	case "", FormatJSON, FormatCSV, FormatXLSX, FormatMarkdown:
	default:
		return ErrInvalidFormat
	}

	return nil
}

// Dates resolves the dates to scrape as YYYY-MM-DD strings.
// With neither --date nor a range the day before now is used, which is
// what a nightly schedule wants.
func (c *Config) Dates(now time.Time) ([]string, error) {
	switch {
	case c.Date != "":
		d, err := model.NormalizeDate(c.Date)
		if err != nil {
			return nil, err
		}
		return []string{d}, nil
	case c.Start != "" || c.End != "":
		return model.DateRange(c.Start, c.End)
	default:
		return []string{now.AddDate(0, 0, -1).Format(model.DateLayout)}, nil
	}
}

// OutputFormat returns the format used for Output: the explicit Format when
// set, otherwise one derived from the file extension.
func (c *Config) OutputFormat() string {
	if c.Format != "" {
		return c.Format
	}
	switch strings.ToLower(filepath.Ext(c.Output)) {
	case ".csv":
		return FormatCSV
	case ".xlsx":
		return FormatXLSX
	case ".md", ".markdown":
		return FormatMarkdown
	default:
		return FormatJSON
	}
}

// ApplyFile overlays values from a loaded configuration file. Only fields
// present in the file replace the current values; callers apply CLI flags
// afterwards so flags win.
func (c *Config) ApplyFile(f *File) {
	if f == nil {
		return
	}
	s := f.Site
	if s.EntryURL != "" {
		c.EntryURL = s.EntryURL
	}
	if len(s.QuickLinks) > 0 {
		c.QuickLinks = s.QuickLinks
	}
	if s.JSONURLPattern != "" {
		c.JSONURLPattern = s.JSONURLPattern
	}
	c.Selectors = c.Selectors.Merge(s.Selectors)

	u := f.Upload
	if u.SheetID != "" {
		c.SheetID = u.SheetID
	}
	if u.Worksheet != "" {
		c.Worksheet = u.Worksheet
	}
	if u.Credentials != "" {
		c.CredentialsFile = u.Credentials
	}
	if u.Mode != "" {
		c.UploadMode = u.Mode
	}

	b := f.Browser
	if b.ChromePath != "" {
		c.ChromePath = b.ChromePath
	}
	if b.UserAgent != "" {
		c.UserAgent = b.UserAgent
	}
	if b.NoSandbox {
		c.NoSandbox = true
	}
	if b.Timeout > 0 {
		c.PageTimeout = b.Timeout
	}
	if b.MaxPages > 0 {
		c.MaxPages = b.MaxPages
	}
	if b.WindowWidth > 0 && b.WindowHeight > 0 {
		c.WindowWidth, c.WindowHeight = b.WindowWidth, b.WindowHeight
	}
}
