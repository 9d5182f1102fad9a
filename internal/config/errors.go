package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and let callers use
// errors.Is() while still printing a message a human can act on.
var (
	// ErrConflictingDates is returned when --date is combined with --start or --end.
	ErrConflictingDates = errors.New("conflicting dates: use either --date or --start/--end")

	// ErrIncompleteRange is returned when only one end of a date range is given.
	ErrIncompleteRange = errors.New("incomplete date range: provide both --start and --end")

	// ErrInvalidDate is returned when a date is neither YYYY-MM-DD nor M/D/YYYY.
	ErrInvalidDate = errors.New("invalid date: use YYYY-MM-DD or MM/DD/YYYY")

	// ErrInvalidRange is returned when the range start is after its end.
	ErrInvalidRange = errors.New("invalid date range: start is after end")

	// ErrInvalidTimeout is returned when the page timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrInvalidRetries is returned when the attempt count is below one.
	ErrInvalidRetries = errors.New("invalid retries: must be at least 1")

	// ErrInvalidMaxPages is returned when the pagination limit is not positive.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be positive")

	// ErrInvalidDelay is returned when any politeness delay is negative.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidUploadMode is returned for an upload mode other than replace or append.
	ErrInvalidUploadMode = errors.New("invalid upload mode: must be replace or append")

	// ErrOnlyNewReplace is returned when --only-new would replace the worksheet
	// with just the new records, wiping rows uploaded by earlier runs.
	ErrOnlyNewReplace = errors.New("only-new uploads must use append mode: replace would drop earlier rows")

	// ErrInvalidWindowSize is returned when a window dimension is negative.
	ErrInvalidWindowSize = errors.New("invalid window size: must be non-negative")

	// ErrNoSheetID is returned when uploading is enabled without a spreadsheet ID.
	ErrNoSheetID = errors.New("no spreadsheet ID: set --sheet-id or use --no-upload")

	// ErrNoWorksheet is returned when uploading is enabled with an empty worksheet name.
	ErrNoWorksheet = errors.New("no worksheet name: set --worksheet")

	// ErrInvalidFormat is returned when --format names an unknown output format.
	ErrInvalidFormat = errors.New("invalid output format: must be json, csv, xlsx or markdown")

	// ErrNoEntryURL is returned when the entry URL is empty.
	ErrNoEntryURL = errors.New("no entry URL configured")
)
