package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/nao1215/arrestscan/internal/config"
	"github.com/nao1215/arrestscan/internal/model"
	"github.com/nao1215/arrestscan/internal/retry"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"
)

// New worksheets get this grid size.
const (
	newSheetRows    = 1000
	newSheetColumns = 20
)

// valueInput makes the sheet parse dates and amounts as a user typing
// them would.
const valueInput = "USER_ENTERED"

// ErrNoSheetID is returned when no spreadsheet ID is configured.
var ErrNoSheetID = errors.New("spreadsheet ID is required")

// Result describes a completed upload.
type Result struct {
	// Rows is the number of record rows written, without the header.
	Rows int
	// Created is true when the worksheet had to be added.
	Created bool
	// Header is true when a header row was written.
	Header bool
	// Range is the A1 range reported by the API for the written data.
	Range string
}

// Uploader writes records to one worksheet.
type Uploader struct {
	svc       *sheetsapi.Service
	sheetID   string
	worksheet string
	mode      string
	retry     retry.Config
	logger    *slog.Logger
	clientOps []option.ClientOption
}

// Option configures an Uploader.
type Option func(*Uploader)

// WithMode selects config.UploadReplace or config.UploadAppend.
func WithMode(mode string) Option {
	return func(u *Uploader) {
		u.mode = mode
	}
}

// WithRetry sets the retry policy for API calls. The predicate is always
// replaced with one that recognises retryable API errors.
func WithRetry(cfg retry.Config) Option {
	return func(u *Uploader) {
		u.retry = cfg
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(u *Uploader) {
		u.logger = logger
	}
}

// WithClientOptions passes options to the Sheets API client, such as an
// endpoint or HTTP client.
func WithClientOptions(opts ...option.ClientOption) Option {
	return func(u *Uploader) {
		u.clientOps = append(u.clientOps, opts...)
	}
}

// New creates an Uploader for the worksheet named worksheet in the
// spreadsheet sheetID. Authentication comes from the client options.
func New(ctx context.Context, sheetID, worksheet string, opts ...Option) (*Uploader, error) {
	if sheetID == "" {
		return nil, ErrNoSheetID
	}
	u := &Uploader{
		sheetID:   sheetID,
		worksheet: worksheet,
		mode:      config.UploadReplace,
		retry:     retry.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(u)
	}
	if u.logger == nil {
		u.logger = slog.Default()
	}
	if u.worksheet == "" {
		u.worksheet = config.DefaultWorksheet
	}
	u.retry.ShouldRetry = Retryable
	if u.retry.OnRetry == nil {
		u.retry.OnRetry = retry.Logger(u.logger, "sheets", "spreadsheet", sheetID)
	}

	svc, err := sheetsapi.NewService(ctx, u.clientOps...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	u.svc = svc
	return u, nil
}

// NewFromCredentialsFile creates an Uploader authenticated with the
// service-account key at path.
func NewFromCredentialsFile(ctx context.Context, path, sheetID, worksheet string, opts ...Option) (*Uploader, error) {
	data, _, err := LoadCredentials(path)
	if err != nil {
		return nil, err
	}
	opts = append(opts, WithClientOptions(
		option.WithCredentialsJSON(data),
		option.WithScopes(sheetsapi.SpreadsheetsScope),
	))
	return New(ctx, sheetID, worksheet, opts...)
}

// Retryable reports whether an API error is worth retrying: rate limiting,
// server errors, and timeouts.
func Retryable(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError
	}
	return retry.IsTimeout(err)
}

// Ping checks that the spreadsheet is reachable with the configured
// credentials and returns its title.
func (u *Uploader) Ping(ctx context.Context) (string, error) {
	ss, err := retry.DoVal(ctx, u.retry, func(ctx context.Context) (*sheetsapi.Spreadsheet, error) {
		return u.svc.Spreadsheets.Get(u.sheetID).Fields("spreadsheetId", "properties.title").Context(ctx).Do()
	})
	if err != nil {
		return "", fmt.Errorf("failed to open spreadsheet %s: %w", u.sheetID, err)
	}
	if ss.Properties == nil {
		return "", nil
	}
	return ss.Properties.Title, nil
}

// EnsureWorksheet adds the worksheet when the spreadsheet lacks it and
// reports whether it did.
func (u *Uploader) EnsureWorksheet(ctx context.Context) (bool, error) {
	ss, err := retry.DoVal(ctx, u.retry, func(ctx context.Context) (*sheetsapi.Spreadsheet, error) {
		return u.svc.Spreadsheets.Get(u.sheetID).Fields("sheets.properties.title").Context(ctx).Do()
	})
	if err != nil {
		return false, fmt.Errorf("failed to list worksheets: %w", err)
	}
	for _, s := range ss.Sheets {
		if s.Properties != nil && s.Properties.Title == u.worksheet {
			return false, nil
		}
	}

	req := &sheetsapi.BatchUpdateSpreadsheetRequest{
		Requests: []*sheetsapi.Request{{
			AddSheet: &sheetsapi.AddSheetRequest{
				Properties: &sheetsapi.SheetProperties{
					Title: u.worksheet,
					GridProperties: &sheetsapi.GridProperties{
						RowCount:    newSheetRows,
						ColumnCount: newSheetColumns,
					},
				},
			},
		}},
	}
	err = retry.Do(ctx, u.retry, func(ctx context.Context) error {
		_, err := u.svc.Spreadsheets.BatchUpdate(u.sheetID, req).Context(ctx).Do()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to add worksheet %q: %w", u.worksheet, err)
	}
	u.logger.Info("created worksheet", "worksheet", u.worksheet)
	return true, nil
}

// Upload writes records using the configured mode. An empty record list
// makes no API call.
func (u *Uploader) Upload(ctx context.Context, records []model.ArrestRecord) (Result, error) {
	if len(records) == 0 {
		u.logger.Info("no records to upload")
		return Result{}, nil
	}

	created, err := u.EnsureWorksheet(ctx)
	if err != nil {
		return Result{}, err
	}

	cols := model.Columns(records)
	var res Result
	switch u.mode {
	case config.UploadAppend:
		res, err = u.append(ctx, cols, records)
	case config.UploadReplace, "":
		res, err = u.replace(ctx, cols, records)
	default:
		return Result{}, fmt.Errorf("%w: %q", config.ErrInvalidUploadMode, u.mode)
	}
	if err != nil {
		return Result{}, err
	}
	res.Created = created

	u.logger.Info("uploaded records",
		"worksheet", u.worksheet,
		"mode", u.mode,
		"rows", res.Rows,
		"range", res.Range,
	)
	return res, nil
}

func (u *Uploader) replace(ctx context.Context, cols []string, records []model.ArrestRecord) (Result, error) {
	tab := quoteSheet(u.worksheet)
	err := retry.Do(ctx, u.retry, func(ctx context.Context) error {
		_, err := u.svc.Spreadsheets.Values.Clear(u.sheetID, tab, &sheetsapi.ClearValuesRequest{}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to clear worksheet: %w", err)
	}
	return u.write(ctx, cols, records)
}

func (u *Uploader) append(ctx context.Context, cols []string, records []model.ArrestRecord) (Result, error) {
	tab := quoteSheet(u.worksheet)
	first, err := retry.DoVal(ctx, u.retry, func(ctx context.Context) (*sheetsapi.ValueRange, error) {
		return u.svc.Spreadsheets.Values.Get(u.sheetID, tab+"!1:1").Context(ctx).Do()
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to read worksheet: %w", err)
	}
	if len(first.Values) == 0 {
		return u.write(ctx, cols, records)
	}

	vr := &sheetsapi.ValueRange{Values: rows(nil, cols, records)}
	resp, err := retry.DoVal(ctx, u.retry, func(ctx context.Context) (*sheetsapi.AppendValuesResponse, error) {
		return u.svc.Spreadsheets.Values.Append(u.sheetID, tab+"!A1", vr).
			ValueInputOption(valueInput).
			InsertDataOption("INSERT_ROWS").
			Context(ctx).Do()
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to append rows: %w", err)
	}
	res := Result{Rows: len(records)}
	if resp.Updates != nil {
		res.Range = resp.Updates.UpdatedRange
	}
	return res, nil
}

// write puts the header and rows at A1.
func (u *Uploader) write(ctx context.Context, cols []string, records []model.ArrestRecord) (Result, error) {
	vr := &sheetsapi.ValueRange{Values: rows(cols, cols, records)}
	resp, err := retry.DoVal(ctx, u.retry, func(ctx context.Context) (*sheetsapi.UpdateValuesResponse, error) {
		return u.svc.Spreadsheets.Values.Update(u.sheetID, quoteSheet(u.worksheet)+"!A1", vr).
			ValueInputOption(valueInput).
			Context(ctx).Do()
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to write rows: %w", err)
	}
	return Result{Rows: len(records), Header: true, Range: resp.UpdatedRange}, nil
}

// rows converts records to sheet values, preceded by header when given.
func rows(header, cols []string, records []model.ArrestRecord) [][]any {
	out := make([][]any, 0, len(records)+1)
	if header != nil {
		out = append(out, toRow(header))
	}
	for _, r := range records {
		out = append(out, toRow(r.Values(cols)))
	}
	return out
}

func toRow(values []string) []any {
	row := make([]any, len(values))
	for i, v := range values {
		row[i] = v
	}
	return row
}

// quoteSheet quotes a worksheet name for use in an A1 range.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}
