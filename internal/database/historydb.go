package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/arrestscan/internal/model"
)

// FileName is the database file created inside the data directory.
const FileName = "arrestscan.db"

// HistoryDB stores runs and the records they produced.
type HistoryDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{db: db, dbPath: dbPath}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Close closes the database connection.
func (h *HistoryDB) Close() error {
	return h.db.Close()
}

// Path returns the database file path.
func (h *HistoryDB) Path() string {
	return h.dbPath
}

func (h *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		dates TEXT NOT NULL,
		record_count INTEGER NOT NULL DEFAULT 0,
		new_count INTEGER NOT NULL DEFAULT 0,
		failed_dates TEXT,
		uploaded INTEGER NOT NULL DEFAULT 0,
		upload_error TEXT,
		output_file TEXT,
		report_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- one row per distinct record, keyed by its fingerprint
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		fingerprint TEXT NOT NULL UNIQUE,
		arrest_date TEXT,
		name TEXT,
		booking_number TEXT,
		record_json TEXT NOT NULL,
		first_run INTEGER NOT NULL REFERENCES runs(id),
		last_run INTEGER NOT NULL REFERENCES runs(id),
		first_seen DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_records_arrest_date ON records(arrest_date);
	CREATE INDEX IF NOT EXISTS idx_records_booking ON records(booking_number);

	CREATE TABLE IF NOT EXISTS run_records (
		run_id INTEGER NOT NULL REFERENCES runs(id),
		fingerprint TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (run_id, fingerprint)
	);
	`

	_, err := h.db.ExecContext(context.Background(), schema)
	return err
}

// RunSummary is the stored metadata of a run, without its records.
type RunSummary struct {
	ID          int64     `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Dates       []string  `json:"dates"`
	RecordCount int       `json:"record_count"`
	NewCount    int       `json:"new_count"`
	FailedDates []string  `json:"failed_dates,omitempty"`
	Uploaded    bool      `json:"uploaded"`
	UploadError string    `json:"upload_error,omitempty"`
	OutputFile  string    `json:"output_file,omitempty"`
}

// SaveRun stores run and its records in one transaction, sets run.ID, and
// returns the number of records never stored before.
func (h *HistoryDB) SaveRun(ctx context.Context, run *model.RunReport) (newCount int, err error) {
	reportJSON, err := json.Marshal(run)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize run: %w", err)
	}
	datesJSON, err := json.Marshal(run.Dates)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize dates: %w", err)
	}
	failedJSON, err := json.Marshal(run.FailedDates())
	if err != nil {
		return 0, fmt.Errorf("failed to serialize failed dates: %w", err)
	}
	records := run.Records()

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO runs (started_at, finished_at, dates, record_count, failed_dates, uploaded, upload_error, output_file, report_json)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		formatTimestamp(run.StartedAt),
		formatTimestamp(run.FinishedAt),
		string(datesJSON),
		len(records),
		string(failedJSON),
		run.Uploaded,
		run.UploadError,
		run.OutputFile,
		string(reportJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}

	for i, rec := range records {
		fp := rec.Fingerprint()
		recJSON, err := json.Marshal(rec)
		if err != nil {
			return 0, fmt.Errorf("failed to serialize record: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
		INSERT INTO records (fingerprint, arrest_date, name, booking_number, record_json, first_run, last_run)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(fingerprint) DO NOTHING
		`, fp, rec.ArrestDate, rec.Name, rec.BookingNumber, string(recJSON), runID, runID)
		if err != nil {
			return 0, fmt.Errorf("failed to insert record: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 1 {
			newCount++
		} else if _, err := tx.ExecContext(ctx,
			`UPDATE records SET last_run = ? WHERE fingerprint = ?`, runID, fp); err != nil {
			return 0, fmt.Errorf("failed to update record: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO run_records (run_id, fingerprint, position) VALUES (?, ?, ?)
		`, runID, fp, i); err != nil {
			return 0, fmt.Errorf("failed to link record: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE runs SET new_count = ? WHERE id = ?`, newCount, runID); err != nil {
		return 0, fmt.Errorf("failed to update run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}

	run.ID = runID
	return newCount, nil
}

// ListRuns returns the most recent runs first. A limit of zero or less
// returns every run.
func (h *HistoryDB) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
	SELECT id, started_at, finished_at, dates, record_count, new_count, failed_dates, uploaded, upload_error, output_file
	FROM runs
	ORDER BY id DESC
	`
	args := make([]any, 0, 1)
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var s RunSummary
		var started, finished, datesJSON string
		var failedJSON, uploadErr, output sql.NullString
		if err := rows.Scan(&s.ID, &started, &finished, &datesJSON, &s.RecordCount, &s.NewCount,
			&failedJSON, &s.Uploaded, &uploadErr, &output); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		s.StartedAt = parseTimestamp(started)
		s.FinishedAt = parseTimestamp(finished)
		s.UploadError = uploadErr.String
		s.OutputFile = output.String
		if err := json.Unmarshal([]byte(datesJSON), &s.Dates); err != nil {
			return nil, fmt.Errorf("failed to parse dates of run %d: %w", s.ID, err)
		}
		if failedJSON.Valid && failedJSON.String != "" {
			if err := json.Unmarshal([]byte(failedJSON.String), &s.FailedDates); err != nil {
				s.FailedDates = nil
			}
		}
		runs = append(runs, s)
	}
	return runs, rows.Err()
}

// GetRun returns the stored run with its per-date results, or nil when no
// run has that ID.
func (h *HistoryDB) GetRun(ctx context.Context, id int64) (*model.RunReport, error) {
	var reportJSON string
	err := h.db.QueryRowContext(ctx, `SELECT report_json FROM runs WHERE id = ?`, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	var run model.RunReport
	if err := json.Unmarshal([]byte(reportJSON), &run); err != nil {
		return nil, fmt.Errorf("failed to parse run: %w", err)
	}
	run.ID = id
	return &run, nil
}

// GetRunRecords returns the records of a run in the order they were
// scraped, including records first seen by earlier runs.
func (h *HistoryDB) GetRunRecords(ctx context.Context, id int64) ([]model.ArrestRecord, error) {
	rows, err := h.db.QueryContext(ctx, `
	SELECT r.record_json
	FROM run_records rr
	JOIN records r ON r.fingerprint = rr.fingerprint
	WHERE rr.run_id = ?
	ORDER BY rr.position
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run records: %w", err)
	}
	defer rows.Close()

	var records []model.ArrestRecord
	for rows.Next() {
		var recJSON string
		if err := rows.Scan(&recJSON); err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		var rec model.ArrestRecord
		if err := json.Unmarshal([]byte(recJSON), &rec); err != nil {
			continue // skip malformed rows
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// HasRecord reports whether a record with the fingerprint was stored.
func (h *HistoryDB) HasRecord(ctx context.Context, fingerprint string) (bool, error) {
	var count int
	err := h.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE fingerprint = ?`, fingerprint).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("failed to check record: %w", err)
	}
	return count > 0, nil
}

// FilterNew returns the records whose fingerprint was never stored,
// preserving order.
func (h *HistoryDB) FilterNew(ctx context.Context, records []model.ArrestRecord) ([]model.ArrestRecord, error) {
	out := make([]model.ArrestRecord, 0, len(records))
	for _, rec := range records {
		seen, err := h.HasRecord(ctx, rec.Fingerprint())
		if err != nil {
			return nil, err
		}
		if !seen {
			out = append(out, rec)
		}
	}
	return out, nil
}

// timestampFormats contains the timestamp formats SQLite may return.
// More specific formats come first.
var timestampFormats = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04:05.999",
}

func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTimestamp tries each known format and returns the zero time when
// none matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
