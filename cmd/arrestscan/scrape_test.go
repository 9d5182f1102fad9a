package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/arrestscan/internal/browser"
	"github.com/nao1215/arrestscan/internal/browser/browsertest"
	"github.com/nao1215/arrestscan/internal/config"
	"github.com/nao1215/arrestscan/internal/database"
	"github.com/nao1215/arrestscan/internal/model"
	"github.com/nao1215/arrestscan/internal/sheets"
)

const (
	siteRoot  = "https://example.org/"
	searchURL = "https://example.org/arrests/index.php"
)

const landingHTML = `<html><body>
<nav><a href="/about">About</a><a href="/arrests/index.php">Arrest Inquiry</a></nav>
</body></html>`

const searchHTML = `<html><body>
<form action="/arrests/results">
  <input type="date" name="date">
  <button type="submit">Search</button>
</form>
</body></html>`

const resultsHTML = `<html><body>
<table>
  <thead><tr><th>Name</th><th>Booking #</th><th>Arresting Agency</th><th>Charges</th></tr></thead>
  <tbody>
    <tr><td>DOE, JOHN</td><td>A1</td><td>SCSO</td><td>DUI</td></tr>
    <tr><td>ROE, JANE</td><td>A2</td><td>SPD</td><td>THEFT</td></tr>
  </tbody>
</table>
</body></html>`

func resultsURL(date string) string {
	return "https://example.org/arrests/results?date=" + date
}

// fakeSite serves the landing, search, and one result page per date.
func fakeSite(dates ...string) *browsertest.Opener {
	return &browsertest.Opener{
		New: func(int) *browsertest.FakePage {
			routes := map[string]string{
				siteRoot:  landingHTML,
				searchURL: searchHTML,
			}
			for _, d := range dates {
				routes[resultsURL(d)] = resultsHTML
			}
			return browsertest.NewFakePage(routes)
		},
	}
}

type fakeUploader struct {
	mu      sync.Mutex
	calls   int
	records []model.ArrestRecord
	err     error
}

func (f *fakeUploader) Upload(_ context.Context, records []model.ArrestRecord) (sheets.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return sheets.Result{}, f.err
	}
	f.records = append(f.records, records...)
	return sheets.Result{Rows: len(records), Header: true}, nil
}

func scrapeTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.NewConfig()
	cfg.EntryURL = siteRoot
	cfg.QuickLinks = []string{"Arrest Inquiry"}
	cfg.Retries = 1
	cfg.RetryInitial = 0
	cfg.DateDelay = 0
	cfg.SheetID = "sheet-123"
	cfg.SaveToDB = true
	cfg.DBDir = t.TempDir()
	return cfg
}

func testEnv(opener browser.Opener, up *fakeUploader) (scrapeEnv, *bytes.Buffer) {
	var out bytes.Buffer
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.Local)
	return scrapeEnv{
		stdout: &out,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		now:    func() time.Time { return now },
		openBrowser: func(context.Context, *config.Config, *slog.Logger) (browser.Opener, func(), error) {
			return opener, func() {}, nil
		},
		newUploader: func(context.Context, *config.Config, *slog.Logger) (recordUploader, error) {
			return up, nil
		},
	}, &out
}

func TestRunScrape(t *testing.T) {
	t.Parallel()

	t.Run("scrapes yesterday, writes, uploads and records the run", func(t *testing.T) {
		t.Parallel()

		cfg := scrapeTestConfig(t)
		cfg.Output = filepath.Join(t.TempDir(), "out", "arrests.json")
		up := &fakeUploader{}
		env, out := testEnv(fakeSite("2026-10-18"), up)

		if err := runScrape(context.Background(), cfg, env); err != nil {
			t.Fatalf("runScrape() error = %v\n%s", err, out.String())
		}

		if len(up.records) != 2 {
			t.Fatalf("uploaded %d records, want 2", len(up.records))
		}
		if up.records[0].ArrestDate != "2026-10-18" {
			t.Errorf("ArrestDate = %q, want the searched date", up.records[0].ArrestDate)
		}

		data, err := os.ReadFile(cfg.Output)
		if err != nil {
			t.Fatalf("output not written: %v", err)
		}
		var written []model.ArrestRecord
		if err := json.Unmarshal(data, &written); err != nil {
			t.Fatalf("output is not a JSON array: %v", err)
		}
		if len(written) != 2 {
			t.Errorf("wrote %d records, want 2", len(written))
		}

		if !strings.Contains(out.String(), "[1/1] 2026-10-18: 2 record(s)") {
			t.Errorf("missing progress line:\n%s", out.String())
		}

		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		defer db.Close()
		runs, err := db.ListRuns(context.Background(), 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(runs) != 1 || !runs[0].Uploaded || runs[0].RecordCount != 2 {
			t.Errorf("history = %+v", runs)
		}
		if runs[0].OutputFile != cfg.Output {
			t.Errorf("OutputFile = %q", runs[0].OutputFile)
		}
	})

	t.Run("date range keeps going past a failed date", func(t *testing.T) {
		t.Parallel()

		cfg := scrapeTestConfig(t)
		cfg.Start = "10/16/2026"
		cfg.End = "10/18/2026"
		cfg.NoUpload = true
		site := fakeSite("2026-10-16", "2026-10-17", "2026-10-18")
		newPage := site.New
		site.New = func(n int) *browsertest.FakePage {
			p := newPage(n)
			if n == 1 {
				p.NavigateErrs = []error{browser.ErrTimeout}
			}
			return p
		}
		env, out := testEnv(site, &fakeUploader{})

		if err := runScrape(context.Background(), cfg, env); err != nil {
			t.Fatalf("runScrape() error = %v", err)
		}
		got := out.String()
		if !strings.Contains(got, "2026-10-17 failed") {
			t.Errorf("expected failed date in output:\n%s", got)
		}
		if !strings.Contains(got, "Records:   4") {
			t.Errorf("expected 4 records in summary:\n%s", got)
		}
	})

	t.Run("all dates failing is an error", func(t *testing.T) {
		t.Parallel()

		cfg := scrapeTestConfig(t)
		cfg.Date = "2026-10-18"
		up := &fakeUploader{}
		env, _ := testEnv(&browsertest.Opener{Err: browser.ErrLaunch}, up)

		err := runScrape(context.Background(), cfg, env)
		if !errors.Is(err, errAllDatesFailed) {
			t.Fatalf("runScrape() error = %v, want errAllDatesFailed", err)
		}
		if up.calls != 0 {
			t.Errorf("uploader called %d times", up.calls)
		}
	})

	t.Run("upload failure is reported and recorded", func(t *testing.T) {
		t.Parallel()

		cfg := scrapeTestConfig(t)
		cfg.Date = "2026-10-18"
		up := &fakeUploader{err: errors.New("quota exceeded")}
		env, _ := testEnv(fakeSite("2026-10-18"), up)

		err := runScrape(context.Background(), cfg, env)
		if !errors.Is(err, errUploadFailed) {
			t.Fatalf("runScrape() error = %v, want errUploadFailed", err)
		}

		db, err := database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			t.Fatal(err)
		}
		defer db.Close()
		runs, err := db.ListRuns(context.Background(), 1)
		if err != nil {
			t.Fatal(err)
		}
		if len(runs) != 1 || runs[0].Uploaded || runs[0].UploadError != "quota exceeded" {
			t.Errorf("history = %+v", runs)
		}
	})

	t.Run("only new records are uploaded on the second run", func(t *testing.T) {
		t.Parallel()

		cfg := scrapeTestConfig(t)
		cfg.Date = "2026-10-18"
		cfg.OnlyNew = true
		cfg.UploadMode = config.UploadAppend

		first := &fakeUploader{}
		env, _ := testEnv(fakeSite("2026-10-18"), first)
		if err := runScrape(context.Background(), cfg, env); err != nil {
			t.Fatalf("first run error = %v", err)
		}
		if len(first.records) != 2 {
			t.Fatalf("first run uploaded %d records, want 2", len(first.records))
		}

		second := &fakeUploader{}
		env, out := testEnv(fakeSite("2026-10-18"), second)
		if err := runScrape(context.Background(), cfg, env); err != nil {
			t.Fatalf("second run error = %v", err)
		}
		if second.calls != 0 {
			t.Errorf("second run uploaded %d records", len(second.records))
		}
		if !strings.Contains(out.String(), "0 of 2 record(s) not seen before") {
			t.Errorf("unexpected output:\n%s", out.String())
		}
	})

	t.Run("no history leaves the data directory empty", func(t *testing.T) {
		t.Parallel()

		cfg := scrapeTestConfig(t)
		cfg.Date = "2026-10-18"
		cfg.NoUpload = true
		cfg.SaveToDB = false
		env, _ := testEnv(fakeSite("2026-10-18"), &fakeUploader{})

		if err := runScrape(context.Background(), cfg, env); err != nil {
			t.Fatalf("runScrape() error = %v", err)
		}
		if _, err := os.Stat(filepath.Join(cfg.DBDir, database.FileName)); !os.IsNotExist(err) {
			t.Errorf("history database should not exist, stat err = %v", err)
		}
	})
}

func TestBuildConfig(t *testing.T) {
	t.Run("flags override the configuration file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "config.yaml")
		content := `upload:
  sheet_id: from-file
  worksheet: File Tab
  mode: append
browser:
  max_pages: 7
`
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}

		cmd := NewScrapeCmd()
		if err := cmd.ParseFlags([]string{"-c", path, "--worksheet", "Flag Tab", "--date", "2026-10-18"}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}

		if cfg.SheetID != "from-file" {
			t.Errorf("SheetID = %q, want from-file", cfg.SheetID)
		}
		if cfg.Worksheet != "Flag Tab" {
			t.Errorf("Worksheet = %q, want Flag Tab", cfg.Worksheet)
		}
		if cfg.UploadMode != config.UploadAppend {
			t.Errorf("UploadMode = %q, want append", cfg.UploadMode)
		}
		if cfg.MaxPages != 7 {
			t.Errorf("MaxPages = %d, want 7", cfg.MaxPages)
		}
		if cfg.Date != "2026-10-18" {
			t.Errorf("Date = %q", cfg.Date)
		}
		if !cfg.SaveToDB {
			t.Error("history should be on by default")
		}
	})

	t.Run("sheet ID from the environment", func(t *testing.T) {
		t.Setenv(sheetIDEnv, " env-sheet ")
		path := filepath.Join(t.TempDir(), "empty.yaml")
		if err := os.WriteFile(path, []byte("{}\n"), 0o600); err != nil {
			t.Fatal(err)
		}

		cmd := NewScrapeCmd()
		if err := cmd.ParseFlags([]string{"-c", path, "--no-history"}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if cfg.SheetID != "env-sheet" {
			t.Errorf("SheetID = %q, want env-sheet", cfg.SheetID)
		}
		if cfg.SaveToDB {
			t.Error("--no-history should disable history")
		}
	})

	t.Run("only new switches the default mode to append", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.yaml")
		if err := os.WriteFile(path, []byte("upload:\n  sheet_id: abc\n"), 0o600); err != nil {
			t.Fatal(err)
		}

		cmd := NewScrapeCmd()
		if err := cmd.ParseFlags([]string{"-c", path, "--only-new"}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if cfg.UploadMode != config.UploadAppend {
			t.Errorf("UploadMode = %q, want append", cfg.UploadMode)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() error = %v", err)
		}
	})

	t.Run("only new with explicit replace is rejected", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "empty.yaml")
		if err := os.WriteFile(path, []byte("upload:\n  sheet_id: abc\n"), 0o600); err != nil {
			t.Fatal(err)
		}

		cmd := NewScrapeCmd()
		if err := cmd.ParseFlags([]string{"-c", path, "--only-new", "--mode", "replace"}); err != nil {
			t.Fatal(err)
		}
		cfg, err := buildConfig(cmd)
		if err != nil {
			t.Fatalf("buildConfig() error = %v", err)
		}
		if cfg.UploadMode != config.UploadReplace {
			t.Errorf("UploadMode = %q, want replace", cfg.UploadMode)
		}
		if err := cfg.Validate(); !errors.Is(err, config.ErrOnlyNewReplace) {
			t.Errorf("Validate() error = %v, want ErrOnlyNewReplace", err)
		}
	})

	t.Run("explicit missing file is an error", func(t *testing.T) {
		cmd := NewScrapeCmd()
		if err := cmd.ParseFlags([]string{"-c", filepath.Join(t.TempDir(), "missing.yaml")}); err != nil {
			t.Fatal(err)
		}
		_, err := buildConfig(cmd)
		if !errors.Is(err, config.ErrConfigNotFound) {
			t.Errorf("buildConfig() error = %v, want ErrConfigNotFound", err)
		}
	})
}

func TestScrapeCmdFlags(t *testing.T) {
	t.Parallel()

	cmd := NewScrapeCmd()
	for _, name := range []string{
		"date", "start", "end", "headful", "no-upload", "output", "format",
		"sheet-id", "worksheet", "credentials", "mode", "batch", "timeout",
		"retries", "max-pages", "only-new", "no-history", "chrome-path",
		"no-sandbox", "config",
	} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("missing flag --%s", name)
		}
	}
}

func TestScrapeCmdRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "empty.yaml")
	if err := os.WriteFile(path, []byte("{}\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cmd := NewRootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"scrape", "-c", path, "--date", "2026-10-18", "--start", "2026-10-01", "--end", "2026-10-02"})
	err := cmd.Execute()
	if !errors.Is(err, config.ErrConflictingDates) {
		t.Errorf("Execute() error = %v, want ErrConflictingDates", err)
	}
}
