package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/nao1215/arrestscan/internal/config"
	"github.com/nao1215/arrestscan/internal/database"
	"github.com/nao1215/arrestscan/internal/model"
	"github.com/nao1215/arrestscan/internal/report"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List previous scrape runs",
		Long: `History lists the runs recorded in the local history database, most
recent first. With --run it prints the records collected by that run.

Examples:
  # Last 20 runs
  arrestscan history

  # Records of run 12 as JSON
  arrestscan history --run 12 --json`,
		Args: cobra.NoArgs,
		RunE: runHistoryCmd,
	}

	cmd.Flags().IntP("limit", "n", 20, "Maximum number of runs to list (0 for all)")
	cmd.Flags().Int64("run", 0, "Show the records of this run ID")
	cmd.Flags().BoolP("json", "j", false, "Output JSON")
	cmd.Flags().String("db-dir", "", "History database directory (default: XDG data directory)")

	return cmd
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	runID, err := cmd.Flags().GetInt64("run")
	if err != nil {
		return err
	}
	asJSON, err := cmd.Flags().GetBool("json")
	if err != nil {
		return err
	}
	dbDir, err := cmd.Flags().GetString("db-dir")
	if err != nil {
		return err
	}
	if dbDir == "" {
		dbDir = config.XDGDataDir()
	}

	db, err := database.Open(dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return fmt.Errorf("no history yet (run 'arrestscan scrape' first): %w", err)
	}
	defer db.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if runID > 0 {
		return showRun(cmd, db, runID, asJSON)
	}

	runs, err := db.ListRuns(ctx, limit)
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found.")
		return nil
	}
	formatRunsList(out, runs)
	return nil
}

// showRun prints one run with its records.
func showRun(cmd *cobra.Command, db *database.HistoryDB, id int64, asJSON bool) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	run, err := db.GetRun(ctx, id)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("run %d not found", id)
	}

	if asJSON {
		_, err := report.NewJSONWriter(out, report.WithPrettyPrint()).WriteRun(run)
		return err
	}

	if _, err := report.NewSimpleWriter(out, report.WithVerbose(true)).Write(run); err != nil {
		return err
	}

	records, err := db.GetRunRecords(ctx, id)
	if err != nil {
		return err
	}
	formatRecords(out, records)
	return nil
}

// formatRunsList writes a tabular list of runs to out.
func formatRunsList(out io.Writer, runs []database.RunSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTARTED\tDATES\tRECORDS\tNEW\tFAILED\tUPLOADED")
	for _, r := range runs {
		_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%s\t%s\n",
			r.ID,
			formatTime(r.StartedAt),
			report.DateSpan(r.Dates),
			r.RecordCount,
			r.NewCount,
			failedColumn(r.FailedDates),
			uploadedColumn(r),
		)
	}
	_ = w.Flush()
}

// formatRecords writes the main fields of each record as a table.
func formatRecords(out io.Writer, records []model.ArrestRecord) {
	if len(records) == 0 {
		fmt.Fprintln(out, "\nNo records.")
		return
	}
	fmt.Fprintln(out)
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ARREST DATE\tNAME\tBOOKING #\tAGENCY\tCHARGES")
	for _, rec := range records {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rec.ArrestDate, rec.Name, rec.BookingNumber, rec.Agency, shorten(rec.Charges, 60))
	}
	_ = w.Flush()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func failedColumn(dates []string) string {
	if len(dates) == 0 {
		return "-"
	}
	if len(dates) > 2 {
		return strconv.Itoa(len(dates)) + " dates"
	}
	return strings.Join(dates, ",")
}

func uploadedColumn(r database.RunSummary) string {
	switch {
	case r.Uploaded:
		return "yes"
	case r.UploadError != "":
		return "error"
	default:
		return "no"
	}
}

// shorten truncates s to n runes.
func shorten(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
