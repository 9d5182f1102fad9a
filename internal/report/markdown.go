package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/arrestscan/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// maxChartSlices keeps the agency pie chart readable; smaller agencies
// are folded into "Other".
const maxChartSlices = 8

// MarkdownWriter writes a run summary in Markdown, suitable for a CI job
// summary or an issue comment.
type MarkdownWriter struct {
	baseWriter

	// records adds a table with every record.
	records bool
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithRecordTable adds a table listing every record.
func WithRecordTable(on bool) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.records = on
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run summary.
func (w *MarkdownWriter) Write(run *model.RunReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, run)
	w.writeDates(md, run)
	w.writeAgencies(md, run)
	if w.records {
		w.writeRecords(md, run)
	}
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, run *model.RunReport) {
	md.H1("Arrest Report Scan")
	md.PlainText("")

	rows := [][]string{
		{"Dates", DateSpan(run.Dates)},
		{"Started", run.StartedAt.Format("2006-01-02 15:04:05 MST")},
		{"Duration", run.Duration().Round(100 * time.Millisecond).String()},
		{"Records", strconv.Itoa(run.TotalRecords())},
		{"Upload", uploadStatus(run)},
	}
	if run.ID != 0 {
		rows = append([][]string{{"Run", strconv.FormatInt(run.ID, 10)}}, rows...)
	}
	if run.OutputFile != "" {
		rows = append(rows, []string{"Output", "`" + run.OutputFile + "`"})
	}
	md.Table(markdown.TableSet{Header: []string{"Property", "Value"}, Rows: rows})
	md.PlainText("")

	failed := run.FailedDates()
	switch {
	case run.AllFailed():
		md.Cautionf("Every date failed to scrape (%d of %d).", len(failed), len(run.Results))
	case len(failed) > 0:
		md.Warningf("%d date(s) failed: %s", len(failed), strings.Join(failed, ", "))
	case run.UploadError != "":
		md.Warningf("Upload failed: %s", run.UploadError)
	case run.TotalRecords() == 0:
		md.Note("No arrests were listed for the requested dates.")
	default:
		md.Tip("All dates scraped successfully.")
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeDates(md *markdown.Markdown, run *model.RunReport) {
	md.H2("Dates")
	md.PlainText("")

	rows := make([][]string, 0, len(run.Results))
	for _, r := range run.Results {
		status := "✅ ok"
		if r.Failed() {
			status = "❌ " + truncateString(r.Error, 60)
		}
		rows = append(rows, []string{
			r.Date,
			strconv.Itoa(len(r.Records)),
			strconv.Itoa(r.Pages),
			strconv.Itoa(r.Attempts),
			string(r.Method),
			status,
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"Date", "Records", "Pages", "Attempts", "Method", "Status"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeAgencies(md *markdown.Markdown, run *model.RunReport) {
	counts := run.CountByAgency()
	if len(counts) == 0 {
		return
	}

	md.H2("Arresting Agencies")
	md.PlainText("")

	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Records by Agency"),
		piechart.WithShowData(true),
	)
	other := 0
	for i, c := range counts {
		if i >= maxChartSlices-1 && len(counts) > maxChartSlices {
			other += c.Count
			continue
		}
		chart.LabelAndIntValue(c.Agency, uint64(c.Count)) //nolint:gosec // counts are positive
	}
	if other > 0 {
		chart.LabelAndIntValue("Other", uint64(other)) //nolint:gosec // counts are positive
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeRecords(md *markdown.Markdown, run *model.RunReport) {
	records := run.Records()
	if len(records) == 0 {
		return
	}

	md.H2("Records")
	md.PlainText("")

	cols := []string{model.ColArrestDate, model.ColName, model.ColAge, model.ColBookingNumber, model.ColAgency, model.ColBond, model.ColCharges}
	rows := make([][]string, len(records))
	for i, r := range records {
		values := r.Values(cols)
		if values[len(values)-1] == "" && r.RawText != "" {
			values[len(values)-1] = r.RawText
		}
		for j := range values {
			values[j] = truncateString(strings.ReplaceAll(values[j], "|", "/"), 60)
		}
		rows[i] = values
	}
	md.Table(markdown.TableSet{Header: cols, Rows: rows})
	md.PlainText("")
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [arrestscan](https://github.com/nao1215/arrestscan)*")
}

// DateSpan renders a date list as "first" or "first to last (n days)".
func DateSpan(dates []string) string {
	switch len(dates) {
	case 0:
		return "-"
	case 1:
		return dates[0]
	default:
		return fmt.Sprintf("%s to %s (%d days)", dates[0], dates[len(dates)-1], len(dates))
	}
}

func uploadStatus(run *model.RunReport) string {
	switch {
	case run.Uploaded:
		return "uploaded"
	case run.UploadError != "":
		return "failed: " + run.UploadError
	default:
		return "skipped"
	}
}

// truncateString truncates a string to maxLen runes with an ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
