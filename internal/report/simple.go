package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nao1215/arrestscan/internal/model"
)

// SimpleWriter outputs a plain-text run summary for the terminal.
type SimpleWriter struct {
	baseWriter

	// verbose lists the agency breakdown and each failure message.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the run summary.
func (w *SimpleWriter) Write(run *model.RunReport) (int, error) {
	var sb strings.Builder

	rule(&sb, "=")
	sb.WriteString("ARREST REPORT SCAN\n")
	rule(&sb, "=")
	sb.WriteString("\n")

	fmt.Fprintf(&sb, "Dates:     %s\n", DateSpan(run.Dates))
	fmt.Fprintf(&sb, "Records:   %d\n", run.TotalRecords())
	fmt.Fprintf(&sb, "Duration:  %s\n", run.Duration().Round(time.Second))
	fmt.Fprintf(&sb, "Upload:    %s\n", uploadStatus(run))
	if run.OutputFile != "" {
		fmt.Fprintf(&sb, "Output:    %s\n", run.OutputFile)
	}
	if run.ID != 0 {
		fmt.Fprintf(&sb, "Run ID:    %d\n", run.ID)
	}
	sb.WriteString("\n")

	rule(&sb, "-")
	sb.WriteString("DATES\n")
	rule(&sb, "-")
	for _, r := range run.Results {
		if r.Failed() {
			fmt.Fprintf(&sb, "  [!] %s  failed after %d attempt(s)", r.Date, r.Attempts)
			if w.verbose {
				fmt.Fprintf(&sb, ": %s", r.Error)
			}
			sb.WriteString("\n")
			continue
		}
		fmt.Fprintf(&sb, "  [+] %s  %d record(s), %d page(s), %s\n", r.Date, len(r.Records), r.Pages, r.Method)
	}
	sb.WriteString("\n")

	if w.verbose {
		if counts := run.CountByAgency(); len(counts) > 0 {
			rule(&sb, "-")
			sb.WriteString("AGENCIES\n")
			rule(&sb, "-")
			for _, c := range counts {
				fmt.Fprintf(&sb, "  %-40s %d\n", c.Agency, c.Count)
			}
			sb.WriteString("\n")
		}
	}

	return w.output.Write([]byte(sb.String()))
}

func rule(sb *strings.Builder, ch string) {
	sb.WriteString(strings.Repeat(ch, 70))
	sb.WriteString("\n")
}
