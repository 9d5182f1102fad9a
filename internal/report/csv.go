package report

import (
	"encoding/csv"
	"io"

	"github.com/nao1215/arrestscan/internal/model"
)

// CSVWriter writes a header row followed by one row per record.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the de-duplicated records of run.
func (w *CSVWriter) Write(run *model.RunReport) (int, error) {
	records := run.Records()
	cols := model.Columns(records)

	cw := &countingWriter{w: w.output}
	enc := csv.NewWriter(cw)
	if err := enc.Write(cols); err != nil {
		return cw.n, err
	}
	for _, r := range records {
		if err := enc.Write(r.Values(cols)); err != nil {
			return cw.n, err
		}
	}
	enc.Flush()
	return cw.n, enc.Error()
}
