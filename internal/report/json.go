package report

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/nao1215/arrestscan/internal/model"
)

// JSONWriter writes the run's records as a JSON array. HTML characters
// are not escaped so names and charges stay readable.
type JSONWriter struct {
	baseWriter

	indent       bool
	indentPrefix string
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the de-duplicated records of run.
func (w *JSONWriter) Write(run *model.RunReport) (int, error) {
	records := run.Records()
	if records == nil {
		records = []model.ArrestRecord{}
	}
	return w.writeJSON(records)
}

// WriteRun outputs the whole run, including per-date results.
func (w *JSONWriter) WriteRun(run *model.RunReport) (int, error) {
	return w.writeJSON(run)
}

func (w *JSONWriter) writeJSON(v any) (int, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if w.indent {
		enc.SetIndent(w.indentPrefix, w.indentString)
	}
	if err := enc.Encode(v); err != nil {
		return 0, err
	}
	return w.output.Write(buf.Bytes())
}
