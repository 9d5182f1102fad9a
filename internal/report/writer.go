package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/nao1215/arrestscan/internal/config"
	"github.com/nao1215/arrestscan/internal/model"
)

// ErrUnknownFormat is returned for an output format without a writer.
var ErrUnknownFormat = errors.New("unknown output format")

// Writer renders a run to its destination.
type Writer interface {
	// Write outputs the run and returns the number of bytes written.
	Write(run *model.RunReport) (int, error)
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// countingWriter counts bytes for writers whose encoder hides the total.
type countingWriter struct {
	w io.Writer
	n int
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += n
	return n, err
}

// NewWriter returns the writer for format.
func NewWriter(format string, output io.Writer, worksheet string) (Writer, error) {
	switch format {
	case config.FormatJSON, "":
		return NewJSONWriter(output, WithPrettyPrint()), nil
	case config.FormatCSV:
		return NewCSVWriter(output), nil
	case config.FormatXLSX:
		return NewXLSXWriter(output, WithSheetName(worksheet)), nil
	case config.FormatMarkdown:
		return NewMarkdownWriter(output, WithRecordTable(true)), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// WriteFile renders run into path, creating parent directories. The file
// is readable by its owner only since it holds personal data.
func WriteFile(path, format, worksheet string, run *model.RunReport) (err error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600) //nolint:gosec // path is chosen by the user
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("failed to close output file: %w", cerr)
		}
	}()

	w, err := NewWriter(format, f, worksheet)
	if err != nil {
		return err
	}
	if _, err := w.Write(run); err != nil {
		return fmt.Errorf("failed to write %s output: %w", format, err)
	}
	return nil
}
