package report

import (
	"io"
	"strings"

	"github.com/nao1215/arrestscan/internal/config"
	"github.com/nao1215/arrestscan/internal/model"
	"github.com/xuri/excelize/v2"
)

// maxSheetName is Excel's limit on worksheet name length.
const maxSheetName = 31

// XLSXWriter writes records to a single-sheet Excel workbook with a bold,
// frozen header row.
type XLSXWriter struct {
	baseWriter
	sheet string
}

// XLSXWriterOption configures an XLSXWriter.
type XLSXWriterOption func(*XLSXWriter)

// WithSheetName names the worksheet. Characters Excel rejects are replaced
// and the name is cut to 31 characters.
func WithSheetName(name string) XLSXWriterOption {
	return func(w *XLSXWriter) {
		if name != "" {
			w.sheet = name
		}
	}
}

// NewXLSXWriter creates an XLSXWriter that outputs to the given writer.
func NewXLSXWriter(output io.Writer, opts ...XLSXWriterOption) *XLSXWriter {
	w := &XLSXWriter{baseWriter: newBaseWriter(output), sheet: config.DefaultWorksheet}
	for _, opt := range opts {
		opt(w)
	}
	w.sheet = sheetName(w.sheet)
	return w
}

// Write outputs the de-duplicated records of run.
func (w *XLSXWriter) Write(run *model.RunReport) (int, error) {
	records := run.Records()
	cols := model.Columns(records)

	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // in-memory workbook

	if err := f.SetSheetName(f.GetSheetName(0), w.sheet); err != nil {
		return 0, err
	}
	if err := f.SetSheetRow(w.sheet, "A1", &cols); err != nil {
		return 0, err
	}
	for i, r := range records {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return 0, err
		}
		values := r.Values(cols)
		if err := f.SetSheetRow(w.sheet, cell, &values); err != nil {
			return 0, err
		}
	}

	style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return 0, err
	}
	last, err := excelize.CoordinatesToCellName(len(cols), 1)
	if err != nil {
		return 0, err
	}
	if err := f.SetCellStyle(w.sheet, "A1", last, style); err != nil {
		return 0, err
	}
	if err := f.SetPanes(w.sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return 0, err
	}

	cw := &countingWriter{w: w.output}
	if err := f.Write(cw); err != nil {
		return cw.n, err
	}
	return cw.n, nil
}

func sheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '_'
		}
		return r
	}, name)
	name = strings.Trim(name, "'")
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	if name == "" {
		return "Sheet1"
	}
	return name
}
