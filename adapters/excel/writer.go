package excel

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"tomoseq/domain/peaks"

	"github.com/xuri/excelize/v2"
)

// TableColumns is the column order of every tabular output.
var TableColumns = []string{"gene", "start", "end", "center", "statistic", "p_value", "adjusted_p_value"}

// SheetPeaks and SheetSkipped name the sheets of an xlsx result.
const (
	SheetPeaks   = "peaks"
	SheetSkipped = "skipped"
)

// TableWriter writes a peak table as tsv, csv, xlsx or json.
type TableWriter struct {
	fileType string
}

// NewTableWriter creates a writer for fileType (see FileTypeOf).
func NewTableWriter(fileType string) *TableWriter {
	return &TableWriter{fileType: fileType}
}

// WriteFile writes table (and the skipped list where the format has room for
// it) to path, choosing the format from the extension.
func WriteFile(path string, table *peaks.Table, skipped []peaks.SkippedGene) error {
	w := NewTableWriter(FileTypeOf(path))
	if w.fileType == FileTypeXLSX {
		return w.writeExcel(path, table, skipped)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := w.Write(f, table, skipped); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Write streams a text format to out. xlsx is not a stream format; use
// WriteFile for it.
func (w *TableWriter) Write(out io.Writer, table *peaks.Table, skipped []peaks.SkippedGene) error {
	switch w.fileType {
	case FileTypeTSV:
		return writeDelimited(out, '\t', table)
	case FileTypeCSV:
		return writeDelimited(out, ',', table)
	case FileTypeJSON:
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			Peaks   []peaks.Row         `json:"peaks"`
			Skipped []peaks.SkippedGene `json:"skipped"`
		}{Peaks: table.Rows, Skipped: skipped})
	default:
		return fmt.Errorf("unsupported table format for streaming: %s", w.fileType)
	}
}

// TableRecord renders one row in TableColumns order.
func TableRecord(r peaks.Row) []string {
	return []string{
		r.Gene,
		strconv.Itoa(r.Start),
		strconv.Itoa(r.End),
		strconv.Itoa(r.Center),
		formatFloat(r.Statistic),
		formatFloat(r.PValue),
		formatFloat(r.AdjustedPValue),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func writeDelimited(out io.Writer, comma rune, table *peaks.Table) error {
	cw := csv.NewWriter(out)
	cw.Comma = comma
	if err := cw.Write(TableColumns); err != nil {
		return err
	}
	for _, r := range table.Rows {
		if err := cw.Write(TableRecord(r)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (w *TableWriter) writeExcel(path string, table *peaks.Table, skipped []peaks.SkippedGene) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetPeaks); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := setRow(f, SheetPeaks, 1, stringsToCells(TableColumns)); err != nil {
		return err
	}
	for i, r := range table.Rows {
		cells := []interface{}{r.Gene, r.Start, r.End, r.Center, r.Statistic, r.PValue, r.AdjustedPValue}
		if err := setRow(f, SheetPeaks, i+2, cells); err != nil {
			return err
		}
	}

	if len(skipped) > 0 {
		if _, err := f.NewSheet(SheetSkipped); err != nil {
			return fmt.Errorf("failed to add sheet: %w", err)
		}
		if err := setRow(f, SheetSkipped, 1, []interface{}{"gene", "stage", "reason", "message"}); err != nil {
			return err
		}
		for i, s := range skipped {
			if err := setRow(f, SheetSkipped, i+2, []interface{}{s.Gene, s.Stage, string(s.Reason), s.Message}); err != nil {
				return err
			}
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save Excel file: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, cells []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func stringsToCells(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
