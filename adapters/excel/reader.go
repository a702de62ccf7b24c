package excel

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"tomoseq/domain/core"
	"tomoseq/domain/expression"
	"tomoseq/internal"

	"github.com/xuri/excelize/v2"
)

// File types understood by the reader and writer.
const (
	FileTypeXLSX = "xlsx"
	FileTypeCSV  = "csv"
	FileTypeTSV  = "tsv"
	FileTypeJSON = "json"
)

// FileTypeOf maps a path's extension to a file type.
func FileTypeOf(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FileTypeCSV
	case ".tsv", ".txt", ".tab":
		return FileTypeTSV
	case ".json":
		return FileTypeJSON
	default:
		return FileTypeXLSX
	}
}

// MatrixReader reads a gene x section count matrix from xlsx, csv or tsv.
// The header row holds the section labels in order (its first cell is the
// gene column's name and is ignored); every other row is a gene name followed
// by its counts.
type MatrixReader struct {
	filePath string
	fileType string
	config   ReaderConfig
	logger   *internal.Logger
}

// NewMatrixReader creates a reader; the format follows the file extension.
func NewMatrixReader(filePath string, config ReaderConfig) *MatrixReader {
	return &MatrixReader{
		filePath: filePath,
		fileType: FileTypeOf(filePath),
		config:   config,
		logger:   internal.DefaultLogger,
	}
}

// ReadMatrix reads and parses the file.
func (r *MatrixReader) ReadMatrix() (*expression.Matrix, error) {
	r.logger.Debug("[DataReader] Starting to read %s file: %s", r.fileType, r.filePath)

	if _, err := os.Stat(r.filePath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
	}

	var raw *RawTable
	var err error
	switch r.fileType {
	case FileTypeCSV:
		raw, err = r.readDelimited(',')
	case FileTypeTSV:
		raw, err = r.readDelimited('\t')
	case FileTypeXLSX:
		raw, err = r.readExcel()
	default:
		return nil, fmt.Errorf("unsupported matrix file type: %s", r.fileType)
	}
	if err != nil {
		return nil, err
	}

	if r.config.Transposed {
		raw = raw.Transpose()
	}
	return ParseMatrix(raw)
}

func (r *MatrixReader) readExcel() (*RawTable, error) {
	startTime := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.config.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("%w: workbook %s has no sheets", core.ErrEmptyMatrix, r.filePath)
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	r.logger.Debug("[DataReader] sheet %q read in %.2fms (%d rows)",
		sheet, float64(time.Since(startTime).Nanoseconds())/1e6, len(rows))
	return &RawTable{Rows: trimRows(rows)}, nil
}

func (r *MatrixReader) readDelimited(comma rune) (*RawTable, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s file: %w", strings.ToUpper(r.fileType), err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	startTime := time.Now()
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s file: %w", strings.ToUpper(r.fileType), err)
	}
	r.logger.Debug("[DataReader] %s file read in %.2fms (%d rows)",
		strings.ToUpper(r.fileType), float64(time.Since(startTime).Nanoseconds())/1e6, len(rows))
	return &RawTable{Rows: trimRows(rows)}, nil
}

func trimRows(rows [][]string) [][]string {
	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		trimmed := make([]string, len(row))
		blank := true
		for j, cell := range row {
			trimmed[j] = strings.TrimSpace(cell)
			if trimmed[j] != "" {
				blank = false
			}
		}
		if !blank {
			out = append(out, trimmed)
		}
	}
	return out
}

// ParseMatrix converts raw cells into a count matrix. A missing or empty
// count cell reads as 0, since spreadsheet exports drop trailing empty
// cells; anything else that is not a number is rejected.
func ParseMatrix(raw *RawTable) (*expression.Matrix, error) {
	if len(raw.Rows) < 2 {
		return nil, fmt.Errorf("%w: need a header row and at least one gene row", core.ErrEmptyMatrix)
	}

	header := raw.Header()
	sections := append([]string(nil), header[1:]...)
	for len(sections) > 0 && sections[len(sections)-1] == "" {
		sections = sections[:len(sections)-1]
	}
	if len(sections) == 0 {
		return nil, fmt.Errorf("%w: header has no section labels", core.ErrEmptyMatrix)
	}

	genes := make([]string, 0, len(raw.Rows)-1)
	values := make([][]float64, 0, len(raw.Rows)-1)
	for i, row := range raw.Rows[1:] {
		line := i + 2
		gene := row[0]
		if len(row)-1 > len(sections) {
			for _, extra := range row[len(sections)+1:] {
				if extra != "" {
					return nil, fmt.Errorf("%w: line %d (%s) has %d values for %d sections",
						core.ErrShapeMismatch, line, gene, len(row)-1, len(sections))
				}
			}
		}

		counts := make([]float64, len(sections))
		for j := range sections {
			if j+1 >= len(row) || row[j+1] == "" {
				continue
			}
			v, err := strconv.ParseFloat(row[j+1], 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, core.NewStageError(core.StageValidate, gene+"@"+sections[j],
					fmt.Errorf("%w: %q on line %d is not a finite count", core.ErrNonFinite, row[j+1], line))
			}
			counts[j] = v
		}
		genes = append(genes, gene)
		values = append(values, counts)
	}

	return expression.New(genes, sections, values)
}
