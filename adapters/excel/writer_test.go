package excel

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"tomoseq/domain/core"
	"tomoseq/domain/peaks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleTable() (*peaks.Table, []peaks.SkippedGene) {
	table := peaks.NewTable([]peaks.Row{
		{
			Candidate:      peaks.Candidate{Gene: "G1", Start: 3, End: 6, Center: 4, Statistic: 7.25},
			PValue:         0.002,
			AdjustedPValue: 0.01,
		},
		{
			Candidate:      peaks.Candidate{Gene: "G7", Start: 1, End: 2, Center: 1, Statistic: 1.5},
			PValue:         0.04,
			AdjustedPValue: 0.1,
		},
	})
	skipped := []peaks.SkippedGene{{Gene: "flat", Stage: core.StageScale, Reason: peaks.ReasonZeroVariance}}
	return table, skipped
}

func TestTableWriter_TSV(t *testing.T) {
	table, skipped := sampleTable()
	var buf bytes.Buffer
	require.NoError(t, NewTableWriter(FileTypeTSV).Write(&buf, table, skipped))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "gene\tstart\tend\tcenter\tstatistic\tp_value\tadjusted_p_value", lines[0])
	assert.Equal(t, "G1\t3\t6\t4\t7.25\t0.002\t0.01", lines[1])
}

func TestTableWriter_JSON(t *testing.T) {
	table, skipped := sampleTable()
	var buf bytes.Buffer
	require.NoError(t, NewTableWriter(FileTypeJSON).Write(&buf, table, skipped))

	var decoded struct {
		Peaks   []peaks.Row         `json:"peaks"`
		Skipped []peaks.SkippedGene `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded.Peaks, 2)
	assert.Equal(t, "G7", decoded.Peaks[1].Gene)
	assert.Equal(t, peaks.ReasonZeroVariance, decoded.Skipped[0].Reason)
}

func TestTableWriter_StreamRejectsExcel(t *testing.T) {
	table, _ := sampleTable()
	assert.Error(t, NewTableWriter(FileTypeXLSX).Write(&bytes.Buffer{}, table, nil))
}

func TestWriteFile_Excel(t *testing.T) {
	table, skipped := sampleTable()
	path := filepath.Join(t.TempDir(), "peaks.xlsx")
	require.NoError(t, WriteFile(path, table, skipped))

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{SheetPeaks, SheetSkipped}, f.GetSheetList())
	rows, err := f.GetRows(SheetPeaks)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, TableColumns, rows[0])
	assert.Equal(t, "G1", rows[1][0])
	assert.Equal(t, "3", rows[1][1])

	skippedRows, err := f.GetRows(SheetSkipped)
	require.NoError(t, err)
	require.Len(t, skippedRows, 2)
	assert.Equal(t, []string{"flat", "scale", "zero_variance"}, skippedRows[1])
}

func TestWriteFile_CSV(t *testing.T) {
	table, _ := sampleTable()
	path := filepath.Join(t.TempDir(), "peaks.csv")
	require.NoError(t, WriteFile(path, table, nil))

	reader := NewMatrixReader(path, DefaultReaderConfig())
	raw, err := reader.readDelimited(',')
	require.NoError(t, err)
	require.Len(t, raw.Rows, 3)
	assert.Equal(t, TableRecord(table.Rows[1]), raw.Rows[2])
}
