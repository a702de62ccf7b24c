package excel

// RawTable is the grid of trimmed cells read from a matrix file, before any
// numeric parsing. Short rows are allowed.
type RawTable struct {
	Rows [][]string
}

// Header returns the first row.
func (t *RawTable) Header() []string {
	if len(t.Rows) == 0 {
		return nil
	}
	return t.Rows[0]
}

// Transpose swaps rows and columns, padding short rows with empty cells.
func (t *RawTable) Transpose() *RawTable {
	width := 0
	for _, row := range t.Rows {
		width = max(width, len(row))
	}
	out := make([][]string, width)
	for j := range out {
		out[j] = make([]string, len(t.Rows))
		for i, row := range t.Rows {
			if j < len(row) {
				out[j][i] = row[j]
			}
		}
	}
	return &RawTable{Rows: out}
}
