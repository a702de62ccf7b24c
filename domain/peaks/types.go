package peaks

import (
	"encoding/json"
	"sort"
)

// Candidate is one gene's best qualifying run. Start, End and Center are
// 1-based section indices.
type Candidate struct {
	Gene      string  `json:"gene"`
	Start     int     `json:"start"`
	End       int     `json:"end"`
	Center    int     `json:"center"`
	Statistic float64 `json:"statistic"`
}

// Length returns the number of sections in the run.
func (c Candidate) Length() int {
	return c.End - c.Start + 1
}

// NullSummary describes the permutation null distribution of one gene.
type NullSummary struct {
	Permutations int     `json:"permutations"`
	Exceedances  int     `json:"exceedances"`
	Mean         float64 `json:"mean"`
	Percentile95 float64 `json:"percentile_95"`
	Max          float64 `json:"max"`
}

// Row is a Candidate decorated with its significance.
type Row struct {
	Candidate
	PValue         float64      `json:"p_value"`
	AdjustedPValue float64      `json:"adjusted_p_value"`
	Null           *NullSummary `json:"null,omitempty"`

	order int
}

// ReasonCode explains why a gene is missing from the table.
type ReasonCode string

const (
	ReasonZeroVariance   ReasonCode = "zero_variance"
	ReasonNoFiniteValues ReasonCode = "no_finite_values"
	ReasonLowExpression  ReasonCode = "low_expression"
	ReasonTestFailed     ReasonCode = "test_failed"
)

// SkippedGene records a gene excluded from analysis and why.
type SkippedGene struct {
	Gene    string     `json:"gene"`
	Stage   string     `json:"stage"`
	Reason  ReasonCode `json:"reason"`
	Message string     `json:"message,omitempty"`
}

// Table is the ordered peak-gene output.
type Table struct {
	Rows []Row
}

// NewTable keeps rows in the order given; that order is remembered so that
// SortBy(SortInput) can restore it later.
func NewTable(rows []Row) *Table {
	t := &Table{Rows: make([]Row, len(rows))}
	copy(t.Rows, rows)
	for i := range t.Rows {
		t.Rows[i].order = i
	}
	return t
}

// MarshalJSON encodes the table as its row array.
func (t *Table) MarshalJSON() ([]byte, error) {
	if t.Rows == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(t.Rows)
}

// UnmarshalJSON decodes a row array; the decoded order becomes the input order.
func (t *Table) UnmarshalJSON(data []byte) error {
	var rows []Row
	if err := json.Unmarshal(data, &rows); err != nil {
		return err
	}
	*t = *NewTable(rows)
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.Rows)
}

// Genes returns the gene column.
func (t *Table) Genes() []string {
	out := make([]string, len(t.Rows))
	for i, r := range t.Rows {
		out[i] = r.Gene
	}
	return out
}

// Find returns the row for gene.
func (t *Table) Find(gene string) (Row, bool) {
	for _, r := range t.Rows {
		if r.Gene == gene {
			return r, true
		}
	}
	return Row{}, false
}

// FilterAdjusted drops rows whose adjusted p-value exceeds max.
func (t *Table) FilterAdjusted(max float64) {
	if max >= 1 {
		return
	}
	kept := t.Rows[:0]
	for _, r := range t.Rows {
		if r.AdjustedPValue <= max {
			kept = append(kept, r)
		}
	}
	t.Rows = kept
}

// SortBy reorders rows with a stable sort.
func (t *Table) SortBy(key SortKey) {
	var less func(a, b Row) bool
	switch key {
	case SortStart:
		less = func(a, b Row) bool { return a.Start < b.Start }
	case SortCenter:
		less = func(a, b Row) bool { return a.Center < b.Center }
	case SortPValue:
		less = func(a, b Row) bool { return a.PValue < b.PValue }
	default:
		less = func(a, b Row) bool { return a.order < b.order }
	}
	sort.SliceStable(t.Rows, func(i, j int) bool {
		if less(t.Rows[i], t.Rows[j]) {
			return true
		}
		if less(t.Rows[j], t.Rows[i]) {
			return false
		}
		return t.Rows[i].order < t.Rows[j].order
	})
}
