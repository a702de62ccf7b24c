// Package expression holds the gene × section matrix that every stage of the
// peak pipeline reads. Rows are genes (order irrelevant, names unique) and
// columns are sections (order is the spatial axis and is never changed).
package expression

import (
	"fmt"
	"math"
	"strings"

	"tomoseq/domain/core"

	"gonum.org/v1/gonum/mat"
)

// Matrix is an immutable gene × section matrix.
type Matrix struct {
	genes    []string
	sections []string
	geneIdx  map[string]int
	data     *mat.Dense
}

// New builds a matrix from row-major values, one slice per gene.
func New(genes, sections []string, values [][]float64) (*Matrix, error) {
	if len(genes) == 0 || len(sections) == 0 {
		return nil, core.NewStageError(core.StageValidate, "", core.ErrEmptyMatrix)
	}
	if len(values) != len(genes) {
		return nil, core.NewStageError(core.StageValidate, "",
			fmt.Errorf("%w: %d gene labels for %d rows", core.ErrShapeMismatch, len(genes), len(values)))
	}

	flat := make([]float64, 0, len(genes)*len(sections))
	for i, row := range values {
		if len(row) != len(sections) {
			return nil, core.NewStageError(core.StageValidate, genes[i],
				fmt.Errorf("%w: %d values for %d sections", core.ErrShapeMismatch, len(row), len(sections)))
		}
		flat = append(flat, row...)
	}
	return newFromFlat(genes, sections, flat)
}

// NewDense wraps an existing gonum matrix; the data is copied.
func NewDense(genes, sections []string, data mat.Matrix) (*Matrix, error) {
	if data == nil {
		return nil, core.NewStageError(core.StageValidate, "", core.ErrEmptyMatrix)
	}
	r, c := data.Dims()
	if r != len(genes) || c != len(sections) {
		return nil, core.NewStageError(core.StageValidate, "",
			fmt.Errorf("%w: labels %dx%d, data %dx%d", core.ErrShapeMismatch, len(genes), len(sections), r, c))
	}
	return newFromFlat(genes, sections, mat.DenseCopyOf(data).RawMatrix().Data)
}

func newFromFlat(genes, sections []string, flat []float64) (*Matrix, error) {
	if len(genes) == 0 || len(sections) == 0 {
		return nil, core.NewStageError(core.StageValidate, "", core.ErrEmptyMatrix)
	}
	geneIdx, err := indexLabels("gene", genes)
	if err != nil {
		return nil, err
	}
	if _, err := indexLabels("section", sections); err != nil {
		return nil, err
	}

	data := make([]float64, len(flat))
	copy(data, flat)

	return &Matrix{
		genes:    append([]string(nil), genes...),
		sections: append([]string(nil), sections...),
		geneIdx:  geneIdx,
		data:     mat.NewDense(len(genes), len(sections), data),
	}, nil
}

func indexLabels(kind string, labels []string) (map[string]int, error) {
	idx := make(map[string]int, len(labels))
	for i, l := range labels {
		if strings.TrimSpace(l) == "" {
			return nil, core.NewStageError(core.StageValidate, fmt.Sprintf("%s #%d", kind, i+1),
				fmt.Errorf("%w: empty %s label", core.ErrInvalidInput, kind))
		}
		if _, dup := idx[l]; dup {
			return nil, core.NewStageError(core.StageValidate, l, core.ErrDuplicateLabel)
		}
		idx[l] = i
	}
	return idx, nil
}

// Dims returns (genes, sections).
func (m *Matrix) Dims() (int, int) {
	return m.data.Dims()
}

// Genes returns a copy of the row labels.
func (m *Matrix) Genes() []string {
	return append([]string(nil), m.genes...)
}

// Sections returns a copy of the ordered column labels.
func (m *Matrix) Sections() []string {
	return append([]string(nil), m.sections...)
}

// Gene returns the label of row i.
func (m *Matrix) Gene(i int) string {
	return m.genes[i]
}

// Section returns the label of column j.
func (m *Matrix) Section(j int) string {
	return m.sections[j]
}

// GeneIndex looks up a row by gene name.
func (m *Matrix) GeneIndex(gene string) (int, bool) {
	i, ok := m.geneIdx[gene]
	return i, ok
}

// At returns the value for row i, column j.
func (m *Matrix) At(i, j int) float64 {
	return m.data.At(i, j)
}

// Value returns the value for a gene and a 1-based section index.
func (m *Matrix) Value(gene string, section int) (float64, error) {
	i, ok := m.geneIdx[gene]
	if !ok {
		return 0, fmt.Errorf("%w: gene %q not in matrix", core.ErrInvalidInput, gene)
	}
	if section < 1 || section > len(m.sections) {
		return 0, fmt.Errorf("%w: section index %d out of range 1..%d", core.ErrInvalidInput, section, len(m.sections))
	}
	return m.data.At(i, section-1), nil
}

// Row returns a fresh copy of row i.
func (m *Matrix) Row(i int) []float64 {
	return mat.Row(nil, i, m.data)
}

// Col returns a fresh copy of column j.
func (m *Matrix) Col(j int) []float64 {
	return mat.Col(nil, j, m.data)
}

// Dense returns a copy of the underlying gonum matrix.
func (m *Matrix) Dense() *mat.Dense {
	return mat.DenseCopyOf(m.data)
}

// RawRowMajor returns a copy of the values in row-major order.
func (m *Matrix) RawRowMajor() []float64 {
	raw := m.data.RawMatrix()
	out := make([]float64, 0, raw.Rows*raw.Cols)
	for i := 0; i < raw.Rows; i++ {
		out = append(out, raw.Data[i*raw.Stride:i*raw.Stride+raw.Cols]...)
	}
	return out
}

// Fingerprint hashes labels and values.
func (m *Matrix) Fingerprint() core.Hash {
	return core.ComputeMatrixHash(m.genes, m.sections, m.RawRowMajor())
}

// SelectRows returns a matrix holding only the given rows, in the given order.
func (m *Matrix) SelectRows(rows []int) (*Matrix, error) {
	if len(rows) == 0 {
		return nil, core.NewStageError(core.StageValidate, "", core.ErrEmptyMatrix)
	}
	_, c := m.Dims()
	genes := make([]string, len(rows))
	flat := make([]float64, 0, len(rows)*c)
	for k, i := range rows {
		genes[k] = m.genes[i]
		flat = append(flat, m.Row(i)...)
	}
	return newFromFlat(genes, m.sections, flat)
}

// ValidateFinite fails with ErrNonFinite naming the first NaN/Inf cell.
func (m *Matrix) ValidateFinite(stage string) error {
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			v := m.data.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return core.NewStageError(stage, m.genes[i]+"@"+m.sections[j], core.ErrNonFinite)
			}
		}
	}
	return nil
}

// ValidateCounts checks that every cell is a finite, non-negative number.
func (m *Matrix) ValidateCounts(stage string) error {
	if err := m.ValidateFinite(stage); err != nil {
		return err
	}
	r, c := m.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if m.data.At(i, j) < 0 {
				return core.NewStageError(stage, m.genes[i]+"@"+m.sections[j], core.ErrNegativeCount)
			}
		}
	}
	return nil
}
