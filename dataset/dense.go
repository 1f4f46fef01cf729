// Copyright 2026 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package dataset

import (
	"github.com/juju/errors"
	"gonum.org/v1/gonum/mat"
)

// maxDenseCells bounds dense allocations made from untrusted headers.
const maxDenseCells = 1 << 28

// checkDenseSize rejects negative sizes and sizes whose cell count exceeds maxDenseCells.
func checkDenseSize(rows, cols int) error {
	if rows < 0 || cols < 0 || rows > maxDenseCells || cols > maxDenseCells ||
		(cols > 0 && rows > maxDenseCells/cols) {
		return errors.NotValidf("dense matrix of size %dx%d", rows, cols)
	}
	return nil
}

// DenseMatrix is a row-major matrix of float64.
type DenseMatrix struct {
	rows int
	cols int
	data []float64
}

func NewDenseMatrix(rows, cols int) *DenseMatrix {
	return &DenseMatrix{rows: rows, cols: cols, data: make([]float64, rows*cols)}
}

// NewDenseMatrixFromRows copies rows of equal length into a matrix.
func NewDenseMatrixFromRows(rows [][]float64) (*DenseMatrix, error) {
	if len(rows) == 0 {
		return NewDenseMatrix(0, 0), nil
	}
	m := NewDenseMatrix(len(rows), len(rows[0]))
	for i, row := range rows {
		if len(row) != m.cols {
			return nil, errors.NotValidf("row %d has %d columns, expect %d", i, len(row), m.cols)
		}
		copy(m.Row(i), row)
	}
	return m, nil
}

func (m *DenseMatrix) Dims() (int, int) {
	return m.rows, m.cols
}

func (m *DenseMatrix) At(i, j int) float64 {
	return m.data[i*m.cols+j]
}

func (m *DenseMatrix) Set(i, j int, v float64) {
	m.data[i*m.cols+j] = v
}

// Row returns the i-th row. The slice aliases the matrix storage.
func (m *DenseMatrix) Row(i int) []float64 {
	return m.data[i*m.cols : (i+1)*m.cols]
}

// Mat returns a gonum view sharing the storage.
func (m *DenseMatrix) Mat() *mat.Dense {
	if m.rows == 0 || m.cols == 0 {
		return &mat.Dense{}
	}
	return mat.NewDense(m.rows, m.cols, m.data)
}

// ToSparse keeps every cell, including zeros, as an observation.
func (m *DenseMatrix) ToSparse() *SparseMatrix {
	s := NewSparseMatrix(m.rows, m.cols)
	s.triples = make([]Triple, 0, len(m.data))
	for j := 0; j < m.cols; j++ {
		for i := 0; i < m.rows; i++ {
			s.triples = append(s.triples, Triple{Row: i, Col: j, Value: m.At(i, j)})
		}
	}
	return s
}

// DenseFromSparse fills unobserved cells with zero. Duplicated cells are summed.
func DenseFromSparse(s *SparseMatrix) *DenseMatrix {
	m := NewDenseMatrix(s.rows, s.cols)
	for _, t := range s.triples {
		m.data[t.Row*m.cols+t.Col] += t.Value
	}
	return m
}
