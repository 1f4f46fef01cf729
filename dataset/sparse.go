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
	"math"

	"github.com/bits-and-blooms/bitset"
	"github.com/juju/errors"
)

// Triple is an observed cell of a sparse matrix. Indices are 0-based.
type Triple struct {
	Row   int
	Col   int
	Value float64
}

// SparseMatrix stores observed cells as a list of triples in insertion order.
type SparseMatrix struct {
	rows    int
	cols    int
	triples []Triple
}

func NewSparseMatrix(rows, cols int) *SparseMatrix {
	return &SparseMatrix{rows: rows, cols: cols}
}

// NewSparseMatrixFromTriples creates a matrix and appends all triples.
func NewSparseMatrixFromTriples(rows, cols int, triples []Triple) (*SparseMatrix, error) {
	m := NewSparseMatrix(rows, cols)
	for _, t := range triples {
		if err := m.Append(t.Row, t.Col, t.Value); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return m, nil
}

// Append adds an observed cell. Duplicated coordinates are kept.
func (m *SparseMatrix) Append(row, col int, value float64) error {
	if row < 0 || row >= m.rows || col < 0 || col >= m.cols {
		return errors.NotValidf("cell (%d, %d) in %dx%d matrix", row, col, m.rows, m.cols)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return errors.NotValidf("value %v at (%d, %d)", value, row, col)
	}
	m.triples = append(m.triples, Triple{Row: row, Col: col, Value: value})
	return nil
}

func (m *SparseMatrix) Dims() (int, int) {
	return m.rows, m.cols
}

func (m *SparseMatrix) NNZ() int {
	if m == nil {
		return 0
	}
	return len(m.triples)
}

// Triples returns the observed cells in insertion order. The slice must not be modified.
func (m *SparseMatrix) Triples() []Triple {
	return m.triples
}

func (m *SparseMatrix) Mean() float64 {
	if len(m.triples) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, t := range m.triples {
		sum += t.Value
	}
	return sum / float64(len(m.triples))
}

// Variance returns the population variance of observed values.
func (m *SparseMatrix) Variance() float64 {
	if len(m.triples) == 0 {
		return math.NaN()
	}
	mean := m.Mean()
	var sum float64
	for _, t := range m.triples {
		sum += (t.Value - mean) * (t.Value - mean)
	}
	return sum / float64(len(m.triples))
}

func (m *SparseMatrix) MinMax() (float64, float64) {
	if len(m.triples) == 0 {
		return math.NaN(), math.NaN()
	}
	lo, hi := m.triples[0].Value, m.triples[0].Value
	for _, t := range m.triples[1:] {
		lo = min(lo, t.Value)
		hi = max(hi, t.Value)
	}
	return lo, hi
}

func (m *SparseMatrix) Transpose() *SparseMatrix {
	t := &SparseMatrix{rows: m.cols, cols: m.rows, triples: make([]Triple, len(m.triples))}
	for i, c := range m.triples {
		t.triples[i] = Triple{Row: c.Col, Col: c.Row, Value: c.Value}
	}
	return t
}

// Map returns a copy with fn applied to every value.
func (m *SparseMatrix) Map(fn func(float64) float64) *SparseMatrix {
	c := &SparseMatrix{rows: m.rows, cols: m.cols, triples: make([]Triple, len(m.triples))}
	for i, t := range m.triples {
		c.triples[i] = Triple{Row: t.Row, Col: t.Col, Value: fn(t.Value)}
	}
	return c
}

func (m *SparseMatrix) ByRow() *SparseMode {
	return newSparseMode(m, 0)
}

func (m *SparseMatrix) ByCol() *SparseMode {
	return newSparseMode(m, 1)
}

// Mode returns ByRow for mode 0 and ByCol for mode 1.
func (m *SparseMatrix) Mode(mode int) *SparseMode {
	if mode == 0 {
		return m.ByRow()
	}
	return m.ByCol()
}

// SparseMode is a compressed view of a sparse matrix along one mode. For entity n,
// Index[Ptr[n]:Ptr[n+1]] holds the indices along the other mode and Values the observed values.
type SparseMode struct {
	N        int
	Other    int
	Ptr      []int
	Index    []int
	Values   []float64
	observed *bitset.BitSet
}

func newSparseMode(m *SparseMatrix, mode int) *SparseMode {
	n, other := m.rows, m.cols
	if mode == 1 {
		n, other = other, n
	}
	s := &SparseMode{
		N:        n,
		Other:    other,
		Ptr:      make([]int, n+1),
		Index:    make([]int, len(m.triples)),
		Values:   make([]float64, len(m.triples)),
		observed: bitset.New(uint(n)),
	}
	key := func(t Triple) (int, int) {
		if mode == 0 {
			return t.Row, t.Col
		}
		return t.Col, t.Row
	}
	// count
	for _, t := range m.triples {
		k, _ := key(t)
		s.Ptr[k]++
		s.observed.Set(uint(k))
	}
	// prefix sum: Ptr[k] becomes the end of segment k
	for k := 1; k <= n; k++ {
		s.Ptr[k] += s.Ptr[k-1]
	}
	// scatter backwards so entries keep insertion order
	for i := len(m.triples) - 1; i >= 0; i-- {
		k, o := key(m.triples[i])
		s.Ptr[k]--
		s.Index[s.Ptr[k]] = o
		s.Values[s.Ptr[k]] = m.triples[i].Value
	}
	// Ptr[k] is now the begin of segment k; Ptr[n] still holds the total
	return s
}

// Row returns the indices and values observed for entity n.
func (s *SparseMode) Row(n int) ([]int, []float64) {
	return s.Index[s.Ptr[n]:s.Ptr[n+1]], s.Values[s.Ptr[n]:s.Ptr[n+1]]
}

func (s *SparseMode) Count(n int) int {
	return s.Ptr[n+1] - s.Ptr[n]
}

// Observed reports whether entity n has at least one observation.
func (s *SparseMode) Observed(n int) bool {
	return s.observed.Test(uint(n))
}

// NumObserved returns the number of entities with at least one observation.
func (s *SparseMode) NumObserved() int {
	return int(s.observed.Count())
}
