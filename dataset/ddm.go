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
	"bufio"
	"io"

	"github.com/gorse-io/smurff/base/encoding"
	"github.com/juju/errors"
)

// WriteDDM writes a dense matrix as int64 rows, int64 cols and column-major float64 values.
func WriteDDM(w io.Writer, m *DenseMatrix) error {
	bw := bufio.NewWriter(w)
	if err := encoding.WriteInt64(bw, int64(m.rows)); err != nil {
		return err
	}
	if err := encoding.WriteInt64(bw, int64(m.cols)); err != nil {
		return err
	}
	column := make([]float64, m.rows)
	for j := 0; j < m.cols; j++ {
		for i := range column {
			column[i] = m.At(i, j)
		}
		if err := encoding.WriteFloat64s(bw, column); err != nil {
			return err
		}
	}
	return errors.Trace(bw.Flush())
}

// ReadDDM reads a dense matrix written by WriteDDM.
func ReadDDM(r io.Reader) (*DenseMatrix, error) {
	br := bufio.NewReader(r)
	rows, err := encoding.ReadInt64(br)
	if err != nil {
		return nil, errors.Annotate(err, "read ddm rows")
	}
	cols, err := encoding.ReadInt64(br)
	if err != nil {
		return nil, errors.Annotate(err, "read ddm cols")
	}
	if rows > maxDenseCells || cols > maxDenseCells {
		return nil, errors.NotValidf("ddm size %dx%d", rows, cols)
	}
	if err = checkDenseSize(int(rows), int(cols)); err != nil {
		return nil, errors.Annotate(err, "read ddm")
	}
	m := NewDenseMatrix(int(rows), int(cols))
	if m.cols == 0 {
		return m, nil
	}
	column := make([]float64, rows)
	for j := 0; j < m.cols; j++ {
		if err = encoding.ReadFloat64s(br, column); err != nil {
			return nil, errors.Annotatef(err, "read ddm column %d", j)
		}
		for i, v := range column {
			m.Set(i, j, v)
		}
	}
	return m, nil
}
