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
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gorse-io/smurff/base/encoding"
	"github.com/gorse-io/smurff/common/util"
	"github.com/juju/errors"
	"github.com/klauspost/compress/gzip"
)

const mmBanner = "%%MatrixMarket"

// maxPrealloc caps the capacity reserved from the size line; larger inputs grow by append.
const maxPrealloc = 1 << 20

type mmHeader struct {
	format   string
	field    string
	symmetry string
}

// mmScanner yields non-blank, non-comment lines and tracks line numbers.
type mmScanner struct {
	scanner *bufio.Scanner
	line    int
}

func newMMScanner(r io.Reader) *mmScanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	return &mmScanner{scanner: scanner}
}

func (s *mmScanner) banner() (string, error) {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return "", errors.Trace(err)
		}
		return "", errors.NotValidf("empty matrix market file")
	}
	s.line++
	return s.scanner.Text(), nil
}

func (s *mmScanner) next() ([]string, bool, error) {
	for s.scanner.Scan() {
		s.line++
		text := strings.TrimSpace(s.scanner.Text())
		if text == "" || strings.HasPrefix(text, "%") {
			continue
		}
		return strings.Fields(text), true, nil
	}
	return nil, false, errors.Trace(s.scanner.Err())
}

func (s *mmScanner) errorf(err error) error {
	return errors.Annotatef(err, "line %d", s.line)
}

func parseBanner(line string) (mmHeader, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) != 5 || fields[0] != strings.ToLower(mmBanner) {
		return mmHeader{}, errors.NotValidf("matrix market banner %q", line)
	}
	if fields[1] != "matrix" {
		return mmHeader{}, errors.NotSupportedf("object %q", fields[1])
	}
	h := mmHeader{format: fields[2], field: fields[3], symmetry: fields[4]}
	switch h.format {
	case "coordinate", "array":
	default:
		return mmHeader{}, errors.NotSupportedf("format %q", h.format)
	}
	switch h.field {
	case "real", "integer", "double":
	case "pattern":
		if h.format == "array" {
			return mmHeader{}, errors.NotValidf("pattern field in array format")
		}
	default:
		return mmHeader{}, errors.NotSupportedf("field %q", h.field)
	}
	switch h.symmetry {
	case "general":
	case "symmetric", "skew-symmetric":
		if h.format == "array" {
			return mmHeader{}, errors.NotSupportedf("%s array", h.symmetry)
		}
	default:
		return mmHeader{}, errors.NotSupportedf("symmetry %q", h.symmetry)
	}
	return h, nil
}

func parseSize(fields []string, n int) ([]int, error) {
	if len(fields) != n {
		return nil, errors.NotValidf("size line %q", strings.Join(fields, " "))
	}
	size := make([]int, n)
	for i, field := range fields {
		v, err := util.ParseInt[int](field)
		if err != nil {
			return nil, errors.Annotatef(err, "size line")
		}
		if v < 0 {
			return nil, errors.NotValidf("negative size %d", v)
		}
		size[i] = v
	}
	return size, nil
}

// ReadMatrixMarket parses a Matrix Market stream into a sparse matrix. Array inputs are
// returned with every cell observed.
func ReadMatrixMarket(r io.Reader) (*SparseMatrix, error) {
	s := newMMScanner(r)
	line, err := s.banner()
	if err != nil {
		return nil, s.errorf(err)
	}
	header, err := parseBanner(line)
	if err != nil {
		return nil, s.errorf(err)
	}
	if header.format == "array" {
		dense, err := readArray(s)
		if err != nil {
			return nil, err
		}
		return dense.ToSparse(), nil
	}
	return readCoordinate(s, header)
}

// ReadDenseMatrixMarket parses a Matrix Market stream into a dense matrix. Unobserved cells of
// coordinate inputs are zero.
func ReadDenseMatrixMarket(r io.Reader) (*DenseMatrix, error) {
	s := newMMScanner(r)
	line, err := s.banner()
	if err != nil {
		return nil, s.errorf(err)
	}
	header, err := parseBanner(line)
	if err != nil {
		return nil, s.errorf(err)
	}
	if header.format == "array" {
		return readArray(s)
	}
	sparse, err := readCoordinate(s, header)
	if err != nil {
		return nil, err
	}
	if err = checkDenseSize(sparse.Dims()); err != nil {
		return nil, s.errorf(err)
	}
	return DenseFromSparse(sparse), nil
}

// ReadSideMatrixMarket parses side information. Coordinate inputs stay sparse and array inputs
// are dense. Exactly one of the results is non-nil on success.
func ReadSideMatrixMarket(r io.Reader) (*SparseMatrix, *DenseMatrix, error) {
	s := newMMScanner(r)
	line, err := s.banner()
	if err != nil {
		return nil, nil, s.errorf(err)
	}
	header, err := parseBanner(line)
	if err != nil {
		return nil, nil, s.errorf(err)
	}
	if header.format == "array" {
		dense, err := readArray(s)
		return nil, dense, err
	}
	sparse, err := readCoordinate(s, header)
	return sparse, nil, err
}

func readCoordinate(s *mmScanner, header mmHeader) (*SparseMatrix, error) {
	fields, ok, err := s.next()
	if err != nil {
		return nil, s.errorf(err)
	} else if !ok {
		return nil, s.errorf(errors.NotValidf("missing size line"))
	}
	size, err := parseSize(fields, 3)
	if err != nil {
		return nil, s.errorf(err)
	}
	rows, cols, nnz := size[0], size[1], size[2]
	if header.symmetry != "general" && rows != cols {
		return nil, s.errorf(errors.NotValidf("%s matrix of size %dx%d", header.symmetry, rows, cols))
	}
	m := NewSparseMatrix(rows, cols)
	m.triples = make([]Triple, 0, min(nnz, maxPrealloc))
	expect := 3
	if header.field == "pattern" {
		expect = 2
	}
	for count := 0; ; count++ {
		fields, ok, err = s.next()
		if err != nil {
			return nil, s.errorf(err)
		}
		if !ok {
			if count != nnz {
				return nil, s.errorf(errors.NotValidf("expect %d entries but got %d", nnz, count))
			}
			return m, nil
		}
		if count >= nnz {
			return nil, s.errorf(errors.NotValidf("more than %d entries", nnz))
		}
		if len(fields) < expect {
			return nil, s.errorf(errors.NotValidf("entry %q", strings.Join(fields, " ")))
		}
		row, err := util.ParseInt[int](fields[0])
		if err != nil {
			return nil, s.errorf(errors.Trace(err))
		}
		col, err := util.ParseInt[int](fields[1])
		if err != nil {
			return nil, s.errorf(errors.Trace(err))
		}
		value := 1.0
		if header.field != "pattern" {
			if value, err = util.ParseFloat[float64](fields[2]); err != nil {
				return nil, s.errorf(errors.Trace(err))
			}
		}
		if err = m.Append(row-1, col-1, value); err != nil {
			return nil, s.errorf(err)
		}
		if row != col {
			switch header.symmetry {
			case "symmetric":
				err = m.Append(col-1, row-1, value)
			case "skew-symmetric":
				err = m.Append(col-1, row-1, -value)
			}
			if err != nil {
				return nil, s.errorf(err)
			}
		}
	}
}

func readArray(s *mmScanner) (*DenseMatrix, error) {
	fields, ok, err := s.next()
	if err != nil {
		return nil, s.errorf(err)
	} else if !ok {
		return nil, s.errorf(errors.NotValidf("missing size line"))
	}
	size, err := parseSize(fields, 2)
	if err != nil {
		return nil, s.errorf(err)
	}
	rows, cols := size[0], size[1]
	if err = checkDenseSize(rows, cols); err != nil {
		return nil, s.errorf(err)
	}
	total := rows * cols
	values := make([]float64, 0, min(total, maxPrealloc))
	for {
		fields, ok, err = s.next()
		if err != nil {
			return nil, s.errorf(err)
		}
		if !ok {
			break
		}
		for _, field := range fields {
			if len(values) >= total {
				return nil, s.errorf(errors.NotValidf("more than %d values", total))
			}
			value, err := util.ParseFloat[float64](field)
			if err != nil {
				return nil, s.errorf(errors.Trace(err))
			}
			values = append(values, value)
		}
	}
	if len(values) != total {
		return nil, s.errorf(errors.NotValidf("expect %d values but got %d", total, len(values)))
	}
	m := NewDenseMatrix(rows, cols)
	// column-major
	for k, value := range values {
		m.Set(k%rows, k/rows, value)
	}
	return m, nil
}

// WriteMatrixMarket writes a coordinate real general file. Values are formatted with the
// shortest representation that parses back to the same float64.
func WriteMatrixMarket(w io.Writer, m *SparseMatrix) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%s matrix coordinate real general\n", mmBanner); err != nil {
		return errors.Trace(err)
	}
	if _, err := fmt.Fprintf(bw, "%d %d %d\n", m.rows, m.cols, len(m.triples)); err != nil {
		return errors.Trace(err)
	}
	for _, t := range m.triples {
		if _, err := fmt.Fprintf(bw, "%d %d %s\n", t.Row+1, t.Col+1, encoding.FormatFloat64(t.Value)); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(bw.Flush())
}

// WriteDenseMatrixMarket writes an array real general file in column-major order.
func WriteDenseMatrixMarket(w io.Writer, m *DenseMatrix) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%s matrix array real general\n%d %d\n", mmBanner, m.rows, m.cols); err != nil {
		return errors.Trace(err)
	}
	for j := 0; j < m.cols; j++ {
		for i := 0; i < m.rows; i++ {
			if _, err := fmt.Fprintln(bw, encoding.FormatFloat64(m.At(i, j))); err != nil {
				return errors.Trace(err)
			}
		}
	}
	return errors.Trace(bw.Flush())
}

func openMatrixFile(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if !strings.HasSuffix(path, ".gz") {
		return file, nil
	}
	reader, err := gzip.NewReader(file)
	if err != nil {
		_ = file.Close()
		return nil, errors.Annotatef(err, "open %s", path)
	}
	return &gzipReadCloser{Reader: reader, file: file}, nil
}

type gzipReadCloser struct {
	*gzip.Reader
	file *os.File
}

func (r *gzipReadCloser) Close() error {
	err := r.Reader.Close()
	if err2 := r.file.Close(); err == nil {
		err = err2
	}
	return err
}

// ReadMatrixMarketFile reads a Matrix Market file, decompressing *.gz files.
func ReadMatrixMarketFile(path string) (*SparseMatrix, error) {
	r, err := openMatrixFile(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	m, err := ReadMatrixMarket(r)
	if err != nil {
		return nil, errors.Annotatef(err, "read %s", path)
	}
	return m, nil
}

// ReadSideMatrixMarketFile reads side information from a Matrix Market file.
func ReadSideMatrixMarketFile(path string) (*SparseMatrix, *DenseMatrix, error) {
	r, err := openMatrixFile(path)
	if err != nil {
		return nil, nil, err
	}
	defer r.Close()
	sparse, dense, err := ReadSideMatrixMarket(r)
	if err != nil {
		return nil, nil, errors.Annotatef(err, "read %s", path)
	}
	return sparse, dense, nil
}

// WriteMatrixMarketFile writes a Matrix Market file, compressing *.gz files.
func WriteMatrixMarketFile(path string, m *SparseMatrix) error {
	file, err := os.Create(path)
	if err != nil {
		return errors.Trace(err)
	}
	defer file.Close()
	if !strings.HasSuffix(path, ".gz") {
		if err = WriteMatrixMarket(file, m); err != nil {
			return err
		}
		return errors.Trace(file.Close())
	}
	gz := gzip.NewWriter(file)
	if err = WriteMatrixMarket(gz, m); err != nil {
		return err
	}
	if err = gz.Close(); err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(file.Close())
}
