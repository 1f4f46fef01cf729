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

package encoding

import (
	"encoding/binary"
	"io"
	"strconv"

	"github.com/juju/errors"
)

// WriteFloat64s writes a float64 slice to byte stream in little endian.
func WriteFloat64s(w io.Writer, v []float64) error {
	return errors.Trace(binary.Write(w, binary.LittleEndian, v))
}

// ReadFloat64s fills a float64 slice from byte stream.
func ReadFloat64s(r io.Reader, v []float64) error {
	return errors.Trace(binary.Read(r, binary.LittleEndian, v))
}

// WriteInt64 writes an int64 to byte stream.
func WriteInt64(w io.Writer, v int64) error {
	return errors.Trace(binary.Write(w, binary.LittleEndian, v))
}

// ReadInt64 reads an int64 from byte stream.
func ReadInt64(r io.Reader) (int64, error) {
	var v int64
	err := binary.Read(r, binary.LittleEndian, &v)
	return v, errors.Trace(err)
}

// FormatFloat64 formats a float64 with the shortest representation that parses back
// to the same value.
func FormatFloat64(val float64) string {
	return strconv.FormatFloat(val, 'g', -1, 64)
}
