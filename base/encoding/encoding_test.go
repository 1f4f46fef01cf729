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
	"bytes"
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteFloat64s(t *testing.T) {
	a := []float64{1, -2.5, math.Pi, math.Inf(1)}
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, WriteFloat64s(buf, a))
	assert.Equal(t, 8*len(a), buf.Len())
	b := make([]float64, len(a))
	assert.NoError(t, ReadFloat64s(buf, b))
	assert.Equal(t, a, b)
	// short read
	assert.Error(t, ReadFloat64s(bytes.NewBuffer([]byte{1, 2, 3}), b))
}

func TestWriteInt64(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	assert.NoError(t, WriteInt64(buf, -346))
	v, err := ReadInt64(buf)
	assert.NoError(t, err)
	assert.Equal(t, int64(-346), v)
}

func TestFormatFloat64(t *testing.T) {
	for _, v := range []float64{0.1, 1e-300, 123456789.123456789, -math.MaxFloat64} {
		parsed, err := strconv.ParseFloat(FormatFloat64(v), 64)
		assert.NoError(t, err)
		assert.Equal(t, v, parsed)
	}
}
