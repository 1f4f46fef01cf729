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

package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorse-io/smurff"
	"github.com/gorse-io/smurff/dataset"
	"github.com/gorse-io/smurff/model"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trainMatrix = `%%MatrixMarket matrix coordinate real general
% toy activity matrix
3 3 4
1 1 1.0
1 2 2.0
2 2 3.0
3 3 4.0
`

const testMatrix = `%%MatrixMarket matrix coordinate real general
3 3 1
2 3 3.5
`

func writeMatrices(t *testing.T) (string, string) {
	dir := t.TempDir()
	trainPath := filepath.Join(dir, "train.mm")
	testPath := filepath.Join(dir, "test.mm")
	require.NoError(t, os.WriteFile(trainPath, []byte(trainMatrix), 0644))
	require.NoError(t, os.WriteFile(testPath, []byte(testMatrix), 0644))
	return trainPath, testPath
}

func TestRun(t *testing.T) {
	trainPath, testPath := writeMatrices(t)
	var called bool
	var printed smurff.Prediction
	factorize = func(ctx context.Context, train, test *dataset.SparseMatrix, side []smurff.Side, params model.Params, opts ...smurff.Option) (*smurff.Result, error) {
		called = true
		assert.Equal(t, []smurff.Side{{Prior: "normal"}, {Prior: "normal"}}, side)
		assert.Equal(t, 1, params.GetInt(model.NumLatent, 0))
		assert.Equal(t, 1, params.GetInt(model.Burnin, 0))
		assert.Equal(t, 5, params.GetInt(model.NSamples, 0))
		params[model.Verbose] = 0
		result, err := smurff.Smurff(ctx, train, test, side, params, opts...)
		if err == nil {
			printed = result.Predictions[0]
		}
		return result, err
	}
	defer func() { factorize = smurff.Smurff }()

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), &out, trainPath, testPath))
	assert.True(t, called)
	assert.Equal(t, printed.String()+"\n", out.String())
	assert.True(t, strings.HasPrefix(out.String(), "(1, 2): 3.5 |"))
	assert.Contains(t, out.String(), "nsamples: 5")
}

func TestRun_MissingInput(t *testing.T) {
	trainPath, testPath := writeMatrices(t)
	factorize = func(context.Context, *dataset.SparseMatrix, *dataset.SparseMatrix, []smurff.Side, model.Params, ...smurff.Option) (*smurff.Result, error) {
		t.Fatal("factorization must not be called")
		return nil, nil
	}
	defer func() { factorize = smurff.Smurff }()

	var out bytes.Buffer
	err := run(context.Background(), &out, filepath.Join(t.TempDir(), "missing.mm"), testPath)
	assert.Error(t, err)
	err = run(context.Background(), &out, trainPath, filepath.Join(t.TempDir(), "missing.mm"))
	assert.Error(t, err)
	assert.Empty(t, out.String())
}

func TestRun_EmptyTrain(t *testing.T) {
	dir := t.TempDir()
	trainPath := filepath.Join(dir, "empty.mm")
	require.NoError(t, os.WriteFile(trainPath, []byte("%%MatrixMarket matrix coordinate real general\n3 3 0\n"), 0644))
	_, testPath := writeMatrices(t)
	var out bytes.Buffer
	err := run(context.Background(), &out, trainPath, testPath)
	assert.True(t, errors.Is(err, smurff.ErrEmptyTrain))
	assert.Empty(t, out.String())
}
