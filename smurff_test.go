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

package smurff

import (
	"context"
	"math"
	"testing"

	"github.com/gorse-io/smurff/dataset"
	"github.com/gorse-io/smurff/model"
	"github.com/gorse-io/smurff/model/bpmf"
	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newToyMatrices(t *testing.T) (*dataset.SparseMatrix, *dataset.SparseMatrix) {
	train, err := dataset.NewSparseMatrixFromTriples(3, 3, []dataset.Triple{
		{Row: 0, Col: 0, Value: 1},
		{Row: 0, Col: 1, Value: 2},
		{Row: 1, Col: 1, Value: 3},
		{Row: 2, Col: 2, Value: 4},
	})
	require.NoError(t, err)
	test, err := dataset.NewSparseMatrixFromTriples(3, 3, []dataset.Triple{{Row: 1, Col: 2, Value: 3.5}})
	require.NoError(t, err)
	return train, test
}

var shortRun = model.Params{
	model.NumLatent: 1,
	model.Burnin:    1,
	model.NSamples:  5,
	model.Verbose:   0,
}

func TestSmurff(t *testing.T) {
	train, test := newToyMatrices(t)
	result, err := Smurff(context.Background(), train, test, []Side{{Prior: "normal"}, {Prior: "normal"}}, shortRun)
	require.NoError(t, err)
	require.Len(t, result.Predictions, 1)
	p := result.Predictions[0]
	assert.Equal(t, 5, p.NSamples)
	assert.False(t, math.IsNaN(p.PredAvg))
	assert.GreaterOrEqual(t, p.Var, 0.0)
}

func TestSmurff_DefaultSides(t *testing.T) {
	train, test := newToyMatrices(t)
	var priors []string
	result, err := Smurff(context.Background(), train, test, nil, shortRun, WithJobs(2), WithCallback(func(status Status) {
		priors = status.Priors
	}))
	require.NoError(t, err)
	assert.Len(t, result.Trace, 6)
	require.Len(t, priors, 2)
	assert.Contains(t, priors[0], bpmf.PriorNormal)
}

func TestSmurff_Errors(t *testing.T) {
	train, test := newToyMatrices(t)
	ctx := context.Background()

	_, err := Smurff(ctx, dataset.NewSparseMatrix(3, 3), test, nil, shortRun)
	assert.True(t, errors.Is(err, ErrEmptyTrain))

	_, err = Smurff(ctx, train, test, nil, model.Params{model.NumLatent: 0})
	assert.True(t, errors.Is(err, ErrInvalidParam))

	_, err = Smurff(ctx, train, dataset.NewSparseMatrix(3, 5), nil, shortRun)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	_, err = Smurff(ctx, train, test, []Side{{Prior: "normal"}}, shortRun)
	assert.True(t, errors.Is(err, ErrInvalidPrior))

	_, err = Smurff(ctx, train, test, []Side{{Prior: "gaussian"}, {Prior: "normal"}}, shortRun)
	assert.True(t, errors.Is(err, ErrInvalidPrior))

	_, err = Smurff(ctx, train, test, []Side{{Prior: "macau"}, {Prior: "normal"}}, shortRun)
	assert.True(t, errors.Is(err, ErrInvalidPrior))

	_, err = Smurff(ctx, train, test, []Side{{Prior: "normal", Features: dataset.NewDenseMatrix(3, 1)}, {Prior: "normal"}}, shortRun)
	assert.True(t, errors.Is(err, ErrInvalidPrior))

	_, err = Smurff(ctx, train, test, []Side{{Prior: "macau", Features: dataset.NewDenseMatrix(2, 1)}, {Prior: "normal"}}, shortRun)
	assert.True(t, errors.Is(err, ErrInvalidPrior))

	both := Side{Prior: "macau", Features: dataset.NewDenseMatrix(3, 1), SparseFeatures: dataset.NewSparseMatrix(3, 1)}
	_, err = Smurff(ctx, train, test, []Side{both, {Prior: "normal"}}, shortRun)
	assert.True(t, errors.Is(err, ErrInvalidPrior))
}

func TestSmurff_Macau(t *testing.T) {
	train, test := newToyMatrices(t)
	features, err := dataset.NewDenseMatrixFromRows([][]float64{{1, 0}, {0, 1}, {1, 1}})
	require.NoError(t, err)
	result, err := Smurff(context.Background(), train, test, []Side{{Prior: "macau", Features: features}, {Prior: "normal"}}, model.Params{
		model.NumLatent:  2,
		model.Burnin:     2,
		model.NSamples:   3,
		model.RandomSeed: 1,
		model.Verbose:    0,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Predictions[0].NSamples)
}

func TestSmurff_SparseMacau(t *testing.T) {
	train, test := newToyMatrices(t)
	features, err := dataset.NewSparseMatrixFromTriples(3, 2, []dataset.Triple{
		{Row: 0, Col: 0, Value: 1},
		{Row: 1, Col: 1, Value: 1},
		{Row: 2, Col: 0, Value: 1},
		{Row: 2, Col: 1, Value: 1},
	})
	require.NoError(t, err)
	result, err := Smurff(context.Background(), train, test, []Side{{Prior: "macau", SparseFeatures: features}, {Prior: "normal"}}, model.Params{
		model.NumLatent:  2,
		model.Burnin:     2,
		model.NSamples:   3,
		model.RandomSeed: 1,
		model.Verbose:    0,
		model.Tol:        1e-8,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Predictions[0].NSamples)
}
