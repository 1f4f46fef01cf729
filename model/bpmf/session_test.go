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

package bpmf

import (
	"bytes"
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gorse-io/smurff/base"
	"github.com/gorse-io/smurff/dataset"
	"github.com/gorse-io/smurff/model"
	"github.com/gorse-io/smurff/storage/blob"
	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func normalPriors() [2]Prior {
	return [2]Prior{&NormalPrior{}, &NormalPrior{}}
}

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

// newLowRankMatrices splits a noiseless rank-2 matrix into train and test cells.
func newLowRankMatrices(t *testing.T, rows, cols int) (*dataset.SparseMatrix, *dataset.SparseMatrix) {
	rng := base.NewRandomGenerator(42)
	u := mat.NewDense(rows, 2, rng.NormalVector64(rows*2, 0, 1))
	v := mat.NewDense(cols, 2, rng.NormalVector64(cols*2, 0, 1))
	train := dataset.NewSparseMatrix(rows, cols)
	test := dataset.NewSparseMatrix(rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			value := 3 + u.At(i, 0)*v.At(j, 0) + u.At(i, 1)*v.At(j, 1)
			if rng.Float64() < 0.7 {
				require.NoError(t, train.Append(i, j, value))
			} else {
				require.NoError(t, test.Append(i, j, value))
			}
		}
	}
	return train, test
}

func TestSession_Toy(t *testing.T) {
	train, test := newToyMatrices(t)
	var statuses []Status
	session, err := NewSession(train, test, normalPriors(), model.Params{
		model.NumLatent: 1,
		model.Burnin:    1,
		model.NSamples:  5,
		model.Verbose:   0,
	}, WithCallback(func(status Status) {
		statuses = append(statuses, status)
	}))
	require.NoError(t, err)
	result, err := session.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Predictions, 1)
	p := result.Predictions[0]
	assert.Equal(t, 1, p.Row)
	assert.Equal(t, 2, p.Col)
	assert.Equal(t, 3.5, p.Value)
	assert.Equal(t, 5, p.NSamples)
	assert.False(t, math.IsNaN(p.PredAvg) || math.IsInf(p.PredAvg, 0))
	assert.GreaterOrEqual(t, p.Var, 0.0)
	assert.Equal(t, 2.5, result.Mean)
	assert.Equal(t, 5, result.NSamples)
	assert.Equal(t, 1, result.Burnin)

	// one status per iteration
	require.Len(t, statuses, 6)
	assert.Len(t, result.Trace, 6)
	assert.Equal(t, PhaseBurnin, statuses[0].Phase)
	assert.True(t, math.IsNaN(statuses[0].RMSEAvg))
	assert.Equal(t, PhaseSample, statuses[5].Phase)
	assert.Equal(t, 5, statuses[5].Iteration)
	assert.Equal(t, 6, statuses[5].Step)
	assert.InDelta(t, math.Abs(p.PredAvg-3.5), result.RMSEAvg, 1e-12)
	assert.Equal(t, 5.0, testutil.ToFloat64(CollectedSamples))

	// no more steps
	_, err = session.Step(context.Background())
	assert.True(t, errors.Is(err, ErrFinished))
}

func TestSession_Invalid(t *testing.T) {
	train, test := newToyMatrices(t)
	_, err := NewSession(dataset.NewSparseMatrix(3, 3), test, normalPriors(), nil)
	assert.True(t, errors.Is(err, ErrEmptyTrain))
	_, err = NewSession(nil, test, normalPriors(), nil)
	assert.True(t, errors.Is(err, ErrEmptyTrain))

	for _, params := range []model.Params{
		{model.NumLatent: 0},
		{model.Burnin: -1},
		{model.NSamples: -1},
		{model.Burnin: 0, model.NSamples: 0},
		{model.SaveFreq: 1},
		{model.SaveFreq: -2},
		{model.Center: "median"},
		{model.InitModel: "ones"},
		{model.Noise: "probit"},
	} {
		_, err = NewSession(train, test, normalPriors(), params)
		assert.True(t, errors.Is(err, ErrInvalidParam), params)
	}

	big := dataset.NewSparseMatrix(4, 3)
	_, err = NewSession(train, big, normalPriors(), nil)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	_, err = NewSession(train, test, [2]Prior{&NormalPrior{}}, nil)
	assert.True(t, errors.Is(err, ErrInvalidPrior))

	session, err := NewSession(train, test, [2]Prior{NewMacauPrior(DenseSideInfo(dataset.NewDenseMatrix(2, 2)), 1), &NormalPrior{}}, model.Params{model.Verbose: 0})
	require.NoError(t, err)
	err = session.Init()
	assert.True(t, errors.Is(err, ErrInvalidPrior))
}

func TestSession_Deterministic(t *testing.T) {
	train, test := newLowRankMatrices(t, 20, 15)
	run := func() *Result {
		session, err := NewSession(train, test, normalPriors(), model.Params{
			model.NumLatent:  3,
			model.Burnin:     5,
			model.NSamples:   5,
			model.RandomSeed: 7,
			model.Noise:      model.NoiseAdaptive,
			model.Verbose:    0,
		}, WithJobs(3))
		require.NoError(t, err)
		result, err := session.Run(context.Background())
		require.NoError(t, err)
		return result
	}
	a, b := run(), run()
	require.Equal(t, len(a.Predictions), len(b.Predictions))
	for i := range a.Predictions {
		assert.Equal(t, a.Predictions[i].PredAvg, b.Predictions[i].PredAvg)
		assert.Equal(t, a.Predictions[i].Var, b.Predictions[i].Var)
	}
	assert.Equal(t, a.RMSEAvg, b.RMSEAvg)
}

func TestSession_LowRank(t *testing.T) {
	train, test := newLowRankMatrices(t, 40, 30)
	session, err := NewSession(train, test, normalPriors(), model.Params{
		model.NumLatent:  4,
		model.Burnin:     50,
		model.NSamples:   100,
		model.RandomSeed: 1,
		model.Precision:  20.0,
		model.Verbose:    0,
	}, WithJobs(4))
	require.NoError(t, err)
	result, err := session.Run(context.Background())
	require.NoError(t, err)

	// predicting the mean is the baseline
	mean := train.Mean()
	targets := lo.Map(test.Triples(), func(cell dataset.Triple, _ int) float64 { return cell.Value })
	baseline := RMSE(lo.Times(len(targets), func(int) float64 { return mean }), targets)
	assert.Less(t, result.RMSEAvg, 0.5*baseline)
	assert.Less(t, result.RMSEAvg, result.Trace[0].RMSE1Sample)
}

func TestSession_SaveAndPredict(t *testing.T) {
	train, test := newLowRankMatrices(t, 12, 10)
	store := blob.NewPOSIX(filepath.Join(t.TempDir(), "samples"))
	session, err := NewSession(train, test, normalPriors(), model.Params{
		model.NumLatent:  2,
		model.Burnin:     2,
		model.NSamples:   4,
		model.RandomSeed: 3,
		model.SaveFreq:   1,
		model.SavePrefix: "run",
		model.Verbose:    0,
	}, WithStore(store))
	require.NoError(t, err)
	result, err := session.Run(context.Background())
	require.NoError(t, err)

	names, err := store.List()
	require.NoError(t, err)
	assert.Contains(t, names, "run-root.yaml")
	assert.Contains(t, names, "run-1-U0-latents.ddm")
	assert.Contains(t, names, "run-4-U1-latents.ddm")
	assert.Contains(t, names, "run-4-predictions.csv")
	assert.Contains(t, names, "run-4-U0-Lambda.ddm")

	root, err := ReadRootFile(store, "run")
	require.NoError(t, err)
	assert.Len(t, root.Samples, 4)
	assert.Equal(t, 12, root.Rows)
	assert.Equal(t, 10, root.Cols)
	assert.Equal(t, []string{PriorNormal, PriorNormal}, root.Priors)
	assert.Equal(t, result.Mean, root.Mean)
	assert.Equal(t, 3, root.Samples[0].Step)
	assert.Equal(t, "run-2-U1-mu.ddm", root.Samples[1].PriorState["U1-mu"])

	csv, err := blob.ReadAll(store, "run-4-predictions.csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(csv)), "\n")
	assert.Equal(t, "row,col,y,pred_1samp,pred_avg,var,std", lines[0])
	assert.Len(t, lines, test.NNZ()+1)

	predictor, err := OpenPredictSession(store, "run")
	require.NoError(t, err)
	assert.Equal(t, 4, predictor.NumSamples())
	predictions, rmse, err := predictor.PredictMatrix(context.Background(), test, 2)
	require.NoError(t, err)
	require.Len(t, predictions, len(result.Predictions))
	for i, p := range predictions {
		assert.InDelta(t, result.Predictions[i].PredAvg, p.PredAvg, 1e-9)
		assert.InDelta(t, result.Predictions[i].Var, p.Var, 1e-9)
		assert.InDelta(t, result.Predictions[i].Pred1Sample, p.Pred1Sample, 1e-9)
	}
	assert.InDelta(t, result.RMSEAvg, rmse, 1e-9)

	cell := result.Predictions[0]
	avg, variance, err := predictor.Predict(cell.Row, cell.Col)
	require.NoError(t, err)
	assert.InDelta(t, cell.PredAvg, avg, 1e-9)
	assert.InDelta(t, cell.Var, variance, 1e-9)
	_, _, err = predictor.Predict(12, 0)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestSession_SaveLast(t *testing.T) {
	train, test := newToyMatrices(t)
	store := blob.NewPOSIX(filepath.Join(t.TempDir(), "samples"))
	session, err := NewSession(train, test, normalPriors(), model.Params{
		model.NumLatent: 2,
		model.Burnin:    2,
		model.NSamples:  3,
		model.SaveFreq:  -1,
		model.Verbose:   0,
	}, WithStore(store))
	require.NoError(t, err)
	_, err = session.Run(context.Background())
	require.NoError(t, err)
	root, err := ReadRootFile(store, model.DefaultSavePrefix)
	require.NoError(t, err)
	require.Len(t, root.Samples, 1)
	assert.Equal(t, 3, root.Samples[0].Number)
	assert.Equal(t, []string{"sample-3-U0-latents.ddm", "sample-3-U1-latents.ddm"}, root.Samples[0].Latents)
}

func TestOpenPredictSession_Missing(t *testing.T) {
	store := blob.NewPOSIX(filepath.Join(t.TempDir(), "samples"))
	_, err := OpenPredictSession(store, "run")
	assert.True(t, errors.Is(err, errors.NotFound))
}

func TestSession_Canceled(t *testing.T) {
	train, test := newToyMatrices(t)
	session, err := NewSession(train, test, normalPriors(), model.Params{model.Verbose: 0})
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = session.Run(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestSession_Priors(t *testing.T) {
	train, test := newLowRankMatrices(t, 20, 15)
	rng := base.NewRandomGenerator(9)
	features := dataset.NewDenseMatrix(20, 3)
	for i := 0; i < 20; i++ {
		for j := 0; j < 3; j++ {
			features.Set(i, j, rng.NormFloat64())
		}
	}
	colFeatures := dataset.NewSparseMatrix(15, 4)
	for j := 0; j < 15; j++ {
		require.NoError(t, colFeatures.Append(j, j%4, 1))
	}
	for _, priors := range [][2]Prior{
		{NewMacauPrior(DenseSideInfo(features), 5), &SpikeAndSlabPrior{}},
		{&NormalPrior{}, NewMacauPrior(SparseSideInfo(colFeatures, 0), 5)},
		{&NormalOnePrior{}, &NormalPrior{}},
		{&SpikeAndSlabPrior{}, &NormalOnePrior{}},
	} {
		session, err := NewSession(train, test, priors, model.Params{
			model.NumLatent:  3,
			model.Burnin:     3,
			model.NSamples:   3,
			model.RandomSeed: 11,
			model.Threshold:  3.0,
			model.InitModel:  model.InitZero,
			model.Noise:      model.NoiseAdaptive,
			model.Verbose:    2,
		}, WithJobs(2))
		require.NoError(t, err)
		result, err := session.Run(context.Background())
		require.NoError(t, err)
		assert.False(t, math.IsNaN(result.RMSEAvg))
		assert.False(t, math.IsNaN(result.AUCAvg))
		assert.Len(t, result.Trace[len(result.Trace)-1].Priors, 2)
		for _, p := range result.Predictions {
			assert.False(t, math.IsNaN(p.PredAvg))
		}
	}
}

func TestSession_KeepPredAll(t *testing.T) {
	train, test := newToyMatrices(t)
	session, err := NewSession(train, test, normalPriors(), model.Params{
		model.NumLatent:   2,
		model.Burnin:      1,
		model.NSamples:    4,
		model.KeepPredAll: true,
		model.Center:      model.CenterNone,
		model.Verbose:     0,
	})
	require.NoError(t, err)
	result, err := session.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, result.Mean)
	p := result.Predictions[0]
	require.Len(t, p.PredAll, 4)
	assert.Equal(t, p.Pred1Sample, p.PredAll[3])
	assert.Equal(t, session.Predict(p.Row, p.Col), p.Pred1Sample)
}

func TestTracePlot(t *testing.T) {
	train, test := newToyMatrices(t)
	session, err := NewSession(train, test, normalPriors(), model.Params{
		model.NumLatent: 1,
		model.Burnin:    2,
		model.NSamples:  3,
		model.Verbose:   0,
	})
	require.NoError(t, err)
	result, err := session.Run(context.Background())
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "trace.png")
	require.NoError(t, SaveTracePlot(result.Trace, path))
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())

	var buf bytes.Buffer
	require.NoError(t, WriteTracePlot(&buf, result.Trace, "svg"))
	assert.Contains(t, buf.String(), "<svg")

	assert.Error(t, SaveTracePlot(nil, path))
}

func TestSession_Unobserved(t *testing.T) {
	train, err := dataset.NewSparseMatrixFromTriples(3, 4, []dataset.Triple{
		{Row: 0, Col: 0, Value: 1},
		{Row: 1, Col: 1, Value: 2},
		{Row: 2, Col: 0, Value: 3},
	})
	require.NoError(t, err)
	session, err := NewSession(train, nil, normalPriors(), model.Params{
		model.NumLatent:  1,
		model.Burnin:     1,
		model.NSamples:   1,
		model.RandomSeed: 1,
	})
	require.NoError(t, err)
	require.NoError(t, session.Init())
	assert.Equal(t, 0.0, testutil.ToFloat64(UnobservedEntitiesVec.WithLabelValues("0")))
	assert.Equal(t, 2.0, testutil.ToFloat64(UnobservedEntitiesVec.WithLabelValues("1")))
	result, err := session.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Predictions)
}
