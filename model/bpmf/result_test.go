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
	"math"
	"testing"

	"github.com/gorse-io/smurff/dataset"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func TestPrediction_Add(t *testing.T) {
	samples := []float64{1, 4, 2, 8, 5}
	var p Prediction
	for i, x := range samples {
		p.add(x, true)
		assert.Equal(t, i+1, p.NSamples)
		assert.InDelta(t, stat.Mean(samples[:i+1], nil), p.PredAvg, 1e-12)
		if i == 0 {
			assert.Zero(t, p.Var)
		} else {
			assert.InDelta(t, stat.Variance(samples[:i+1], nil), p.Var, 1e-12)
		}
	}
	assert.Equal(t, samples, p.PredAll)
	assert.InDelta(t, math.Sqrt(p.Var), p.Std(), 1e-12)
}

func TestPrediction_String(t *testing.T) {
	p := Prediction{Row: 1, Col: 2, Value: 3.5, Pred1Sample: 1, PredAvg: 2, Var: 0.25, NSamples: 5}
	assert.Equal(t, "(1, 2): 3.5 | 1-sample: 1.0000 | avg: 2.0000 | var: 0.2500 | nsamples: 5", p.String())
}

func TestPredictions(t *testing.T) {
	test, err := dataset.NewSparseMatrixFromTriples(2, 2, []dataset.Triple{{Row: 0, Col: 1, Value: 2}, {Row: 1, Col: 0, Value: 6}})
	require.NoError(t, err)
	preds := newPredictions(test, false)
	require.Len(t, preds.cells, 2)
	assert.True(t, math.IsNaN(preds.cells[0].PredAvg))
	assert.True(t, math.IsNaN(preds.cells[0].Var))
	avg, oneSample := preds.rmse()
	assert.True(t, math.IsNaN(avg))
	assert.True(t, math.IsNaN(oneSample))
	avg, _ = preds.aucs()
	assert.True(t, math.IsNaN(avg))

	u0 := mat.NewDense(2, 1, []float64{1, 2})
	u1 := mat.NewDense(2, 1, []float64{1, 2})
	predict := func(i, j int) float64 { return 1 + u0.At(i, 0)*u1.At(j, 0) }
	// burn-in only refreshes the 1-sample prediction
	preds.update(predict, false)
	assert.Equal(t, 3.0, preds.cells[0].Pred1Sample)
	assert.Equal(t, 3.0, preds.cells[1].Pred1Sample)
	assert.Zero(t, preds.cells[0].NSamples)
	avg, oneSample = preds.rmse()
	assert.True(t, math.IsNaN(avg))
	assert.InDelta(t, math.Sqrt((1.0+9.0)/2), oneSample, 1e-12)

	preds.setThreshold(4)
	preds.update(predict, true)
	assert.Equal(t, 1, preds.cells[0].NSamples)
	assert.Equal(t, 3.0, preds.cells[0].PredAvg)
	assert.Zero(t, preds.cells[0].Var)
	aucAvg, auc1 := preds.aucs()
	assert.Equal(t, 0.0, aucAvg)
	assert.Equal(t, 0.0, auc1)

	snapshot := preds.snapshot()
	snapshot[0].PredAvg = 0
	assert.Equal(t, 3.0, preds.cells[0].PredAvg)
}

func TestStatus_String(t *testing.T) {
	status := Status{
		Phase:       PhaseSample,
		Iteration:   2,
		RMSEAvg:     0.5,
		RMSE1Sample: 0.6,
		TrainRMSE:   0.4,
		LatentNorms: [2]float64{1, 2},
		Noise:       "fixed: 5",
		AUCAvg:      math.NaN(),
		Priors:      []string{"normal: |mu| = 0.1"},
	}
	assert.Equal(t, "sample 2: rmse avg 0.5000 1-sample 0.6000, train rmse 0.4000, |U0| 1 |U1| 2, noise fixed: 5, normal: |mu| = 0.1", status.String())
}
