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
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gorse-io/smurff/dataset"
	"github.com/samber/lo"
)

// Phases of a session
const (
	PhaseBurnin = "burnin"
	PhaseSample = "sample"
)

// Prediction of a test cell.
type Prediction struct {
	Row         int
	Col         int
	Value       float64   // observed value
	Pred1Sample float64   // prediction of the last sample
	PredAvg     float64   // posterior mean over collected samples
	Var         float64   // posterior variance over collected samples
	NSamples    int       // number of collected samples
	PredAll     []float64 // prediction of every collected sample if kept

	m2 float64
}

// Std returns the posterior standard deviation.
func (p Prediction) Std() float64 {
	return math.Sqrt(p.Var)
}

func (p Prediction) String() string {
	return fmt.Sprintf("(%d, %d): %g | 1-sample: %.4f | avg: %.4f | var: %.4f | nsamples: %d",
		p.Row, p.Col, p.Value, p.Pred1Sample, p.PredAvg, p.Var, p.NSamples)
}

// add includes a sample with Welford's running mean and variance.
func (p *Prediction) add(pred float64, keepAll bool) {
	p.NSamples++
	if p.NSamples == 1 {
		p.PredAvg, p.m2 = 0, 0
	}
	delta := pred - p.PredAvg
	p.PredAvg += delta / float64(p.NSamples)
	p.m2 += delta * (pred - p.PredAvg)
	if p.NSamples > 1 {
		p.Var = p.m2 / float64(p.NSamples-1)
	} else {
		p.Var = 0
	}
	if keepAll {
		p.PredAll = append(p.PredAll, pred)
	}
}

// Status of an iteration.
type Status struct {
	Phase          string
	Iteration      int // 1-based within the phase
	Step           int // 1-based over all iterations
	RMSEAvg        float64
	RMSE1Sample    float64
	AUCAvg         float64
	AUC1Sample     float64
	TrainRMSE      float64
	LatentNorms    [2]float64
	NoisePrecision float64
	Noise          string
	Priors         []string
	Elapsed        time.Duration
}

func (s Status) String() string {
	var builder strings.Builder
	_, _ = fmt.Fprintf(&builder, "%s %d: rmse avg %.4f 1-sample %.4f, train rmse %.4f, |U0| %.4g |U1| %.4g, noise %s",
		s.Phase, s.Iteration, s.RMSEAvg, s.RMSE1Sample, s.TrainRMSE, s.LatentNorms[0], s.LatentNorms[1], s.Noise)
	if !math.IsNaN(s.AUCAvg) {
		_, _ = fmt.Fprintf(&builder, ", auc avg %.4f", s.AUCAvg)
	}
	for _, prior := range s.Priors {
		builder.WriteString(", ")
		builder.WriteString(prior)
	}
	return builder.String()
}

// Result of a session.
type Result struct {
	Predictions []Prediction // in the order of the test cells
	RMSEAvg     float64
	RMSE1Sample float64
	AUCAvg      float64
	AUC1Sample  float64
	Trace       []Status
	NumLatent   int
	Burnin      int
	NSamples    int
	Mean        float64 // value subtracted from training data
	Elapsed     time.Duration
}

// predictions tracks test cell predictions over iterations.
type predictions struct {
	cells     []Prediction
	keepAll   bool
	threshold float64
	auc       bool
}

func newPredictions(test *dataset.SparseMatrix, keepAll bool) *predictions {
	p := &predictions{keepAll: keepAll}
	if test == nil {
		return p
	}
	p.cells = make([]Prediction, test.NNZ())
	for i, t := range test.Triples() {
		p.cells[i] = Prediction{
			Row:         t.Row,
			Col:         t.Col,
			Value:       t.Value,
			Pred1Sample: math.NaN(),
			PredAvg:     math.NaN(),
			Var:         math.NaN(),
		}
	}
	return p
}

func (p *predictions) setThreshold(threshold float64) {
	p.threshold = threshold
	p.auc = true
}

// update predicts every test cell with the current sample. Collected samples also update
// the posterior averages.
func (p *predictions) update(predict func(i, j int) float64, collect bool) {
	for i := range p.cells {
		c := &p.cells[i]
		pred := predict(c.Row, c.Col)
		c.Pred1Sample = pred
		if collect {
			c.add(pred, p.keepAll)
		}
	}
}

func (p *predictions) values() []float64 {
	return lo.Map(p.cells, func(c Prediction, _ int) float64 { return c.Value })
}

func (p *predictions) rmse() (avg, oneSample float64) {
	if len(p.cells) == 0 {
		return math.NaN(), math.NaN()
	}
	targets := p.values()
	oneSample = RMSE(lo.Map(p.cells, func(c Prediction, _ int) float64 { return c.Pred1Sample }), targets)
	if p.cells[0].NSamples == 0 {
		return math.NaN(), oneSample
	}
	avg = RMSE(lo.Map(p.cells, func(c Prediction, _ int) float64 { return c.PredAvg }), targets)
	return avg, oneSample
}

func (p *predictions) aucs() (avg, oneSample float64) {
	if !p.auc || len(p.cells) == 0 {
		return math.NaN(), math.NaN()
	}
	targets := p.values()
	oneSample = AUC(lo.Map(p.cells, func(c Prediction, _ int) float64 { return c.Pred1Sample }), targets, p.threshold)
	if p.cells[0].NSamples == 0 {
		return math.NaN(), oneSample
	}
	avg = AUC(lo.Map(p.cells, func(c Prediction, _ int) float64 { return c.PredAvg }), targets, p.threshold)
	return avg, oneSample
}

// snapshot returns a copy of the predictions.
func (p *predictions) snapshot() []Prediction {
	cells := make([]Prediction, len(p.cells))
	copy(cells, p.cells)
	for i := range cells {
		if cells[i].PredAll != nil {
			cells[i].PredAll = append([]float64(nil), cells[i].PredAll...)
		}
	}
	return cells
}
