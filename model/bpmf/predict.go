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
	"context"
	"math"

	"github.com/gorse-io/smurff/base/log"
	"github.com/gorse-io/smurff/common/parallel"
	"github.com/gorse-io/smurff/dataset"
	"github.com/gorse-io/smurff/storage/blob"
	"github.com/juju/errors"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
)

// PredictSession predicts with the samples saved by a session.
type PredictSession struct {
	Root    *RootFile
	latents [][2]*dataset.DenseMatrix
}

// OpenPredictSession loads the root file and the latents of every saved sample.
func OpenPredictSession(store blob.Store, prefix string) (*PredictSession, error) {
	root, err := ReadRootFile(store, prefix)
	if err != nil {
		return nil, errors.Trace(err)
	}
	if len(root.Samples) == 0 {
		return nil, errors.NotFoundf("samples in %s", RootFileName(prefix))
	}
	p := &PredictSession{Root: root}
	for _, sample := range root.Samples {
		if len(sample.Latents) != 2 {
			return nil, errors.NotValidf("sample %d with %d latent files", sample.Number, len(sample.Latents))
		}
		var latents [2]*dataset.DenseMatrix
		for i, name := range sample.Latents {
			if latents[i], err = readDDM(store, name); err != nil {
				return nil, errors.Trace(err)
			}
			n, k := latents[i].Dims()
			if k != root.NumLatent || n != lo.Ternary(i == 0, root.Rows, root.Cols) {
				return nil, errors.NotValidf("%s is %dx%d", name, n, k)
			}
		}
		p.latents = append(p.latents, latents)
	}
	log.Logger().Info("open predict session",
		zap.String("prefix", prefix),
		zap.Int("samples", len(p.latents)),
		zap.Int("num_latent", root.NumLatent),
		zap.Strings("priors", root.Priors))
	return p, nil
}

// NumSamples returns the number of saved samples.
func (p *PredictSession) NumSamples() int {
	return len(p.latents)
}

func (p *PredictSession) predict(sample, i, j int) float64 {
	latents := p.latents[sample]
	return p.Root.Mean + floats.Dot(latents[0].Row(i), latents[1].Row(j))
}

// Predict returns the average and variance of the prediction of cell (i, j) over saved samples.
func (p *PredictSession) Predict(i, j int) (float64, float64, error) {
	if i < 0 || i >= p.Root.Rows || j < 0 || j >= p.Root.Cols {
		return math.NaN(), math.NaN(), errors.Annotatef(ErrDimensionMismatch, "cell (%d, %d) of %dx%d", i, j, p.Root.Rows, p.Root.Cols)
	}
	var c Prediction
	for sample := range p.latents {
		c.add(p.predict(sample, i, j), false)
	}
	return c.PredAvg, c.Var, nil
}

// PredictMatrix predicts every cell of a test matrix on jobs goroutines and returns the
// predictions and the RMSE of their averages.
func (p *PredictSession) PredictMatrix(ctx context.Context, test *dataset.SparseMatrix, jobs int) ([]Prediction, float64, error) {
	rows, cols := test.Dims()
	if rows > p.Root.Rows || cols > p.Root.Cols {
		return nil, math.NaN(), errors.Annotatef(ErrDimensionMismatch, "model %dx%d, test %dx%d", p.Root.Rows, p.Root.Cols, rows, cols)
	}
	triples := test.Triples()
	cells := make([]Prediction, len(triples))
	err := parallel.For(ctx, len(triples), jobs, func(n int) {
		t, c := triples[n], &cells[n]
		c.Row, c.Col, c.Value = t.Row, t.Col, t.Value
		for sample := range p.latents {
			c.Pred1Sample = p.predict(sample, t.Row, t.Col)
			c.add(c.Pred1Sample, false)
		}
	})
	if err != nil {
		return nil, math.NaN(), errors.Trace(err)
	}
	rmse := RMSE(lo.Map(cells, func(c Prediction, _ int) float64 { return c.PredAvg }),
		lo.Map(cells, func(c Prediction, _ int) float64 { return c.Value }))
	return cells, rmse, nil
}

func readDDM(store blob.Store, name string) (*dataset.DenseMatrix, error) {
	r, err := store.Open(name)
	if err != nil {
		return nil, errors.Annotatef(err, "open %s", name)
	}
	defer r.Close()
	m, err := dataset.ReadDDM(r)
	if err != nil {
		return nil, errors.Annotatef(err, "read %s", name)
	}
	return m, nil
}
