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
	"github.com/gorse-io/smurff/base"
	"github.com/gorse-io/smurff/dataset"
	"github.com/gorse-io/smurff/model"
	"github.com/juju/errors"
	"gonum.org/v1/gonum/mat"
)

// Prior names
const (
	PriorNormal       = "normal"
	PriorNormalOne    = "normalone"
	PriorMacau        = "macau"
	PriorSpikeAndSlab = "spikeandslab"
)

// Mode is the part of the model a prior samples: the latents of its own entities, the
// latents of the other mode and the observations of its entities.
type Mode struct {
	Index int
	K     int
	U     *mat.Dense // N×K latents of this mode
	V     *mat.Dense // latents of the other mode
	Data  *dataset.SparseMode
	Noise Noise
}

// N returns the number of entities in the mode.
func (m *Mode) N() int {
	n, _ := m.U.Dims()
	return n
}

// gram accumulates P += α Σ v vᵀ and r += α Σ y v over the observations of entity n.
func (m *Mode) gram(n int, p *mat.SymDense, r []float64) {
	if !m.Data.Observed(n) {
		return
	}
	alpha := m.Noise.Precision()
	index, values := m.Data.Row(n)
	for i, j := range index {
		v := m.V.RawRowView(j)
		p.SymRankOne(p, alpha, mat.NewVecDense(m.K, v))
		for k := range r {
			r[k] += alpha * values[i] * v[k]
		}
	}
}

// Prior is the prior distribution of the latents of one mode.
type Prior interface {
	Name() string
	Init(m *Mode, rng base.RandomGenerator) error
	// UpdatePrior samples hyper-parameters given the current latents.
	UpdatePrior(rng base.RandomGenerator) error
	// SampleLatent samples the latent vector of entity n. Calls for different entities may run
	// concurrently.
	SampleLatent(n int, rng base.RandomGenerator) error
	Status() string
	// State returns the hyper-parameters to persist with a sample.
	State() map[string]*dataset.DenseMatrix
}

// NewPrior creates a prior by name. Side information is required by macau and rejected by others.
func NewPrior(name string, side SideInfo, params model.Params) (Prior, error) {
	if name != PriorMacau && side != nil {
		return nil, errors.NotValidf("side information for %s prior", name)
	}
	switch name {
	case PriorNormal, "":
		return &NormalPrior{}, nil
	case PriorNormalOne:
		return &NormalOnePrior{}, nil
	case PriorMacau:
		if side == nil {
			return nil, errors.NotValidf("macau prior without side information")
		}
		return NewMacauPrior(side, params.GetFloat64(model.LambdaBeta, model.DefaultLambdaBeta)), nil
	case PriorSpikeAndSlab:
		return &SpikeAndSlabPrior{}, nil
	default:
		return nil, errors.NotSupportedf("prior %q", name)
	}
}

func vectorMatrix(v []float64) *dataset.DenseMatrix {
	m := dataset.NewDenseMatrix(len(v), 1)
	for i, x := range v {
		m.Set(i, 0, x)
	}
	return m
}

func symMatrix(s mat.Symmetric) *dataset.DenseMatrix {
	n := s.SymmetricDim()
	m := dataset.NewDenseMatrix(n, n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			m.Set(i, j, s.At(i, j))
		}
	}
	return m
}

func denseMatrix(d mat.Matrix) *dataset.DenseMatrix {
	r, c := d.Dims()
	m := dataset.NewDenseMatrix(r, c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			m.Set(i, j, d.At(i, j))
		}
	}
	return m
}
