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

	"github.com/gorse-io/smurff/base"
	"github.com/gorse-io/smurff/dataset"
	"gonum.org/v1/gonum/mat"
)

// Hyper-priors of the spike-and-slab prior.
const (
	slabPriorBeta   = 1.0 // for r
	slabPriorAlpha0 = 1.0 // for alpha
	slabPriorBeta0  = 1.0 // for alpha
	slabAlphaJitter = 1e-7
)

// SpikeAndSlabPrior lets every latent coordinate be exactly zero. Coordinate k is kept with
// probability r_k and then has precision alpha_k.
type SpikeAndSlabPrior struct {
	mode     *Mode
	alpha    []float64
	r        []float64
	zkeep    []float64
	logAlpha []float64
	logR     []float64
	sampled  bool
}

func (p *SpikeAndSlabPrior) Name() string { return PriorSpikeAndSlab }

func (p *SpikeAndSlabPrior) Init(m *Mode, _ base.RandomGenerator) error {
	p.mode = m
	p.alpha = make([]float64, m.K)
	p.r = make([]float64, m.K)
	p.zkeep = make([]float64, m.K)
	for k := 0; k < m.K; k++ {
		p.alpha[k] = 1
		p.r[k] = 0.5
		p.zkeep[k] = float64(m.N())
	}
	p.updateLogs()
	return nil
}

func (p *SpikeAndSlabPrior) updateLogs() {
	p.logAlpha = make([]float64, len(p.alpha))
	p.logR = make([]float64, len(p.r))
	for k := range p.alpha {
		p.logAlpha[k] = math.Log(p.alpha[k])
		p.logR[k] = -math.Log(p.r[k]) + math.Log(1-p.r[k])
	}
}

// UpdatePrior samples alpha and r from the coordinates kept in the last sweep. Before the
// first sweep the initial values are kept.
func (p *SpikeAndSlabPrior) UpdatePrior(rng base.RandomGenerator) error {
	if !p.sampled {
		p.sampled = true
		return nil
	}
	n := p.mode.N()
	w2 := make([]float64, p.mode.K)
	for k := range p.zkeep {
		p.zkeep[k] = 0
	}
	for i := 0; i < n; i++ {
		for k, u := range p.mode.U.RawRowView(i) {
			if u != 0 {
				p.zkeep[k]++
				w2[k] += u * u
			}
		}
	}
	nf := float64(n)
	for k := range p.r {
		p.r[k] = (p.zkeep[k] + slabPriorBeta) / (nf + slabPriorBeta*nf)
		shape := p.zkeep[k]/2 + slabPriorAlpha0
		rate := w2[k]/2 + slabPriorBeta0
		p.alpha[k] = rng.Gamma(shape, rate) + slabAlphaJitter
	}
	p.updateLogs()
	return nil
}

func (p *SpikeAndSlabPrior) SampleLatent(n int, rng base.RandomGenerator) error {
	k := p.mode.K
	prec := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		prec.SetSym(i, i, p.alpha[i])
	}
	r := make([]float64, k)
	p.mode.gram(n, prec, r)
	u := p.mode.U.RawRowView(n)
	for i := range u {
		mu, lambda := sampleCoordinate(u, i, prec, r, rng)
		z1 := p.logR[i] - 0.5*(lambda*mu*mu-math.Log(lambda)+p.logAlpha[i])
		z := 1 / (1 + math.Exp(z1))
		if p.zkeep[i] <= 0 || rng.Float64() >= z {
			u[i] = 0
		}
	}
	return nil
}

// Active returns the number of coordinates kept by at least one entity.
func (p *SpikeAndSlabPrior) Active() int {
	active := 0
	for _, z := range p.zkeep {
		if z > 0 {
			active++
		}
	}
	return active
}

func (p *SpikeAndSlabPrior) Status() string {
	return fmt.Sprintf("%s: Z = %d/%d", PriorSpikeAndSlab, p.Active(), p.mode.K)
}

func (p *SpikeAndSlabPrior) State() map[string]*dataset.DenseMatrix {
	return map[string]*dataset.DenseMatrix{
		"alpha": vectorMatrix(p.alpha),
		"r":     vectorMatrix(p.r),
	}
}
