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
	"github.com/juju/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// NormalPrior is the BPMF prior: u_n ~ N(mu, Λ⁻¹) with a Normal–Wishart hyper-prior on (mu, Λ).
type NormalPrior struct {
	mode   *Mode
	hyper  normalWishart
	mu     []float64
	lambda *mat.SymDense
	// lambdaMu caches Λ mu between hyper-parameter updates.
	lambdaMu []float64
}

func (p *NormalPrior) Name() string { return PriorNormal }

func (p *NormalPrior) Init(m *Mode, _ base.RandomGenerator) error {
	p.mode = m
	p.hyper = newNormalWishart(m.K)
	p.mu = make([]float64, m.K)
	p.lambda = mat.NewSymDense(m.K, nil)
	for k := 0; k < m.K; k++ {
		p.lambda.SetSym(k, k, 10)
	}
	p.lambdaMu = make([]float64, m.K)
	return nil
}

func (p *NormalPrior) UpdatePrior(rng base.RandomGenerator) error {
	mu, lambda, _, err := p.hyper.sample(p.mode.U, nil, 0, rng)
	if err != nil {
		return errors.Annotatef(err, "update normal prior of mode %d", p.mode.Index)
	}
	p.setHyper(mu, lambda)
	return nil
}

func (p *NormalPrior) setHyper(mu []float64, lambda *mat.SymDense) {
	p.mu, p.lambda = mu, lambda
	mat.NewVecDense(len(p.lambdaMu), p.lambdaMu).MulVec(lambda, mat.NewVecDense(len(mu), mu))
}

// conditional returns the precision and the precision-weighted mean of the full conditional
// of entity n, given the prior mean lambdaMu.
func (p *NormalPrior) conditional(n int, lambdaMu []float64) (*mat.SymDense, []float64) {
	prec := mat.NewSymDense(p.mode.K, nil)
	prec.CopySym(p.lambda)
	r := make([]float64, p.mode.K)
	copy(r, lambdaMu)
	p.mode.gram(n, prec, r)
	return prec, r
}

func (p *NormalPrior) SampleLatent(n int, rng base.RandomGenerator) error {
	prec, r := p.conditional(n, p.lambdaMu)
	u, err := sampleFromPrecision(prec, r, rng)
	if err != nil {
		return errors.Annotatef(err, "sample latent %d of mode %d", n, p.mode.Index)
	}
	p.mode.U.SetRow(n, u)
	return nil
}

func (p *NormalPrior) Status() string {
	return fmt.Sprintf("%s: |mu| = %.4g", PriorNormal, floats.Norm(p.mu, 2))
}

func (p *NormalPrior) State() map[string]*dataset.DenseMatrix {
	return map[string]*dataset.DenseMatrix{
		"mu":     vectorMatrix(p.mu),
		"Lambda": symMatrix(p.lambda),
	}
}

// NormalOnePrior shares the hyper-prior of NormalPrior but samples each latent coordinate
// from its univariate conditional.
type NormalOnePrior struct {
	NormalPrior
}

func (p *NormalOnePrior) Name() string { return PriorNormalOne }

func (p *NormalOnePrior) SampleLatent(n int, rng base.RandomGenerator) error {
	prec, r := p.conditional(n, p.lambdaMu)
	u := p.mode.U.RawRowView(n)
	for k := range u {
		sampleCoordinate(u, k, prec, r, rng)
	}
	return nil
}

func (p *NormalOnePrior) Status() string {
	return fmt.Sprintf("%s: |mu| = %.4g", PriorNormalOne, floats.Norm(p.mu, 2))
}

// sampleCoordinate draws u_k from its conditional given the other coordinates and returns
// the conditional mean and precision.
func sampleCoordinate(u []float64, k int, prec mat.Symmetric, r []float64, rng base.RandomGenerator) (float64, float64) {
	lambda := prec.At(k, k)
	dot := 0.0
	for j := range u {
		if j != k {
			dot += prec.At(k, j) * u[j]
		}
	}
	mu := (r[k] - dot) / lambda
	u[k] = mu + rng.NormFloat64()/math.Sqrt(lambda)
	return mu, lambda
}
