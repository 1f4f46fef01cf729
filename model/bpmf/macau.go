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

// Hyper-prior of the link precision.
const (
	lambdaBetaMu0 = 1.0
	lambdaBetaNu0 = 1e-3
)

// MacauPrior is a normal prior whose mean depends on side features: u_n ~ N(mu + beta f_n, Λ⁻¹).
// The link matrix beta is K×D with a N(0, (λβ Λ)⁻¹) prior on each column.
type MacauPrior struct {
	NormalPrior
	side       SideInfo   // N×D
	beta       *mat.Dense // K×D
	uhat       *mat.Dense // N×K, rows are beta f_n
	lambdaBeta float64
}

func NewMacauPrior(side SideInfo, lambdaBeta float64) *MacauPrior {
	return &MacauPrior{side: side, lambdaBeta: lambdaBeta}
}

func (p *MacauPrior) Name() string { return PriorMacau }

func (p *MacauPrior) Init(m *Mode, rng base.RandomGenerator) error {
	if err := p.NormalPrior.Init(m, rng); err != nil {
		return err
	}
	n, d := p.side.Dims()
	if n != m.N() {
		return errors.NotValidf("side information has %d rows but mode %d has %d entities", n, m.Index, m.N())
	}
	if d == 0 {
		return errors.NotValidf("side information without features")
	}
	p.beta = mat.NewDense(m.K, d, nil)
	p.uhat = mat.NewDense(n, m.K, nil)
	return nil
}

func (p *MacauPrior) UpdatePrior(rng base.RandomGenerator) error {
	k := p.mode.K
	_, d := p.side.Dims()
	// Normal–Wishart on the residual U − Uhat
	var resid mat.Dense
	resid.Sub(p.mode.U, p.uhat)
	bbt := mat.NewSymDense(k, nil)
	bbt.SymOuterK(p.lambdaBeta, p.beta)
	mu, lambda, lambdaChol, err := p.hyper.sample(&resid, bbt, float64(d), rng)
	if err != nil {
		return errors.Annotatef(err, "update macau prior of mode %d", p.mode.Index)
	}
	p.setHyper(mu, lambda)
	if err = p.sampleBeta(lambdaChol, rng); err != nil {
		return errors.Annotatef(err, "sample link matrix of mode %d", p.mode.Index)
	}
	p.side.mulBetaT(p.uhat, p.beta)
	p.lambdaBeta = p.sampleLambdaBeta(rng)
	return nil
}

// sampleBeta solves (FᵀF + λβ I) βᵀ = Ft_yᵀ with
// Ft_y = (Uᵀ + N(0, Λ⁻¹) − mu) F + sqrt(λβ) N(0, Λ⁻¹).
func (p *MacauPrior) sampleBeta(lambdaChol *mat.Cholesky, rng base.RandomGenerator) error {
	n, d := p.side.Dims()
	y := sampleZeroMean(lambdaChol, n, rng) // K×N
	y.Add(y, p.mode.U.T())
	k := p.mode.K
	for i := 0; i < k; i++ {
		row := y.RawRowView(i)
		floats.AddConst(-p.mu[i], row)
	}
	fty := p.side.leftMul(y) // K×D
	prior := sampleZeroMean(lambdaChol, d, rng)
	fty.Add(fty, scaled(math.Sqrt(p.lambdaBeta), prior))
	betaT, err := p.side.solve(fty, p.lambdaBeta)
	if err != nil {
		return errors.Trace(err)
	}
	p.beta.Copy(betaT.T())
	return nil
}

func scaled(f float64, m *mat.Dense) *mat.Dense {
	m.Scale(f, m)
	return m
}

// sampleLambdaBeta draws λβ ~ Gamma(nux/2, scale 2 mux/nux).
func (p *MacauPrior) sampleLambdaBeta(rng base.RandomGenerator) float64 {
	k, d := p.beta.Dims()
	nux := lambdaBetaNu0 + float64(k*d)
	var lb mat.Dense
	lb.Mul(p.lambda, p.beta)
	trace := 0.0
	for i := 0; i < k; i++ {
		trace += floats.Dot(p.beta.RawRowView(i), lb.RawRowView(i))
	}
	mux := lambdaBetaMu0 * nux / (lambdaBetaNu0 + lambdaBetaMu0*trace)
	shape := nux / 2
	scale := 2 * mux / nux
	return rng.Gamma(shape, 1/scale)
}

func (p *MacauPrior) SampleLatent(n int, rng base.RandomGenerator) error {
	k := p.mode.K
	mean := make([]float64, k)
	floats.AddTo(mean, p.mu, p.uhat.RawRowView(n))
	lambdaMu := make([]float64, k)
	mat.NewVecDense(k, lambdaMu).MulVec(p.lambda, mat.NewVecDense(k, mean))
	prec, r := p.conditional(n, lambdaMu)
	u, err := sampleFromPrecision(prec, r, rng)
	if err != nil {
		return errors.Annotatef(err, "sample latent %d of mode %d", n, p.mode.Index)
	}
	p.mode.U.SetRow(n, u)
	return nil
}

// LinkNorm returns the Frobenius norm of the link matrix.
func (p *MacauPrior) LinkNorm() float64 {
	return mat.Norm(p.beta, 2)
}

func (p *MacauPrior) LambdaBeta() float64 {
	return p.lambdaBeta
}

func (p *MacauPrior) Status() string {
	return fmt.Sprintf("%s: |beta| = %.4g, lambda_beta = %.4g", PriorMacau, p.LinkNorm(), p.lambdaBeta)
}

func (p *MacauPrior) State() map[string]*dataset.DenseMatrix {
	state := p.NormalPrior.State()
	state["link"] = denseMatrix(p.beta)
	state["lambda_beta"] = vectorMatrix([]float64{p.lambdaBeta})
	return state
}
