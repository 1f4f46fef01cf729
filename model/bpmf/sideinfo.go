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

	"github.com/gorse-io/smurff/base/log"
	"github.com/gorse-io/smurff/dataset"
	"github.com/gorse-io/smurff/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const maxCGIterate = 1000

// SideInfo is the N×D feature matrix F of a macau prior.
type SideInfo interface {
	Dims() (int, int)
	// mulBetaT sets dst (N×K) to F βᵀ.
	mulBetaT(dst, beta *mat.Dense)
	// leftMul returns y F for a K×N matrix y.
	leftMul(y *mat.Dense) *mat.Dense
	// solve returns the D×K solution X of (FᵀF + λI) X = rhsᵀ.
	solve(rhs *mat.Dense, lambda float64) (*mat.Dense, error)
}

// DenseSideInfo keeps F dense and solves with a Cholesky factorization of FᵀF + λI.
func DenseSideInfo(features *dataset.DenseMatrix) SideInfo {
	return &denseSide{features: features.Mat()}
}

type denseSide struct {
	features *mat.Dense
	ftf      *mat.SymDense
}

func (s *denseSide) Dims() (int, int) { return s.features.Dims() }

func (s *denseSide) mulBetaT(dst, beta *mat.Dense) {
	dst.Mul(s.features, beta.T())
}

func (s *denseSide) leftMul(y *mat.Dense) *mat.Dense {
	var fty mat.Dense
	fty.Mul(y, s.features)
	return &fty
}

func (s *denseSide) solve(rhs *mat.Dense, lambda float64) (*mat.Dense, error) {
	_, d := s.features.Dims()
	if s.ftf == nil {
		s.ftf = mat.NewSymDense(d, nil)
		s.ftf.SymOuterK(1, s.features.T())
	}
	a := mat.NewSymDense(d, nil)
	a.CopySym(s.ftf)
	for i := 0; i < d; i++ {
		a.SetSym(i, i, a.At(i, i)+lambda)
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(a); !ok {
		return nil, errors.Annotate(ErrNumerical, "FᵀF + λβI is not positive definite")
	}
	var x mat.Dense
	if err := chol.SolveTo(&x, rhs.T()); err != nil && !isCondition(err) {
		return nil, errors.Trace(err)
	}
	return &x, nil
}

// SparseSideInfo keeps F sparse and solves with conjugate gradient, never forming FᵀF.
// Each right-hand side stops once its residual norm relative to the norm of the right-hand
// side drops below tol.
func SparseSideInfo(features *dataset.SparseMatrix, tol float64) SideInfo {
	if tol <= 0 {
		tol = model.DefaultTol
	}
	rows, cols := features.Dims()
	return &sparseSide{rows: rows, cols: cols, byRow: features.ByRow(), tol: tol}
}

type sparseSide struct {
	rows, cols int
	byRow      *dataset.SparseMode
	tol        float64
}

func (s *sparseSide) Dims() (int, int) { return s.rows, s.cols }

// mulVec sets dst (N) to F x.
func (s *sparseSide) mulVec(dst, x []float64) {
	for n := range dst {
		index, values := s.byRow.Row(n)
		var sum float64
		for i, d := range index {
			sum += values[i] * x[d]
		}
		dst[n] = sum
	}
}

// mulTransVec sets dst (D) to Fᵀ x.
func (s *sparseSide) mulTransVec(dst, x []float64) {
	for i := range dst {
		dst[i] = 0
	}
	for n, xn := range x {
		index, values := s.byRow.Row(n)
		for i, d := range index {
			dst[d] += values[i] * xn
		}
	}
}

func (s *sparseSide) mulBetaT(dst, beta *mat.Dense) {
	k, _ := beta.Dims()
	for n := 0; n < s.rows; n++ {
		row := dst.RawRowView(n)
		index, values := s.byRow.Row(n)
		for j := 0; j < k; j++ {
			b := beta.RawRowView(j)
			var sum float64
			for i, d := range index {
				sum += values[i] * b[d]
			}
			row[j] = sum
		}
	}
}

func (s *sparseSide) leftMul(y *mat.Dense) *mat.Dense {
	k, _ := y.Dims()
	fty := mat.NewDense(k, s.cols, nil)
	for j := 0; j < k; j++ {
		s.mulTransVec(fty.RawRowView(j), y.RawRowView(j))
	}
	return fty
}

func (s *sparseSide) solve(rhs *mat.Dense, lambda float64) (*mat.Dense, error) {
	k, d := rhs.Dims()
	x := mat.NewDense(d, k, nil)
	tmp := make([]float64, s.rows)
	apply := func(dst, v []float64) {
		s.mulVec(tmp, v)
		s.mulTransVec(dst, tmp)
		floats.AddScaled(dst, lambda, v)
	}
	col := make([]float64, d)
	for j := 0; j < k; j++ {
		_, resid, err := conjugateGradient(col, apply, rhs.RawRowView(j), s.tol, maxCGIterate)
		if err != nil {
			return nil, errors.Annotatef(err, "solve link column %d", j)
		}
		if resid >= s.tol {
			log.Logger().Warn("conjugate gradient did not converge",
				zap.Int("column", j), zap.Float64("residual", resid), zap.Float64("tol", s.tol))
		}
		x.SetCol(j, col)
	}
	return x, nil
}

// conjugateGradient solves A x = b for a symmetric positive definite A given by apply. It
// returns the number of iterations and the final relative residual.
func conjugateGradient(x []float64, apply func(dst, v []float64), b []float64, tol float64, maxIter int) (int, float64, error) {
	for i := range x {
		x[i] = 0
	}
	bNorm := floats.Norm(b, 2)
	if bNorm == 0 {
		return 0, 0, nil
	}
	r := make([]float64, len(b))
	copy(r, b)
	p := make([]float64, len(b))
	copy(p, b)
	ap := make([]float64, len(b))
	rr := floats.Dot(r, r)
	for iter := 1; iter <= maxIter; iter++ {
		apply(ap, p)
		pap := floats.Dot(p, ap)
		if pap <= 0 || math.IsNaN(pap) {
			return iter, math.Sqrt(rr) / bNorm, errors.Annotate(ErrNumerical, "FᵀF + λβI is not positive definite")
		}
		alpha := rr / pap
		floats.AddScaled(x, alpha, p)
		floats.AddScaled(r, -alpha, ap)
		rrNew := floats.Dot(r, r)
		if resid := math.Sqrt(rrNew) / bNorm; resid < tol {
			return iter, resid, nil
		}
		floats.Scale(rrNew/rr, p)
		floats.Add(p, r)
		rr = rrNew
	}
	return maxIter, math.Sqrt(rr) / bNorm, nil
}
