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

	"github.com/gorse-io/smurff/base"
	"github.com/juju/errors"
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmat"
)

// ErrNumerical is returned when a matrix that must be positive definite is not.
var ErrNumerical = errors.New("numerical failure")

func upper(chol *mat.Cholesky) blas64.Triangular {
	return chol.RawU().(mat.RawTriangular).RawTriangular()
}

// sampleFromPrecision draws x ~ N(P⁻¹r, P⁻¹). P is factorized as UᵀU, then
// x = U⁻¹(U⁻ᵀr + z) with z standard normal.
func sampleFromPrecision(p *mat.SymDense, r []float64, rng base.RandomGenerator) ([]float64, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(p); !ok {
		return nil, errors.Annotate(ErrNumerical, "precision matrix is not positive definite")
	}
	u := upper(&chol)
	x := make([]float64, len(r))
	copy(x, r)
	vec := blas64.Vector{N: len(x), Data: x, Inc: 1}
	blas64.Trsv(blas.Trans, u, vec)
	for i := range x {
		x[i] += rng.NormFloat64()
	}
	blas64.Trsv(blas.NoTrans, u, vec)
	return x, nil
}

// sampleZeroMean draws n columns from N(0, Λ⁻¹) given the Cholesky factor of Λ.
// The result is K×n.
func sampleZeroMean(lambdaChol *mat.Cholesky, n int, rng base.RandomGenerator) *mat.Dense {
	k := lambdaChol.SymmetricDim()
	z := mat.NewDense(k, n, rng.NormalVector64(k*n, 0, 1))
	raw := z.RawMatrix()
	blas64.Trsm(blas.Left, blas.NoTrans, 1, upper(lambdaChol), blas64.General{
		Rows: raw.Rows, Cols: raw.Cols, Data: raw.Data, Stride: raw.Stride,
	})
	return z
}

// normalWishart is the Normal–Wishart hyper-prior of a latent mode.
type normalWishart struct {
	k   int
	mu0 []float64
	b0  float64
	df  float64
	wi  *mat.SymDense // inverse of the scale matrix
}

func newNormalWishart(k int) normalWishart {
	wi := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		wi.SetSym(i, i, 1)
	}
	return normalWishart{k: k, mu0: make([]float64, k), b0: 2, df: float64(k), wi: wi}
}

// sample draws (mu, Λ) from the Normal–Wishart posterior given the rows of u. extraWI and
// extraDF are added to the inverse scale and the degrees of freedom.
func (nw normalWishart) sample(u mat.Matrix, extraWI *mat.SymDense, extraDF float64, rng base.RandomGenerator) ([]float64, *mat.SymDense, *mat.Cholesky, error) {
	n, k := u.Dims()
	nf := float64(n)
	// mean of rows
	ubar := make([]float64, k)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			ubar[j] += u.At(i, j)
		}
	}
	if n > 0 {
		floats.Scale(1/nf, ubar)
	}
	// scatter around the mean
	centered := mat.NewDense(max(n, 1), k, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < k; j++ {
			centered.Set(i, j, u.At(i, j)-ubar[j])
		}
	}
	wiPost := mat.NewSymDense(k, nil)
	wiPost.SymOuterK(1, centered.T())
	wiPost.AddSym(wiPost, nw.wi)
	if extraWI != nil {
		wiPost.AddSym(wiPost, extraWI)
	}
	diff := make([]float64, k)
	floats.SubTo(diff, ubar, nw.mu0)
	wiPost.SymRankOne(wiPost, nw.b0*nf/(nw.b0+nf), mat.NewVecDense(k, diff))

	bPost := nw.b0 + nf
	dfPost := nw.df + nf + extraDF
	muPost := make([]float64, k)
	floats.AddScaledTo(muPost, floats.ScaleTo(make([]float64, k), nw.b0/bPost, nw.mu0), nf/bPost, ubar)

	// scale matrix of the Wishart is the inverse of wiPost
	var wiChol mat.Cholesky
	if ok := wiChol.Factorize(wiPost); !ok {
		return nil, nil, nil, errors.Annotate(ErrNumerical, "Normal-Wishart inverse scale is not positive definite")
	}
	var scale mat.SymDense
	if err := wiChol.InverseTo(&scale); err != nil && !isCondition(err) {
		return nil, nil, nil, errors.Annotate(ErrNumerical, err.Error())
	}
	wishart, ok := distmat.NewWishart(&scale, dfPost, rng.Source())
	if !ok {
		return nil, nil, nil, errors.Annotate(ErrNumerical, "Wishart scale is not positive definite")
	}
	lambdaChol := new(mat.Cholesky)
	wishart.RandCholTo(lambdaChol)
	lambda := mat.NewSymDense(k, nil)
	lambdaChol.ToSym(lambda)

	// mu ~ N(muPost, (bPost Λ)⁻¹)
	z := rng.NormalVector64(k, 0, 1/math.Sqrt(bPost))
	blas64.Trsv(blas.NoTrans, upper(lambdaChol), blas64.Vector{N: k, Data: z, Inc: 1})
	floats.Add(z, muPost)
	return z, lambda, lambdaChol, nil
}

func isCondition(err error) bool {
	var cond mat.Condition
	return errors.As(err, &cond)
}
