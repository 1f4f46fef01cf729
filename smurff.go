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

// Package smurff factorizes sparse matrices with Bayesian probabilistic matrix factorization.
package smurff

import (
	"context"

	"github.com/gorse-io/smurff/dataset"
	"github.com/gorse-io/smurff/model"
	"github.com/gorse-io/smurff/model/bpmf"
	"github.com/gorse-io/smurff/storage/blob"
	"github.com/juju/errors"
)

var (
	ErrEmptyTrain        = bpmf.ErrEmptyTrain
	ErrInvalidParam      = bpmf.ErrInvalidParam
	ErrDimensionMismatch = bpmf.ErrDimensionMismatch
	ErrInvalidPrior      = bpmf.ErrInvalidPrior
	ErrNumerical         = bpmf.ErrNumerical
)

type (
	Option     = bpmf.Option
	Result     = bpmf.Result
	Prediction = bpmf.Prediction
	Status     = bpmf.Status
)

// Side is the prior of a mode and its side information. The macau prior requires either dense
// Features or SparseFeatures with one row per entity.
type Side struct {
	Prior          string
	Features       *dataset.DenseMatrix
	SparseFeatures *dataset.SparseMatrix
}

// SideInfo returns nil without features.
func (s Side) SideInfo(params model.Params) (bpmf.SideInfo, error) {
	switch {
	case s.Features != nil && s.SparseFeatures != nil:
		return nil, errors.NotValidf("both dense and sparse side information")
	case s.Features != nil:
		return bpmf.DenseSideInfo(s.Features), nil
	case s.SparseFeatures != nil:
		return bpmf.SparseSideInfo(s.SparseFeatures, params.GetFloat64(model.Tol, model.DefaultTol)), nil
	}
	return nil, nil
}

func WithStore(store blob.Store) Option { return bpmf.WithStore(store) }

func WithJobs(jobs int) Option { return bpmf.WithJobs(jobs) }

func WithCallback(fn func(Status)) Option { return bpmf.WithCallback(fn) }

// Smurff factorizes train and predicts the cells of test. Sides give the priors of rows and
// columns; none means normal priors for both.
//
// For example, a short run with the default normal priors:
//
//	result, err := smurff.Smurff(ctx, train, test, nil, model.Params{
//		model.NumLatent: 1,
//		model.Burnin:    1,
//		model.NSamples:  5,
//	})
func Smurff(ctx context.Context, train, test *dataset.SparseMatrix, side []Side, params model.Params, opts ...Option) (*Result, error) {
	priors, err := NewPriors(side, params)
	if err != nil {
		return nil, errors.Trace(err)
	}
	session, err := bpmf.NewSession(train, test, priors, params, opts...)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return session.Run(ctx)
}

// NewPriors creates the priors of rows and columns.
func NewPriors(side []Side, params model.Params) ([2]bpmf.Prior, error) {
	var priors [2]bpmf.Prior
	switch len(side) {
	case 0:
		side = []Side{{Prior: bpmf.PriorNormal}, {Prior: bpmf.PriorNormal}}
	case 2:
	default:
		return priors, errors.Annotatef(ErrInvalidPrior, "%d sides for 2 modes", len(side))
	}
	for i, s := range side {
		info, err := s.SideInfo(params)
		if err != nil {
			return priors, errors.Annotatef(ErrInvalidPrior, "mode %d: %v", i, err)
		}
		prior, err := bpmf.NewPrior(s.Prior, info, params)
		if err != nil {
			return priors, errors.Annotatef(ErrInvalidPrior, "mode %d: %v", i, err)
		}
		priors[i] = prior
	}
	return priors, nil
}
