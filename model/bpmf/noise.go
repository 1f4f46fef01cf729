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
	"github.com/gorse-io/smurff/model"
	"github.com/juju/errors"
)

// Noise models the observation precision.
type Noise interface {
	Name() string
	// Init is called once with the centered training values.
	Init(variance float64)
	// Update is called after each iteration with the sum of squared training residuals.
	Update(sumsq float64, nnz int, rng base.RandomGenerator)
	Precision() float64
	Status() string
}

func NewNoise(params model.Params) (Noise, error) {
	switch name := params.GetString(model.Noise, model.NoiseFixed); name {
	case model.NoiseFixed:
		precision := params.GetFloat64(model.Precision, model.DefaultPrecision)
		if precision <= 0 {
			return nil, errors.NotValidf("noise precision %v", precision)
		}
		return &FixedNoise{precision: precision}, nil
	case model.NoiseAdaptive:
		snInit := params.GetFloat64(model.SnInit, model.DefaultSnInit)
		snMax := params.GetFloat64(model.SnMax, model.DefaultSnMax)
		if snInit <= 0 || snMax < snInit {
			return nil, errors.NotValidf("adaptive noise sn_init %v sn_max %v", snInit, snMax)
		}
		return &AdaptiveNoise{snInit: snInit, snMax: snMax}, nil
	default:
		return nil, errors.NotSupportedf("noise %q", name)
	}
}

// FixedNoise has a constant precision.
type FixedNoise struct {
	precision float64
}

func (n *FixedNoise) Name() string { return model.NoiseFixed }

func (n *FixedNoise) Init(float64) {}

func (n *FixedNoise) Update(float64, int, base.RandomGenerator) {}

func (n *FixedNoise) Precision() float64 { return n.precision }

func (n *FixedNoise) Status() string {
	return fmt.Sprintf("fixed: %.4g", n.precision)
}

// AdaptiveNoise samples the precision from its Gamma posterior, bounded by sn_max / var.
type AdaptiveNoise struct {
	snInit   float64
	snMax    float64
	varTotal float64
	alpha    float64
	alphaMax float64
}

func (n *AdaptiveNoise) Name() string { return model.NoiseAdaptive }

func (n *AdaptiveNoise) Init(variance float64) {
	n.varTotal = variance
	if n.varTotal <= 0 || math.IsNaN(n.varTotal) {
		n.varTotal = 1
	}
	n.alpha = n.snInit / n.varTotal
	n.alphaMax = n.snMax / n.varTotal
}

func (n *AdaptiveNoise) Update(sumsq float64, nnz int, rng base.RandomGenerator) {
	shape := 0.5 + 0.5*float64(nnz)
	rate := 0.5*n.varTotal + 0.5*sumsq
	n.alpha = min(rng.Gamma(shape, rate), n.alphaMax)
}

func (n *AdaptiveNoise) Precision() float64 { return n.alpha }

func (n *AdaptiveNoise) Status() string {
	return fmt.Sprintf("adaptive: %.4g (max %.4g)", n.alpha, n.alphaMax)
}
