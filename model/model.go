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

package model

import (
	"github.com/gorse-io/smurff/base"
)

// BaseModel is embedded by samplers. Hyper-parameters and the random generator are
// managed by the BaseModel.
type BaseModel struct {
	Params    Params               // Hyper-parameters
	rng       base.RandomGenerator // Random generator
	randState int64                // Random seed
	seeded    bool
}

// SetParams sets hyper-parameters. The random generator is seeded by random_seed when it is
// set and by the clock otherwise.
func (model *BaseModel) SetParams(params Params) {
	model.Params = params
	model.seeded = params.Has(RandomSeed)
	if model.seeded {
		model.randState = params.GetInt64(RandomSeed, 0)
		model.rng = base.NewRandomGenerator(model.randState)
	} else {
		model.rng = base.NewClockRandomGenerator()
	}
}

func (model *BaseModel) GetRandomGenerator() base.RandomGenerator {
	return model.rng
}

// GetRandomState returns the seed and whether it was set explicitly.
func (model *BaseModel) GetRandomState() (int64, bool) {
	return model.randState, model.seeded
}
