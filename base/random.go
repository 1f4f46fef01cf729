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

package base

import (
	"math/rand/v2"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

// RandomGenerator is the random generator for smurff.
type RandomGenerator struct {
	*rand.Rand
}

// NewRandomGenerator creates a RandomGenerator.
func NewRandomGenerator(seed int64) RandomGenerator {
	return RandomGenerator{rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15))}
}

// NewClockRandomGenerator creates a RandomGenerator seeded by the wall clock.
func NewClockRandomGenerator() RandomGenerator {
	return NewRandomGenerator(time.Now().UnixNano())
}

// Spawn derives an independent generator. Spawning the same number of generators from
// generators in the same state yields identical streams.
func (rng RandomGenerator) Spawn() RandomGenerator {
	return RandomGenerator{rand.New(rand.NewPCG(rng.Uint64(), rng.Uint64()))}
}

// Source returns the generator as a source for gonum distributions.
func (rng RandomGenerator) Source() rand.Source {
	return rng.Rand
}

// NormalVector64 makes a vec filled with normal random floats.
func (rng RandomGenerator) NormalVector64(size int, mean, stdDev float64) []float64 {
	ret := make([]float64, size)
	for i := 0; i < len(ret); i++ {
		ret[i] = rng.NormFloat64()*stdDev + mean
	}
	return ret
}

// Gamma draws from a gamma distribution with the given shape and rate.
func (rng RandomGenerator) Gamma(shape, rate float64) float64 {
	return distuv.Gamma{Alpha: shape, Beta: rate, Src: rng.Rand}.Rand()
}
