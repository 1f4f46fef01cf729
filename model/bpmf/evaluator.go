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
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// RMSE returns the root mean squared error between predictions and targets.
func RMSE(predictions, targets []float64) float64 {
	if len(targets) == 0 {
		return math.NaN()
	}
	temp := make([]float64, len(targets))
	floats.SubTo(temp, predictions, targets)
	floats.Mul(temp, temp)
	return math.Sqrt(stat.Mean(temp, nil))
}

// AUC returns the probability that a positive target (above threshold) is predicted higher than
// a negative one. It returns NaN if either class is empty.
func AUC(predictions, targets []float64, threshold float64) float64 {
	var posPrediction, negPrediction []float64
	for i, target := range targets {
		if target > threshold {
			posPrediction = append(posPrediction, predictions[i])
		} else {
			negPrediction = append(negPrediction, predictions[i])
		}
	}
	if len(posPrediction)*len(negPrediction) == 0 {
		return math.NaN()
	}
	sort.Float64s(posPrediction)
	sort.Float64s(negPrediction)
	var sum float64
	var nPos int
	for pPos := range posPrediction {
		// find the negative sample with the greatest prediction less than current positive sample
		for nPos < len(negPrediction) && negPrediction[nPos] < posPrediction[pPos] {
			nPos++
		}
		// add the number of negative samples have less prediction than current positive sample
		sum += float64(nPos)
	}
	return sum / float64(len(posPrediction)*len(negPrediction))
}
