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
	"encoding/json"
	"reflect"

	"github.com/gorse-io/smurff/base/log"
	"go.uber.org/zap"
)

// ParamName is the type of hyper-parameter names.
type ParamName string

// Predefined hyper-parameter names
const (
	NumLatent   ParamName = "num_latent"    // latent dimensionality
	Burnin      ParamName = "burnin"        // number of discarded iterations
	NSamples    ParamName = "nsamples"      // number of collected samples
	RandomSeed  ParamName = "random_seed"   // random seed
	Noise       ParamName = "noise"         // noise model: fixed or adaptive
	Precision   ParamName = "precision"     // precision of fixed noise
	SnInit      ParamName = "sn_init"       // initial signal-to-noise of adaptive noise
	SnMax       ParamName = "sn_max"        // maximum signal-to-noise of adaptive noise
	Center      ParamName = "center"        // centering: global or none
	InitModel   ParamName = "init_model"    // latent initialization: random or zero
	LambdaBeta  ParamName = "lambda_beta"   // initial link precision of side information
	Tol         ParamName = "tol"           // relative residual of conjugate gradient on sparse side information
	Threshold   ParamName = "threshold"     // binarization threshold for AUC
	SaveFreq    ParamName = "save_freq"     // save every n-th sample, -1 for the last one
	SavePrefix  ParamName = "save_prefix"   // prefix of saved files
	KeepPredAll ParamName = "keep_pred_all" // keep prediction of every sample
	Verbose     ParamName = "verbose"       // verbosity
)

// Noise models
const (
	NoiseFixed    = "fixed"
	NoiseAdaptive = "adaptive"
)

// Centering modes
const (
	CenterGlobal = "global"
	CenterNone   = "none"
)

// Latent initializations
const (
	InitRandom = "random"
	InitZero   = "zero"
)

// Default values of hyper-parameters.
const (
	DefaultNumLatent  = 16
	DefaultBurnin     = 200
	DefaultNSamples   = 800
	DefaultPrecision  = 5.0
	DefaultSnInit     = 1.0
	DefaultSnMax      = 10.0
	DefaultLambdaBeta = 10.0
	DefaultTol        = 1e-6
	DefaultSavePrefix = "sample"
	DefaultVerbose    = 1
)

// Params stores hyper-parameters for a sampler. It is a map between names and values.
// For example, the settings of a short run are given by:
//
//	model.Params{
//		model.NumLatent: 1,
//		model.Burnin:    1,
//		model.NSamples:  5,
//	}
type Params map[ParamName]interface{}

// Copy hyper-parameters.
func (parameters Params) Copy() Params {
	newParams := make(Params)
	for k, v := range parameters {
		newParams[k] = v
	}
	return newParams
}

// Has reports whether a parameter is set.
func (parameters Params) Has(name ParamName) bool {
	_, exist := parameters[name]
	return exist
}

// GetInt gets a integer parameter by name. Returns _default if not exists or type doesn't match.
func (parameters Params) GetInt(name ParamName, _default int) int {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int:
			return val
		case int64:
			return int(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)),
				zap.String("expect", "int"),
				zap.Stringer("actual", reflect.TypeOf(val)))
		}
	}
	return _default
}

// GetInt64 gets a int64 parameter by name. Returns _default if not exists or type doesn't match. The
// type will be converted if given int.
func (parameters Params) GetInt64(name ParamName, _default int64) int64 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case int64:
			return val
		case int:
			return int64(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)),
				zap.String("expect", "int64"),
				zap.Stringer("actual", reflect.TypeOf(val)))
		}
	}
	return _default
}

// GetBool gets a bool parameter by name. Returns _default if not exists or type doesn't match.
func (parameters Params) GetBool(name ParamName, _default bool) bool {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case bool:
			return val
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)),
				zap.String("expect", "bool"),
				zap.Stringer("actual", reflect.TypeOf(val)))
		}
	}
	return _default
}

// GetFloat64 gets a float parameter by name. Integers are converted.
func (parameters Params) GetFloat64(name ParamName, _default float64) float64 {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case float64:
			return val
		case float32:
			return float64(val)
		case int:
			return float64(val)
		case int64:
			return float64(val)
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)),
				zap.String("expect", "float64"),
				zap.Stringer("actual", reflect.TypeOf(val)))
		}
	}
	return _default
}

// GetString gets a string parameter. Returns _default if not exists or type doesn't match.
func (parameters Params) GetString(name ParamName, _default string) string {
	if val, exist := parameters[name]; exist {
		switch val := val.(type) {
		case string:
			return val
		default:
			log.Logger().Error("type mismatch",
				zap.String("param", string(name)),
				zap.String("expect", "string"),
				zap.Stringer("actual", reflect.TypeOf(val)))
		}
	}
	return _default
}

func (parameters Params) ToString() string {
	b, err := json.Marshal(parameters)
	if err != nil {
		log.Logger().Error("failed to marshal params", zap.Error(err))
		return "{}"
	}
	return string(b)
}
