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
	"context"
	"fmt"
	"math"
	"time"

	"github.com/gorse-io/smurff/base"
	"github.com/gorse-io/smurff/base/log"
	"github.com/gorse-io/smurff/base/progress"
	"github.com/gorse-io/smurff/common/parallel"
	"github.com/gorse-io/smurff/dataset"
	"github.com/gorse-io/smurff/model"
	"github.com/gorse-io/smurff/storage/blob"
	"github.com/juju/errors"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrEmptyTrain        = errors.New("empty training matrix")
	ErrInvalidParam      = errors.New("invalid parameter")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrInvalidPrior      = errors.New("invalid prior")
	ErrFinished          = errors.New("session finished")
)

// Option configures a session.
type Option func(s *Session)

// WithStore saves samples to a store.
func WithStore(store blob.Store) Option {
	return func(s *Session) {
		s.store = store
	}
}

// WithJobs sets the number of workers sampling latents. Results are reproducible for a fixed
// seed and a fixed number of jobs.
func WithJobs(jobs int) Option {
	return func(s *Session) {
		s.jobs = max(jobs, 1)
	}
}

// WithCallback calls fn with the status of every iteration.
func WithCallback(fn func(Status)) Option {
	return func(s *Session) {
		s.callback = fn
	}
}

// Session is a Gibbs sampler of a two-mode matrix factorization.
type Session struct {
	model.BaseModel
	train  *dataset.SparseMatrix
	test   *dataset.SparseMatrix
	priors [2]Prior
	modes  [2]*Mode
	noise  Noise
	preds  *predictions
	saver  *saver

	numLatent int
	burnin    int
	nSamples  int
	saveFreq  int
	verbose   int
	center    string
	initModel string
	mean      float64

	jobs     int
	store    blob.Store
	callback func(Status)
	rngs     [2][]base.RandomGenerator

	initialized bool
	step        int
	collected   int
	trace       []Status
	start       time.Time
}

// NewSession validates the inputs and creates a session. Priors are given per mode: rows
// first, then columns.
func NewSession(train, test *dataset.SparseMatrix, priors [2]Prior, params model.Params, opts ...Option) (*Session, error) {
	if train.NNZ() == 0 {
		return nil, errors.Trace(ErrEmptyTrain)
	}
	s := &Session{
		train:     train,
		test:      test,
		priors:    priors,
		numLatent: params.GetInt(model.NumLatent, model.DefaultNumLatent),
		burnin:    params.GetInt(model.Burnin, model.DefaultBurnin),
		nSamples:  params.GetInt(model.NSamples, model.DefaultNSamples),
		saveFreq:  params.GetInt(model.SaveFreq, 0),
		verbose:   params.GetInt(model.Verbose, model.DefaultVerbose),
		center:    params.GetString(model.Center, model.CenterGlobal),
		initModel: params.GetString(model.InitModel, model.InitRandom),
		jobs:      1,
	}
	for _, opt := range opts {
		opt(s)
	}
	switch {
	case s.numLatent <= 0:
		return nil, errors.Annotatef(ErrInvalidParam, "num_latent %d", s.numLatent)
	case s.burnin < 0:
		return nil, errors.Annotatef(ErrInvalidParam, "burnin %d", s.burnin)
	case s.nSamples < 0:
		return nil, errors.Annotatef(ErrInvalidParam, "nsamples %d", s.nSamples)
	case s.burnin+s.nSamples == 0:
		return nil, errors.Annotatef(ErrInvalidParam, "no iterations")
	case s.saveFreq < -1:
		return nil, errors.Annotatef(ErrInvalidParam, "save_freq %d", s.saveFreq)
	case s.saveFreq != 0 && s.store == nil:
		return nil, errors.Annotatef(ErrInvalidParam, "save_freq %d without a store", s.saveFreq)
	case s.center != model.CenterGlobal && s.center != model.CenterNone:
		return nil, errors.Annotatef(ErrInvalidParam, "center %q", s.center)
	case s.initModel != model.InitRandom && s.initModel != model.InitZero:
		return nil, errors.Annotatef(ErrInvalidParam, "init_model %q", s.initModel)
	}
	if test != nil {
		rows, cols := train.Dims()
		testRows, testCols := test.Dims()
		if testRows > rows || testCols > cols {
			return nil, errors.Annotatef(ErrDimensionMismatch, "train %dx%d, test %dx%d", rows, cols, testRows, testCols)
		}
	}
	for i, prior := range priors {
		if prior == nil {
			return nil, errors.Annotatef(ErrInvalidPrior, "no prior for mode %d", i)
		}
	}
	noise, err := NewNoise(params)
	if err != nil {
		return nil, errors.Annotatef(ErrInvalidParam, "%v", err)
	}
	s.noise = noise
	s.SetParams(params)
	return s, nil
}

// Init centers the data and initializes latents, priors and noise. It is called by Step if
// needed.
func (s *Session) Init() error {
	if s.initialized {
		return nil
	}
	if s.center == model.CenterGlobal {
		s.mean = s.train.Mean()
	}
	centered := s.train.Map(func(v float64) float64 { return v - s.mean })
	s.noise.Init(centered.Variance())
	rng := s.GetRandomGenerator()
	rows, cols := s.train.Dims()
	for i, n := range []int{rows, cols} {
		u := mat.NewDense(n, s.numLatent, nil)
		if s.initModel == model.InitRandom {
			for j := 0; j < n; j++ {
				u.SetRow(j, rng.NormalVector64(s.numLatent, 0, 1))
			}
		}
		s.modes[i] = &Mode{Index: i, K: s.numLatent, U: u, Data: centered.Mode(i), Noise: s.noise}
	}
	s.modes[0].V, s.modes[1].V = s.modes[1].U, s.modes[0].U
	// entities without observations are drawn from their prior only
	for i, m := range s.modes {
		unobserved := m.N() - m.Data.NumObserved()
		exportUnobserved(i, unobserved)
		if unobserved > 0 && s.verbose > 0 {
			log.Logger().Warn("entities without observations",
				zap.Int("mode", i),
				zap.Int("unobserved", unobserved),
				zap.Int("total", m.N()))
		}
	}
	for i, prior := range s.priors {
		if err := prior.Init(s.modes[i], rng); err != nil {
			return errors.Annotatef(ErrInvalidPrior, "mode %d: %v", i, err)
		}
		s.rngs[i] = make([]base.RandomGenerator, s.jobs)
		for j := range s.rngs[i] {
			s.rngs[i][j] = rng.Spawn()
		}
	}
	s.preds = newPredictions(s.test, s.Params.GetBool(model.KeepPredAll, false))
	if s.Params.Has(model.Threshold) {
		s.preds.setThreshold(s.Params.GetFloat64(model.Threshold, 0))
	}
	if s.saveFreq != 0 {
		s.saver = newSaver(s.store, s.Params.GetString(model.SavePrefix, model.DefaultSavePrefix), s)
	}
	if s.verbose > 0 {
		seed, seeded := s.GetRandomState()
		low, high := s.train.MinMax()
		log.Logger().Info("init gibbs sampler",
			zap.Int("rows", rows),
			zap.Int("cols", cols),
			zap.Int("train_nnz", s.train.NNZ()),
			zap.Float64("train_min", low),
			zap.Float64("train_max", high),
			zap.Int("test_nnz", s.test.NNZ()),
			zap.Float64("mean", s.mean),
			zap.Strings("priors", []string{s.priors[0].Name(), s.priors[1].Name()}),
			zap.String("noise", s.noise.Name()),
			zap.String("params", s.Params.ToString()),
			zap.Int("jobs", s.jobs),
			zap.Bool("seeded", seeded),
			zap.Int64("seed", seed))
	}
	s.start = time.Now()
	s.initialized = true
	return nil
}

// Step runs one Gibbs iteration: for each mode the hyper-parameters are updated and then all
// latents are sampled, then the noise is updated and test predictions are refreshed.
func (s *Session) Step(ctx context.Context) (Status, error) {
	if err := s.Init(); err != nil {
		return Status{}, errors.Trace(err)
	}
	if s.step >= s.burnin+s.nSamples {
		return Status{}, errors.Trace(ErrFinished)
	}
	start := time.Now()
	for i, prior := range s.priors {
		if err := ctx.Err(); err != nil {
			return Status{}, errors.Trace(err)
		}
		if err := prior.UpdatePrior(s.GetRandomGenerator()); err != nil {
			return Status{}, errors.Trace(err)
		}
		rngs := s.rngs[i]
		err := parallel.Chunks(ctx, s.modes[i].N(), s.jobs, func(chunkId, begin, end int) error {
			for n := begin; n < end; n++ {
				if err := prior.SampleLatent(n, rngs[chunkId]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return Status{}, errors.Trace(err)
		}
	}
	sumsq := s.trainSumSq()
	s.noise.Update(sumsq, s.train.NNZ(), s.GetRandomGenerator())
	s.step++
	collect := s.step > s.burnin
	if collect {
		s.collected++
	}
	s.preds.update(s.Predict, collect)

	status := s.status(sumsq, time.Since(start))
	s.trace = append(s.trace, status)
	s.report(status)
	if collect && s.saver != nil && s.shouldSave() {
		if err := s.saver.save(s.collected, s.step); err != nil {
			return status, errors.Trace(err)
		}
		SavedSamplesTotal.Inc()
	}
	return status, nil
}

func (s *Session) shouldSave() bool {
	if s.saveFreq > 0 {
		return s.collected%s.saveFreq == 0
	}
	return s.collected == s.nSamples
}

// trainSumSq returns the sum of squared residuals over the centered training data.
func (s *Session) trainSumSq() float64 {
	data := s.modes[0].Data
	u0, u1 := s.modes[0].U, s.modes[1].U
	sumsq := 0.0
	for n := 0; n < data.N; n++ {
		index, values := data.Row(n)
		un := u0.RawRowView(n)
		for i, j := range index {
			e := values[i] - floats.Dot(un, u1.RawRowView(j))
			sumsq += e * e
		}
	}
	return sumsq
}

func (s *Session) status(sumsq float64, elapsed time.Duration) Status {
	status := Status{
		Phase:          PhaseSample,
		Iteration:      s.step - s.burnin,
		Step:           s.step,
		TrainRMSE:      math.Sqrt(sumsq / float64(s.train.NNZ())),
		NoisePrecision: s.noise.Precision(),
		Noise:          s.noise.Status(),
		Elapsed:        elapsed,
	}
	if s.step <= s.burnin {
		status.Phase = PhaseBurnin
		status.Iteration = s.step
	}
	status.RMSEAvg, status.RMSE1Sample = s.preds.rmse()
	status.AUCAvg, status.AUC1Sample = s.preds.aucs()
	for i, m := range s.modes {
		status.LatentNorms[i] = mat.Norm(m.U, 2)
	}
	for _, prior := range s.priors {
		status.Priors = append(status.Priors, prior.Status())
	}
	return status
}

func (s *Session) report(status Status) {
	exportStatus(status, s.collected)
	if s.callback != nil {
		s.callback(status)
	}
	if s.verbose > 0 {
		log.Logger().Info(fmt.Sprintf("%s %d/%d", status.Phase, status.Step, s.burnin+s.nSamples),
			zap.Float64("rmse_avg", status.RMSEAvg),
			zap.Float64("rmse_1sample", status.RMSE1Sample),
			zap.Float64("train_rmse", status.TrainRMSE),
			zap.Float64("noise_precision", status.NoisePrecision),
			zap.Duration("elapsed", status.Elapsed))
	}
	if s.verbose > 1 {
		log.Logger().Debug("gibbs step",
			zap.Float64("auc_avg", status.AUCAvg),
			zap.Float64("auc_1sample", status.AUC1Sample),
			zap.Float64s("latent_norms", status.LatentNorms[:]),
			zap.String("noise", status.Noise),
			zap.Strings("priors", status.Priors))
	}
}

// Run samples until burn-in and collection are done.
func (s *Session) Run(ctx context.Context) (*Result, error) {
	if err := s.Init(); err != nil {
		return nil, errors.Trace(err)
	}
	total := s.burnin + s.nSamples
	_, span := progress.Start(ctx, "Session.Run", total)
	span.Add(s.step)
	for s.step < total {
		if _, err := s.Step(ctx); err != nil {
			span.Fail(err)
			return nil, errors.Trace(err)
		}
		span.Add(1)
	}
	span.End()
	return s.Result(), nil
}

// Result returns the predictions and statistics of the samples collected so far.
func (s *Session) Result() *Result {
	result := &Result{
		Trace:     append([]Status(nil), s.trace...),
		NumLatent: s.numLatent,
		Burnin:    s.burnin,
		NSamples:  s.collected,
		Mean:      s.mean,
		Elapsed:   time.Since(s.start),
	}
	if s.preds != nil {
		result.Predictions = s.preds.snapshot()
		result.RMSEAvg, result.RMSE1Sample = s.preds.rmse()
		result.AUCAvg, result.AUC1Sample = s.preds.aucs()
	}
	return result
}

// Predict returns the prediction of cell (i, j) by the current sample.
func (s *Session) Predict(i, j int) float64 {
	return s.mean + floats.Dot(s.modes[0].U.RawRowView(i), s.modes[1].U.RawRowView(j))
}


