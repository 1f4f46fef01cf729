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

package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"

	"github.com/gorse-io/smurff"
	"github.com/gorse-io/smurff/base/encoding"
	"github.com/gorse-io/smurff/base/log"
	"github.com/gorse-io/smurff/base/progress"
	"github.com/gorse-io/smurff/config"
	"github.com/gorse-io/smurff/dataset"
	"github.com/gorse-io/smurff/model/bpmf"
	"github.com/gorse-io/smurff/storage/blob"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var trainCommand = &cobra.Command{
	Use:   "train",
	Short: "Factorize a training matrix and predict a test matrix",
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		conf, err := loadTrainConfig(configPath, cmd.Flags())
		if err != nil {
			log.Logger().Fatal("failed to load config", zap.Error(err))
		}
		if err = train(cmd.Context(), conf, cmd.Flags(), os.Stdout); err != nil {
			log.Logger().Fatal("failed to train", zap.Error(err))
		}
	},
}

func init() {
	addTrainFlags(trainCommand.Flags())
	_ = trainCommand.MarkFlagRequired("train")
}

func addTrainFlags(flags *pflag.FlagSet) {
	flags.String("train", "", "training matrix in Matrix Market format")
	flags.String("test", "", "test matrix in Matrix Market format")
	flags.String("side-row", "", "side information of rows in Matrix Market format (coordinate for sparse)")
	flags.String("side-col", "", "side information of columns in Matrix Market format (coordinate for sparse)")
	flags.String("prior-row", "normal", "prior of rows: normal, normalone, macau or spikeandslab")
	flags.String("prior-col", "normal", "prior of columns: normal, normalone, macau or spikeandslab")
	flags.Float64("tol", 0, "relative residual of conjugate gradient on sparse side information")
	flags.Int("num-latent", 0, "number of latent dimensions")
	flags.Int("burnin", 0, "number of burn-in iterations")
	flags.Int("nsamples", 0, "number of collected samples")
	flags.Int64("seed", 0, "random seed")
	flags.Int("jobs", 0, "number of sampling workers (0 for all CPUs)")
	flags.Int("save-freq", 0, "save every n-th sample, -1 for the last one")
	flags.String("save-dir", "", "directory or bucket URI of saved samples")
	flags.String("plot", "", "path of the RMSE trace plot (png or svg)")
	flags.String("metrics-addr", "", "address of the Prometheus metrics endpoint")
	flags.Int("show", 10, "number of predictions to print")
}

// loadTrainConfig loads the config file and overrides it with flags set on the command line.
func loadTrainConfig(path string, flags *pflag.FlagSet) (*config.Config, error) {
	conf, err := config.LoadConfig(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	sampler := &conf.Sampler
	if flags.Changed("num-latent") {
		sampler.NumLatent, _ = flags.GetInt("num-latent")
	}
	if flags.Changed("burnin") {
		sampler.Burnin, _ = flags.GetInt("burnin")
	}
	if flags.Changed("nsamples") {
		sampler.NSamples, _ = flags.GetInt("nsamples")
	}
	if flags.Changed("seed") {
		seed, _ := flags.GetInt64("seed")
		sampler.RandomSeed = &seed
	}
	if flags.Changed("tol") {
		sampler.Tol, _ = flags.GetFloat64("tol")
	}
	if flags.Changed("jobs") {
		sampler.Jobs, _ = flags.GetInt("jobs")
	}
	if flags.Changed("save-freq") {
		sampler.SaveFreq, _ = flags.GetInt("save-freq")
	}
	if flags.Changed("prior-row") {
		sampler.PriorRow, _ = flags.GetString("prior-row")
	} else if flags.Changed("side-row") {
		sampler.PriorRow = bpmf.PriorMacau
	}
	if flags.Changed("prior-col") {
		sampler.PriorCol, _ = flags.GetString("prior-col")
	} else if flags.Changed("side-col") {
		sampler.PriorCol = bpmf.PriorMacau
	}
	if flags.Changed("save-dir") {
		conf.Storage.URI, _ = flags.GetString("save-dir")
		if sampler.SaveFreq == 0 {
			sampler.SaveFreq = -1
		}
	}
	if flags.Changed("metrics-addr") {
		conf.Metrics.Addr, _ = flags.GetString("metrics-addr")
	}
	if err = conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return conf, nil
}

func readSide(flags *pflag.FlagSet, name, prior string) (smurff.Side, error) {
	side := smurff.Side{Prior: prior}
	path, _ := flags.GetString(name)
	if path == "" {
		return side, nil
	}
	sparse, dense, err := dataset.ReadSideMatrixMarketFile(path)
	if err != nil {
		return side, errors.Trace(err)
	}
	side.Features, side.SparseFeatures = dense, sparse
	return side, nil
}

func train(ctx context.Context, conf *config.Config, flags *pflag.FlagSet, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	if conf.Sampler.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, conf.Sampler.Timeout)
		defer cancel()
	}

	// load data
	trainPath, _ := flags.GetString("train")
	trainSet, err := dataset.ReadMatrixMarketFile(trainPath)
	if err != nil {
		return errors.Trace(err)
	}
	var testSet *dataset.SparseMatrix
	if testPath, _ := flags.GetString("test"); testPath != "" {
		if testSet, err = dataset.ReadMatrixMarketFile(testPath); err != nil {
			return errors.Trace(err)
		}
	}
	rowSide, err := readSide(flags, "side-row", conf.Sampler.PriorRow)
	if err != nil {
		return errors.Trace(err)
	}
	colSide, err := readSide(flags, "side-col", conf.Sampler.PriorCol)
	if err != nil {
		return errors.Trace(err)
	}

	// options
	bar := progressbar.Default(int64(conf.Sampler.Burnin+conf.Sampler.NSamples), "sampling")
	opts := []smurff.Option{
		smurff.WithJobs(numJobs(conf.Sampler.Jobs)),
		smurff.WithCallback(func(bpmf.Status) { _ = bar.Add(1) }),
	}
	if conf.Storage.URI != "" {
		store, err := blob.NewStore(conf.Storage)
		if err != nil {
			return errors.Trace(err)
		}
		opts = append(opts, smurff.WithStore(store))
	}
	if conf.Metrics.Addr != "" {
		go serveMetrics(conf.Metrics.Addr)
	}

	tracer := progress.NewTracer("smurff")
	ctx, span := tracer.Start(ctx, "train", 1)
	result, err := smurff.Smurff(ctx, trainSet, testSet, []smurff.Side{rowSide, colSide}, conf.Sampler.Params(), opts...)
	_ = bar.Finish()
	if err != nil {
		span.Fail(err)
		logProgress(tracer)
		return errors.Trace(err)
	}
	span.End()
	logProgress(tracer)
	if plotPath, _ := flags.GetString("plot"); plotPath != "" {
		if err = bpmf.SaveTracePlot(result.Trace, plotPath); err != nil {
			return errors.Trace(err)
		}
		log.Logger().Info("save trace plot", zap.String("path", plotPath))
	}
	show, _ := flags.GetInt("show")
	return printResult(w, result, show)
}

func logProgress(tracer *progress.Tracer) {
	for _, p := range tracer.List() {
		log.Logger().Info("task finished",
			zap.String("task", p.Name),
			zap.String("status", string(p.Status)),
			zap.String("error", p.Error),
			zap.Duration("elapsed", p.FinishTime.Sub(p.StartTime)))
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Logger().Error("failed to serve metrics", zap.String("addr", addr), zap.Error(err))
	}
}

func printResult(w io.Writer, result *bpmf.Result, show int) error {
	summary := tablewriter.NewWriter(w)
	summary.Header("Metric", "Value")
	for _, row := range [][]string{
		{"RMSE (avg)", encoding.FormatFloat64(result.RMSEAvg)},
		{"RMSE (1-sample)", encoding.FormatFloat64(result.RMSE1Sample)},
		{"AUC (avg)", encoding.FormatFloat64(result.AUCAvg)},
		{"AUC (1-sample)", encoding.FormatFloat64(result.AUC1Sample)},
		{"Samples", fmt.Sprint(result.NSamples)},
		{"Elapsed", result.Elapsed.String()},
	} {
		if err := summary.Append(row); err != nil {
			return errors.Trace(err)
		}
	}
	if err := summary.Render(); err != nil {
		return errors.Trace(err)
	}
	return printPredictions(w, result.Predictions, show)
}

func printPredictions(w io.Writer, predictions []bpmf.Prediction, show int) error {
	if len(predictions) == 0 || show <= 0 {
		return nil
	}
	table := tablewriter.NewWriter(w)
	table.Header("Row", "Col", "Value", "1-Sample", "Avg", "Std")
	for _, p := range predictions[:min(show, len(predictions))] {
		if err := table.Append([]string{
			fmt.Sprint(p.Row),
			fmt.Sprint(p.Col),
			encoding.FormatFloat64(p.Value),
			fmt.Sprintf("%.4f", p.Pred1Sample),
			fmt.Sprintf("%.4f", p.PredAvg),
			fmt.Sprintf("%.4f", p.Std()),
		}); err != nil {
			return errors.Trace(err)
		}
	}
	return errors.Trace(table.Render())
}

func numJobs(jobs int) int {
	if jobs == 0 {
		return runtime.NumCPU()
	}
	return jobs
}
