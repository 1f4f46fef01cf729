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
	"io"
	"os"
	"strconv"

	"github.com/gorse-io/smurff/base/encoding"
	"github.com/gorse-io/smurff/base/log"
	"github.com/gorse-io/smurff/config"
	"github.com/gorse-io/smurff/dataset"
	"github.com/gorse-io/smurff/model/bpmf"
	"github.com/gorse-io/smurff/storage/blob"
	"github.com/juju/errors"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

var predictCommand = &cobra.Command{
	Use:   "predict",
	Short: "Predict a test matrix with saved samples",
	Run: func(cmd *cobra.Command, args []string) {
		configPath, _ := cmd.Flags().GetString("config")
		conf, err := config.LoadConfig(configPath)
		if err != nil {
			log.Logger().Fatal("failed to load config", zap.Error(err))
		}
		if err = predict(conf, cmd.Flags(), os.Stdout); err != nil {
			log.Logger().Fatal("failed to predict", zap.Error(err))
		}
	},
}

func init() {
	addPredictFlags(predictCommand.Flags())
	_ = predictCommand.MarkFlagRequired("test")
}

func addPredictFlags(flags *pflag.FlagSet) {
	flags.String("save-dir", "", "directory or bucket URI of saved samples")
	flags.String("prefix", "", "prefix of saved samples")
	flags.String("test", "", "test matrix in Matrix Market format")
	flags.Int("show", 10, "number of predictions to print")
}

func predict(conf *config.Config, flags *pflag.FlagSet, w io.Writer) error {
	if flags.Changed("save-dir") {
		conf.Storage.URI, _ = flags.GetString("save-dir")
	}
	prefix := conf.Sampler.SavePrefix
	if flags.Changed("prefix") {
		prefix, _ = flags.GetString("prefix")
	}
	store, err := blob.NewStore(conf.Storage)
	if err != nil {
		return errors.Trace(err)
	}
	session, err := bpmf.OpenPredictSession(store, prefix)
	if err != nil {
		return errors.Trace(err)
	}
	testPath, _ := flags.GetString("test")
	testSet, err := dataset.ReadMatrixMarketFile(testPath)
	if err != nil {
		return errors.Trace(err)
	}
	predictions, rmse, err := session.PredictMatrix(context.Background(), testSet, numJobs(conf.Sampler.Jobs))
	if err != nil {
		return errors.Trace(err)
	}
	summary := tablewriter.NewWriter(w)
	summary.Header("Metric", "Value")
	_ = summary.Append([]string{"RMSE (avg)", encoding.FormatFloat64(rmse)})
	_ = summary.Append([]string{"Samples", strconv.Itoa(session.NumSamples())})
	if err = summary.Render(); err != nil {
		return errors.Trace(err)
	}
	show, _ := flags.GetInt("show")
	return printPredictions(w, predictions, show)
}
