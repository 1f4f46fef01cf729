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
	"os"

	"github.com/gorse-io/smurff"
	"github.com/gorse-io/smurff/base/log"
	"github.com/gorse-io/smurff/dataset"
	"github.com/gorse-io/smurff/model"
	"github.com/juju/errors"
	"go.uber.org/zap"
)

const (
	trainMatrixPath = "chembl-IC50-346targets.mm"
	testMatrixPath  = "chembl-IC50-test.mm"
)

var factorize = smurff.Smurff

// run factorizes the training matrix with normal priors and prints the first prediction.
func run(ctx context.Context, w io.Writer, trainPath, testPath string) error {
	train, err := dataset.ReadMatrixMarketFile(trainPath)
	if err != nil {
		return errors.Trace(err)
	}
	test, err := dataset.ReadMatrixMarketFile(testPath)
	if err != nil {
		return errors.Trace(err)
	}
	result, err := factorize(ctx, train, test, []smurff.Side{{Prior: "normal"}, {Prior: "normal"}}, model.Params{
		model.NumLatent: 1,
		model.Burnin:    1,
		model.NSamples:  5,
	})
	if err != nil {
		return errors.Trace(err)
	}
	if len(result.Predictions) == 0 {
		return errors.NotFoundf("predictions")
	}
	_, err = fmt.Fprintln(w, result.Predictions[0])
	return errors.Trace(err)
}

func main() {
	if err := run(context.Background(), os.Stdout, trainMatrixPath, testMatrixPath); err != nil {
		log.Logger().Fatal("failed to run smurff", zap.Error(err))
	}
}
