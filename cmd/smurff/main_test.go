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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/gorse-io/smurff/config"
	"github.com/gorse-io/smurff/model/bpmf"
	"github.com/juju/errors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trainMatrix = `%%MatrixMarket matrix coordinate real general
3 3 5
1 1 1.0
1 2 2.0
2 2 3.0
3 3 4.0
3 1 2.5
`

const testMatrix = `%%MatrixMarket matrix coordinate real general
3 3 2
2 3 3.5
1 3 1.5
`

const sideMatrix = `%%MatrixMarket matrix array real general
3 2
1.0
0.0
1.0
0.0
1.0
1.0
`

const sparseSideMatrix = `%%MatrixMarket matrix coordinate real general
3 4 4
1 1 1.0
2 3 1.0
3 2 1.0
3 4 0.5
`

func writeFile(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func parseFlags(t *testing.T, add func(*pflag.FlagSet), args ...string) *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	add(flags)
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestLoadTrainConfig(t *testing.T) {
	flags := parseFlags(t, addTrainFlags,
		"--num-latent", "4",
		"--burnin", "3",
		"--nsamples", "7",
		"--seed", "9",
		"--side-row", "side.mm",
		"--tol", "1e-8",
		"--save-dir", "samples")
	conf, err := loadTrainConfig("", flags)
	require.NoError(t, err)
	assert.Equal(t, 4, conf.Sampler.NumLatent)
	assert.Equal(t, 3, conf.Sampler.Burnin)
	assert.Equal(t, 7, conf.Sampler.NSamples)
	require.NotNil(t, conf.Sampler.RandomSeed)
	assert.Equal(t, int64(9), *conf.Sampler.RandomSeed)
	assert.Equal(t, bpmf.PriorMacau, conf.Sampler.PriorRow)
	assert.Equal(t, bpmf.PriorNormal, conf.Sampler.PriorCol)
	assert.Equal(t, "samples", conf.Storage.URI)
	assert.Equal(t, -1, conf.Sampler.SaveFreq)
	assert.Equal(t, 1e-8, conf.Sampler.Tol)

	flags = parseFlags(t, addTrainFlags, "--prior-col", "gaussian")
	_, err = loadTrainConfig("", flags)
	assert.True(t, errors.Is(err, errors.NotValid))
}

func TestTrainAndPredict(t *testing.T) {
	dir := t.TempDir()
	trainPath := writeFile(t, dir, "train.mm", trainMatrix)
	testPath := writeFile(t, dir, "test.mm", testMatrix)
	sidePath := writeFile(t, dir, "side.mm", sideMatrix)
	plotPath := filepath.Join(dir, "trace.png")
	saveDir := filepath.Join(dir, "samples")

	flags := parseFlags(t, addTrainFlags,
		"--train", trainPath,
		"--test", testPath,
		"--side-row", sidePath,
		"--num-latent", "2",
		"--burnin", "2",
		"--nsamples", "3",
		"--seed", "1",
		"--jobs", "2",
		"--save-freq", "1",
		"--save-dir", saveDir,
		"--plot", plotPath)
	conf, err := loadTrainConfig("", flags)
	require.NoError(t, err)
	conf.Sampler.Verbose = 0
	var out bytes.Buffer
	require.NoError(t, train(context.Background(), conf, flags, &out))
	assert.Contains(t, out.String(), "RMSE (avg)")
	assert.FileExists(t, plotPath)
	assert.FileExists(t, filepath.Join(saveDir, "sample-root.yaml"))
	assert.FileExists(t, filepath.Join(saveDir, "sample-3-U0-link.ddm"))

	flags = parseFlags(t, addPredictFlags, "--save-dir", saveDir, "--test", testPath)
	out.Reset()
	require.NoError(t, predict(config.GetDefaultConfig(), flags, &out))
	assert.Contains(t, out.String(), "RMSE (avg)")
	assert.Contains(t, out.String(), "3.5")
}

func TestReadSide(t *testing.T) {
	dir := t.TempDir()
	densePath := writeFile(t, dir, "dense.mm", sideMatrix)
	sparsePath := writeFile(t, dir, "sparse.mm", sparseSideMatrix)

	side, err := readSide(parseFlags(t, addTrainFlags), "side-row", bpmf.PriorNormal)
	require.NoError(t, err)
	assert.Nil(t, side.Features)
	assert.Nil(t, side.SparseFeatures)

	side, err = readSide(parseFlags(t, addTrainFlags, "--side-row", densePath), "side-row", bpmf.PriorMacau)
	require.NoError(t, err)
	require.NotNil(t, side.Features)
	assert.Nil(t, side.SparseFeatures)

	side, err = readSide(parseFlags(t, addTrainFlags, "--side-col", sparsePath), "side-col", bpmf.PriorMacau)
	require.NoError(t, err)
	assert.Nil(t, side.Features)
	require.NotNil(t, side.SparseFeatures)
	assert.Equal(t, 4, side.SparseFeatures.NNZ())
}

func TestTrain_SparseSide(t *testing.T) {
	dir := t.TempDir()
	flags := parseFlags(t, addTrainFlags,
		"--train", writeFile(t, dir, "train.mm", trainMatrix),
		"--test", writeFile(t, dir, "test.mm", testMatrix),
		"--side-row", writeFile(t, dir, "side.mm", sparseSideMatrix),
		"--num-latent", "2",
		"--burnin", "2",
		"--nsamples", "3",
		"--seed", "1")
	conf, err := loadTrainConfig("", flags)
	require.NoError(t, err)
	conf.Sampler.Verbose = 0
	var out bytes.Buffer
	require.NoError(t, train(context.Background(), conf, flags, &out))
	assert.Contains(t, out.String(), "RMSE (avg)")
}

func TestPredict_Missing(t *testing.T) {
	dir := t.TempDir()
	testPath := writeFile(t, dir, "test.mm", testMatrix)
	flags := parseFlags(t, addPredictFlags, "--save-dir", filepath.Join(dir, "samples"), "--test", testPath)
	err := predict(config.GetDefaultConfig(), flags, &bytes.Buffer{})
	assert.True(t, errors.Is(err, errors.NotFound))
}
