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
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/gorse-io/smurff/base/encoding"
	"github.com/gorse-io/smurff/dataset"
	"github.com/gorse-io/smurff/storage/blob"
	"github.com/juju/errors"
	"gopkg.in/yaml.v3"
)

// RootFile lists the options of a run and the files of every saved sample.
type RootFile struct {
	Options   map[string]interface{} `yaml:"options"`
	NumLatent int                    `yaml:"num_latent"`
	Rows      int                    `yaml:"rows"`
	Cols      int                    `yaml:"cols"`
	Mean      float64                `yaml:"mean"`
	Priors    []string               `yaml:"priors"`
	Noise     string                 `yaml:"noise"`
	Samples   []SampleFile           `yaml:"samples"`
}

// SampleFile lists the files of a saved sample.
type SampleFile struct {
	Number      int               `yaml:"number"`
	Step        int               `yaml:"step"`
	Latents     []string          `yaml:"latents"`
	Predictions string            `yaml:"predictions,omitempty"`
	PriorState  map[string]string `yaml:"prior_state,omitempty"`
}

// RootFileName returns the name of the root file of a run.
func RootFileName(prefix string) string {
	return prefix + "-root.yaml"
}

func latentsFileName(prefix string, sample, mode int) string {
	return fmt.Sprintf("%s-%d-U%d-latents.ddm", prefix, sample, mode)
}

func predictionsFileName(prefix string, sample int) string {
	return fmt.Sprintf("%s-%d-predictions.csv", prefix, sample)
}

func priorStateFileName(prefix string, sample, mode int, name string) string {
	return fmt.Sprintf("%s-%d-U%d-%s.ddm", prefix, sample, mode, name)
}

// saver writes samples of a session to a store.
type saver struct {
	store   blob.Store
	prefix  string
	session *Session
	root    RootFile
}

func newSaver(store blob.Store, prefix string, session *Session) *saver {
	rows, cols := session.train.Dims()
	options := make(map[string]interface{}, len(session.Params))
	for name, value := range session.Params {
		options[string(name)] = value
	}
	return &saver{
		store:   store,
		prefix:  prefix,
		session: session,
		root: RootFile{
			Options:   options,
			NumLatent: session.numLatent,
			Rows:      rows,
			Cols:      cols,
			Mean:      session.mean,
			Priors:    []string{session.priors[0].Name(), session.priors[1].Name()},
			Noise:     session.noise.Name(),
		},
	}
}

// save writes the latents, predictions and prior state of a sample and then rewrites the
// root file.
func (s *saver) save(number, step int) error {
	sample := SampleFile{Number: number, Step: step}
	for i, m := range s.session.modes {
		name := latentsFileName(s.prefix, number, i)
		if err := writeDDM(s.store, name, denseMatrix(m.U)); err != nil {
			return errors.Trace(err)
		}
		sample.Latents = append(sample.Latents, name)
		for key, value := range s.session.priors[i].State() {
			if sample.PriorState == nil {
				sample.PriorState = make(map[string]string)
			}
			stateName := priorStateFileName(s.prefix, number, i, key)
			if err := writeDDM(s.store, stateName, value); err != nil {
				return errors.Trace(err)
			}
			sample.PriorState[fmt.Sprintf("U%d-%s", i, key)] = stateName
		}
	}
	if len(s.session.preds.cells) > 0 {
		sample.Predictions = predictionsFileName(s.prefix, number)
		err := blob.Write(s.store, sample.Predictions, func(w io.Writer) error {
			return writePredictions(w, s.session.preds.cells)
		})
		if err != nil {
			return errors.Trace(err)
		}
	}
	s.root.Samples = append(s.root.Samples, sample)
	return errors.Trace(writeRootFile(s.store, s.prefix, &s.root))
}

func writeDDM(store blob.Store, name string, m *dataset.DenseMatrix) error {
	return blob.Write(store, name, func(w io.Writer) error {
		return dataset.WriteDDM(w, m)
	})
}

func writeRootFile(store blob.Store, prefix string, root *RootFile) error {
	data, err := yaml.Marshal(root)
	if err != nil {
		return errors.Trace(err)
	}
	return blob.Write(store, RootFileName(prefix), func(w io.Writer) error {
		_, err := io.Copy(w, bytes.NewReader(data))
		return err
	})
}

// ReadRootFile reads the root file of a run.
func ReadRootFile(store blob.Store, prefix string) (*RootFile, error) {
	data, err := blob.ReadAll(store, RootFileName(prefix))
	if err != nil {
		return nil, errors.Trace(err)
	}
	var root RootFile
	if err = yaml.Unmarshal(data, &root); err != nil {
		return nil, errors.Annotatef(err, "parse %s", RootFileName(prefix))
	}
	return &root, nil
}

var predictionsHeader = []string{"row", "col", "y", "pred_1samp", "pred_avg", "var", "std"}

// writePredictions writes predictions as CSV with 0-based indices.
func writePredictions(w io.Writer, cells []Prediction) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(predictionsHeader); err != nil {
		return errors.Trace(err)
	}
	for _, c := range cells {
		record := []string{
			strconv.Itoa(c.Row),
			strconv.Itoa(c.Col),
			encoding.FormatFloat64(c.Value),
			encoding.FormatFloat64(c.Pred1Sample),
			encoding.FormatFloat64(c.PredAvg),
			encoding.FormatFloat64(c.Var),
			encoding.FormatFloat64(c.Std()),
		}
		if err := writer.Write(record); err != nil {
			return errors.Trace(err)
		}
	}
	writer.Flush()
	return errors.Trace(writer.Error())
}
