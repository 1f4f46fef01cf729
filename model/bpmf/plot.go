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
	"io"
	"math"

	"github.com/juju/errors"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

const (
	plotWidth  = 6 * vg.Inch
	plotHeight = 4 * vg.Inch
)

func traceLine(trace []Status, value func(Status) float64) plotter.XYs {
	var xys plotter.XYs
	for _, status := range trace {
		if y := value(status); !math.IsNaN(y) && !math.IsInf(y, 0) {
			xys = append(xys, plotter.XY{X: float64(status.Step), Y: y})
		}
	}
	return xys
}

func tracePlot(trace []Status) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = "Gibbs sampler"
	p.X.Label.Text = "Iteration"
	p.Y.Label.Text = "RMSE"
	var lines []any
	for _, line := range []struct {
		name  string
		value func(Status) float64
	}{
		{"train", func(s Status) float64 { return s.TrainRMSE }},
		{"1-sample", func(s Status) float64 { return s.RMSE1Sample }},
		{"avg", func(s Status) float64 { return s.RMSEAvg }},
	} {
		if xys := traceLine(trace, line.value); len(xys) > 0 {
			lines = append(lines, line.name, xys)
		}
	}
	if len(lines) == 0 {
		return nil, errors.NotValidf("empty trace")
	}
	if err := plotutil.AddLines(p, lines...); err != nil {
		return nil, errors.Trace(err)
	}
	return p, nil
}

// SaveTracePlot plots RMSE over iterations to a file. The format follows the extension.
func SaveTracePlot(trace []Status, path string) error {
	p, err := tracePlot(trace)
	if err != nil {
		return errors.Trace(err)
	}
	return errors.Trace(p.Save(plotWidth, plotHeight, path))
}

// WriteTracePlot plots RMSE over iterations in a format such as png or svg.
func WriteTracePlot(w io.Writer, trace []Status, format string) error {
	p, err := tracePlot(trace)
	if err != nil {
		return errors.Trace(err)
	}
	wt, err := p.WriterTo(plotWidth, plotHeight, format)
	if err != nil {
		return errors.Trace(err)
	}
	_, err = wt.WriteTo(w)
	return errors.Trace(err)
}
