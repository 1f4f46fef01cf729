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
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	LabelMode   = "mode"
	LabelSample = "sample"
)

var (
	IterationTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "smurff",
		Subsystem: "sampler",
		Name:      "iteration_total",
	})
	StepSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "smurff",
		Subsystem: "sampler",
		Name:      "step_seconds",
	})
	RMSEGaugeVec = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "smurff",
		Subsystem: "sampler",
		Name:      "rmse",
	}, []string{LabelSample})
	AUCGaugeVec = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "smurff",
		Subsystem: "sampler",
		Name:      "auc",
	}, []string{LabelSample})
	TrainRMSE = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "smurff",
		Subsystem: "sampler",
		Name:      "train_rmse",
	})
	NoisePrecision = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "smurff",
		Subsystem: "sampler",
		Name:      "noise_precision",
	})
	LatentNormVec = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "smurff",
		Subsystem: "sampler",
		Name:      "latent_norm",
	}, []string{LabelMode})
	UnobservedEntitiesVec = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "smurff",
		Subsystem: "sampler",
		Name:      "unobserved_entities",
	}, []string{LabelMode})
	CollectedSamples = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "smurff",
		Subsystem: "sampler",
		Name:      "collected_samples",
	})
	SavedSamplesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "smurff",
		Subsystem: "sampler",
		Name:      "saved_samples_total",
	})
)

func exportUnobserved(mode, unobserved int) {
	UnobservedEntitiesVec.WithLabelValues(strconv.Itoa(mode)).Set(float64(unobserved))
}

func setIfFinite(g prometheus.Gauge, v float64) {
	if !math.IsNaN(v) && !math.IsInf(v, 0) {
		g.Set(v)
	}
}

func exportStatus(status Status, collected int) {
	IterationTotal.Inc()
	StepSeconds.Set(status.Elapsed.Seconds())
	setIfFinite(RMSEGaugeVec.WithLabelValues("avg"), status.RMSEAvg)
	setIfFinite(RMSEGaugeVec.WithLabelValues("1sample"), status.RMSE1Sample)
	setIfFinite(AUCGaugeVec.WithLabelValues("avg"), status.AUCAvg)
	setIfFinite(AUCGaugeVec.WithLabelValues("1sample"), status.AUC1Sample)
	setIfFinite(TrainRMSE, status.TrainRMSE)
	setIfFinite(NoisePrecision, status.NoisePrecision)
	for mode, norm := range status.LatentNorms {
		setIfFinite(LatentNormVec.WithLabelValues(strconv.Itoa(mode)), norm)
	}
	CollectedSamples.Set(float64(collected))
}
