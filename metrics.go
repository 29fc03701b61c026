//  Copyright (c) 2023 Uber Technologies, Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package jqual

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus metrics of sessions. A nil *Metrics records nothing.
type Metrics struct {
	// MethodsAnalyzed counts method analyses that finished, once per round.
	MethodsAnalyzed prometheus.Counter
	// MethodsFailed counts method analyses that failed, once per round.
	MethodsFailed prometheus.Counter
	// FixpointVisits counts the worklist items processed by the frame analyzer.
	FixpointVisits prometheus.Counter
	// Rounds counts whole-program rounds.
	Rounds prometheus.Counter
	// Annotations counts the annotations reported by finished runs.
	// Labels: kind (nullability, mutability), value (NotNull, Nullable, Mutable)
	Annotations *prometheus.CounterVec
}

// NewMetrics creates the session metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MethodsAnalyzed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "jqual",
			Subsystem: "session",
			Name:      "methods_analyzed_total",
			Help:      "Total method analyses that finished",
		}),
		MethodsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "jqual",
			Subsystem: "session",
			Name:      "methods_failed_total",
			Help:      "Total method analyses that failed",
		}),
		FixpointVisits: f.NewCounter(prometheus.CounterOpts{
			Namespace: "jqual",
			Subsystem: "engine",
			Name:      "fixpoint_visits_total",
			Help:      "Total worklist items processed by the frame analyzer",
		}),
		Rounds: f.NewCounter(prometheus.CounterOpts{
			Namespace: "jqual",
			Subsystem: "session",
			Name:      "rounds_total",
			Help:      "Total whole-program rounds",
		}),
		Annotations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "jqual",
			Subsystem: "session",
			Name:      "annotations_total",
			Help:      "Total annotations reported",
		}, []string{"kind", "value"}),
	}
}

func (m *Metrics) analyzed(visits int) {
	if m == nil {
		return
	}
	m.MethodsAnalyzed.Inc()
	m.FixpointVisits.Add(float64(visits))
}

func (m *Metrics) failed() {
	if m == nil {
		return
	}
	m.MethodsFailed.Inc()
}

func (m *Metrics) round() {
	if m == nil {
		return
	}
	m.Rounds.Inc()
}

func (m *Metrics) annotations(r *Result) {
	if m == nil {
		return
	}
	for _, e := range r.Nullability.Sorted() {
		m.Annotations.WithLabelValues("nullability", e.Value.String()).Inc()
	}
	for _, e := range r.Mutability.Sorted() {
		m.Annotations.WithLabelValues("mutability", e.Value.String()).Inc()
	}
}
