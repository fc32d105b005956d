/*
SPDX-License-Identifier: Apache-2.0

Copyright 2024 The Taxinomia Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "facetfilter"

// Metrics holds the Prometheus collectors of the dashboard server.
type Metrics struct {
	// FilterChangesTotal counts engine actions by action and outcome.
	// Labels: action (filter, clear, reset), status (ok, error)
	FilterChangesTotal *prometheus.CounterVec

	// RecordsVisited observes the sorted index positions walked per action.
	RecordsVisited prometheus.Histogram

	// RequestDurationSeconds measures request latency by route.
	RequestDurationSeconds *prometheus.HistogramVec

	// SelectedRecords is the number of records passing every filter.
	SelectedRecords prometheus.Gauge
}

// NewMetrics creates the server collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FilterChangesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "filter_changes_total",
				Help:      "Engine actions applied from dashboard clicks.",
			},
			[]string{"action", "status"},
		),
		RecordsVisited: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "records_visited",
				Help:      "Sorted index positions walked by one action.",
				Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
			},
		),
		RequestDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		SelectedRecords: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "selected_records",
				Help:      "Records passing every active filter.",
			},
		),
	}
}
