// Copyright 2025 Google LLC
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

package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// NewPrometheusExporter wires an OTel MeterProvider backed by a
// Prometheus registry, the way gcsfuse's cmd package wires
// contrib.go.opencensus.io/exporter/prometheus at mount time. Callers
// register the returned registry with an HTTP handler themselves; this
// module does not own an HTTP server (CLI/packaging is out of scope).
func NewPrometheusExporter(reg *prometheus.Registry) (*sdkmetric.MeterProvider, error) {
	exporter, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)), nil
}

// NewStdoutExporter is a debugging aid: it wires an OTel MeterProvider
// that prints every collected metric to w, for local debugging without a
// Prometheus scraper. Retained from the teacher's cmd wiring of the
// analogous stdout exporter, even though this module drops cmd/ itself
// (spec Non-goal: CLI).
func NewStdoutExporter(w io.Writer) (*sdkmetric.MeterProvider, error) {
	exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w), stdoutmetric.WithPrettyPrint())
	if err != nil {
		return nil, err
	}
	return sdkmetric.NewMeterProvider(sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter))), nil
}
