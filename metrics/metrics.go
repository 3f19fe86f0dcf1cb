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

// Package metrics instruments the cache engine with OpenTelemetry
// counters and histograms, exported through the Prometheus bridge.
// Adapted from gcsfuse's common/otel_metrics.go (attribute-set caching
// via sync.Map, Int64Counter/Float64Histogram shape) but renamed for
// the cache engine's own events instead of fs-op/GCS-read metrics.
package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SchemeKey annotates an event with which Scheme implementation served it.
const SchemeKey = "scheme"

// CacheKindKey annotates an event with "dbcache" or "rwcache".
const CacheKindKey = "cache_kind"

var (
	copyMeter  = otel.Meter("prefetchcache/copy")
	cacheMeter = otel.Meter("prefetchcache/cache")

	schemeAttributeSet    sync.Map
	cacheKindAttributeSet sync.Map
)

func loadOrStore(mp *sync.Map, key string) metric.MeasurementOption {
	if v, ok := mp.Load(key); ok {
		return v.(metric.MeasurementOption)
	}
	v, _ := mp.LoadOrStore(key, metric.WithAttributeSet(attribute.NewSet(attribute.String(SchemeKey, key))))
	return v.(metric.MeasurementOption)
}

func cacheKindOption(kind string) metric.MeasurementOption {
	if v, ok := cacheKindAttributeSet.Load(kind); ok {
		return v.(metric.MeasurementOption)
	}
	v, _ := cacheKindAttributeSet.LoadOrStore(kind, metric.WithAttributeSet(attribute.NewSet(attribute.String(CacheKindKey, kind))))
	return v.(metric.MeasurementOption)
}

// Handle is the set of instruments the cache engine records against.
// NoopHandle satisfies it with a no-op, mirroring the teacher's
// NewNoopMetrics fallback so cache construction never fails when a
// metrics provider isn't configured.
type Handle interface {
	// BlockBytesCopied records bytes copied from a scheme during a block.
	BlockBytesCopied(ctx context.Context, n int64, scheme string)
	// BlockCopyLatency records the wall-clock duration of one block copy.
	BlockCopyLatency(ctx context.Context, d time.Duration, scheme string)
	// FilesCopied records the count of descriptors copied in a block.
	FilesCopied(ctx context.Context, n int64, scheme string)
	// TransitionCount records an Update (rwcache) or SwitchCache (dbcache) call.
	TransitionCount(ctx context.Context, kind string)
	// ActiveSetBytes records the current resident size right after a transition.
	ActiveSetBytes(ctx context.Context, n int64, kind string)
}

type otelHandle struct {
	blockBytesCopied metric.Int64Counter
	blockCopyLatency metric.Float64Histogram
	filesCopied      metric.Int64Counter
	transitionCount  metric.Int64Counter
	activeSetBytes   metric.Int64Histogram
}

func (h *otelHandle) BlockBytesCopied(ctx context.Context, n int64, scheme string) {
	h.blockBytesCopied.Add(ctx, n, loadOrStore(&schemeAttributeSet, scheme))
}

func (h *otelHandle) BlockCopyLatency(ctx context.Context, d time.Duration, scheme string) {
	h.blockCopyLatency.Record(ctx, float64(d.Milliseconds()), loadOrStore(&schemeAttributeSet, scheme))
}

func (h *otelHandle) FilesCopied(ctx context.Context, n int64, scheme string) {
	h.filesCopied.Add(ctx, n, loadOrStore(&schemeAttributeSet, scheme))
}

func (h *otelHandle) TransitionCount(ctx context.Context, kind string) {
	h.transitionCount.Add(ctx, 1, cacheKindOption(kind))
}

func (h *otelHandle) ActiveSetBytes(ctx context.Context, n int64, kind string) {
	h.activeSetBytes.Record(ctx, n, cacheKindOption(kind))
}

// New builds an OTel-backed Handle registered against the global
// MeterProvider. Call otel.SetMeterProvider with a Prometheus or stdout
// exporter (see NewPrometheusExporter/NewStdoutExporter) before this, or
// the no-op provider's instruments are used, which is harmless.
func New() (Handle, error) {
	blockBytesCopied, err1 := copyMeter.Int64Counter("cache/block_bytes_copied",
		metric.WithDescription("Bytes copied from the remote store per prefetch block."),
		metric.WithUnit("By"))
	blockCopyLatency, err2 := copyMeter.Float64Histogram("cache/block_copy_latency",
		metric.WithDescription("Wall-clock duration of a single prefetch block copy."),
		metric.WithUnit("ms"))
	filesCopied, err3 := copyMeter.Int64Counter("cache/files_copied",
		metric.WithDescription("Descriptors copied from the remote store."))
	transitionCount, err4 := cacheMeter.Int64Counter("cache/transitions",
		metric.WithDescription("SwitchCache/Update calls, by cache kind."))
	activeSetBytes, err5 := cacheMeter.Int64Histogram("cache/active_set_bytes",
		metric.WithDescription("Active-set size immediately after a transition."),
		metric.WithUnit("By"))

	if err := errors.Join(err1, err2, err3, err4, err5); err != nil {
		return nil, err
	}

	return &otelHandle{
		blockBytesCopied: blockBytesCopied,
		blockCopyLatency: blockCopyLatency,
		filesCopied:      filesCopied,
		transitionCount:  transitionCount,
		activeSetBytes:   activeSetBytes,
	}, nil
}

// NoopHandle discards every measurement. Used when a caller constructs a
// cache without wiring a metrics provider.
type NoopHandle struct{}

func (NoopHandle) BlockBytesCopied(context.Context, int64, string)     {}
func (NoopHandle) BlockCopyLatency(context.Context, time.Duration, string) {}
func (NoopHandle) FilesCopied(context.Context, int64, string)          {}
func (NoopHandle) TransitionCount(context.Context, string)             {}
func (NoopHandle) ActiveSetBytes(context.Context, int64, string)        {}
