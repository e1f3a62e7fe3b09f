// Package observability provides Prometheus metrics and OpenTelemetry
// tracing for the render loop.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "termframe"

// FrameMetrics holds the compositor's collectors. A nil *FrameMetrics is
// valid and records nothing.
type FrameMetrics struct {
	FramesTotal        prometheus.Counter
	DiffBytes          prometheus.Histogram
	DirtyCells         prometheus.Gauge
	WriteErrorsTotal   prometheus.Counter
	UnbalancedScopes   *prometheus.CounterVec
	ResizesTotal       prometheus.Counter
	SizeFallbacksTotal prometheus.Counter
	FullRepaintsTotal  prometheus.Counter
	RowFastPathTotal   *prometheus.CounterVec
}

// NewFrameMetrics registers the compositor's collectors with reg.
func NewFrameMetrics(reg prometheus.Registerer) *FrameMetrics {
	factory := promauto.With(reg)

	return &FrameMetrics{
		FramesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Total number of frames completed",
		}),
		DiffBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "diff_bytes",
			Help:      "Bytes of ANSI output written per frame",
			Buckets:   prometheus.ExponentialBuckets(16, 4, 8), // 16B to ~256KiB
		}),
		DirtyCells: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "dirty_cells",
			Help:      "Cells inside the dirty box of the last frame",
		}),
		WriteErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_errors_total",
			Help:      "Total number of failed terminal writes",
		}),
		UnbalancedScopes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "unbalanced_scopes_total",
			Help:      "Pushes left open when a frame ended",
		}, []string{"stack"}), // "clip", "offset", "layer"
		ResizesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resizes_total",
			Help:      "Total number of applied terminal resizes",
		}),
		SizeFallbacksTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "size_fallbacks_total",
			Help:      "Terminal size queries answered with the fallback size",
		}),
		FullRepaintsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "full_repaints_total",
			Help:      "Frames that cleared and repainted the whole screen",
		}),
		RowFastPathTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_row_total",
			Help:      "WriteRow calls by path taken",
		}, []string{"path"}), // "block", "per_cell"
	}
}

// ObserveFrame records one completed frame.
func (m *FrameMetrics) ObserveFrame(dirtyCells, bytes int) {
	if m == nil {
		return
	}
	m.FramesTotal.Inc()
	m.DirtyCells.Set(float64(dirtyCells))
	if bytes > 0 {
		m.DiffBytes.Observe(float64(bytes))
	}
}

// WriteError records a failed terminal write.
func (m *FrameMetrics) WriteError() {
	if m == nil {
		return
	}
	m.WriteErrorsTotal.Inc()
}

// Unbalanced records n pushes left open on the named stack.
func (m *FrameMetrics) Unbalanced(stack string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.UnbalancedScopes.WithLabelValues(stack).Add(float64(n))
}

// Resize records an applied resize.
func (m *FrameMetrics) Resize() {
	if m == nil {
		return
	}
	m.ResizesTotal.Inc()
}

// SizeFallback records a size query answered with the fallback size.
func (m *FrameMetrics) SizeFallback() {
	if m == nil {
		return
	}
	m.SizeFallbacksTotal.Inc()
}

// FullRepaint records a frame that repainted the whole screen.
func (m *FrameMetrics) FullRepaint() {
	if m == nil {
		return
	}
	m.FullRepaintsTotal.Inc()
}

// RowPath records which WriteRow path ran.
func (m *FrameMetrics) RowPath(block bool) {
	if m == nil {
		return
	}
	if block {
		m.RowFastPathTotal.WithLabelValues("block").Inc()
	} else {
		m.RowFastPathTotal.WithLabelValues("per_cell").Inc()
	}
}
