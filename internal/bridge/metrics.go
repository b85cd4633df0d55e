// SPDX-License-Identifier: MPL-2.0

package bridge

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/crxhost/crxhost/pkg/protocol"
)

const metricsNamespace = "crxhost"

// Metrics holds the bridge collectors. Each Metrics owns its registry so
// several bridges (and tests) can coexist in one process.
type Metrics struct {
	Registry *prometheus.Registry

	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	ResponseSize    prometheus.Histogram
}

// NewMetrics creates collectors. stats, when non-nil, is sampled on every
// scrape to export protocol cache counters.
func NewMetrics(stats func() protocol.Stats) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		Registry: reg,
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "bridge_requests_total",
				Help:      "Resource requests served by the HTTP bridge, by outcome.",
			},
			[]string{"outcome"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "bridge_request_duration_seconds",
				Help:      "HTTP request duration in seconds.",
				Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"route"},
		),
		ResponseSize: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "bridge_response_size_bytes",
				Help:      "Resource response size in bytes.",
				Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
			},
		),
	}

	if stats != nil {
		statFunc := func(name, help string, pick func(protocol.Stats) uint64) {
			factory.NewCounterFunc(prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      name,
				Help:      help,
			}, func() float64 { return float64(pick(stats())) })
		}
		statFunc("protocol_cache_hits_total", "Resource requests answered from the cache.",
			func(s protocol.Stats) uint64 { return s.Hits })
		statFunc("protocol_cache_misses_total", "Resource cache fills.",
			func(s protocol.Stats) uint64 { return s.Misses })
		statFunc("protocol_file_reads_total", "Filesystem reads made by the protocol server.",
			func(s protocol.Stats) uint64 { return s.Reads })
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "protocol_cache_entries",
			Help:      "Cached resource addresses.",
		}, func() float64 { return float64(stats().Entries) })
	}

	return m
}
