// Package metrics exposes the RPC call/latency/reconnect counters named by
// SPEC_FULL.md §3's domain stack table, grounded on github.com/prometheus/
// client_golang as used for similar counters/histograms in the retrieved
// pack's arkeep and kubernaut repos. Installed on an rpc.Conn by passing
// rpc.WithHooks(c.Hooks()) to rpc.Dial; the Conn that Client.Login dials has
// no metrics hooks.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tellurio-ai/tellurio-go/rpc"
)

// Collector bundles the metrics this client exposes on an optional
// /metrics handle.
type Collector struct {
	callsTotal     *prometheus.CounterVec
	callErrors     *prometheus.CounterVec
	callDuration   *prometheus.HistogramVec
	reconnectTotal prometheus.Counter
}

// NewCollector constructs and registers a Collector against reg. Pass
// prometheus.NewRegistry() for an isolated registry, or
// prometheus.DefaultRegisterer to use the global one.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		callsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tellurio",
			Subsystem: "rpc",
			Name:      "calls_total",
			Help:      "Total number of outbound RPC calls, by method.",
		}, []string{"method"}),
		callErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tellurio",
			Subsystem: "rpc",
			Name:      "call_errors_total",
			Help:      "Total number of outbound RPC calls that returned an error, by method.",
		}, []string{"method"}),
		callDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tellurio",
			Subsystem: "rpc",
			Name:      "call_duration_seconds",
			Help:      "Outbound RPC call latency, by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		reconnectTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tellurio",
			Subsystem: "rpc",
			Name:      "reconnects_total",
			Help:      "Total number of successful stream reconnects.",
		}),
	}
	reg.MustRegister(c.callsTotal, c.callErrors, c.callDuration, c.reconnectTotal)
	return c
}

// Hooks adapts Collector to rpc.Hooks so it can be installed on a Conn via
// rpc.WithHooks(metrics.NewCollector(reg).Hooks()).
func (c *Collector) Hooks() rpc.Hooks {
	return rpc.Hooks{
		OnCallStart: func(method string) {
			c.callsTotal.WithLabelValues(method).Inc()
		},
		OnCallEnd: func(method string, dur time.Duration, err error) {
			c.callDuration.WithLabelValues(method).Observe(dur.Seconds())
			if err != nil {
				c.callErrors.WithLabelValues(method).Inc()
			}
		},
		OnReconnect: func() {
			c.reconnectTotal.Inc()
		},
	}
}
