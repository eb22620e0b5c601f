// Package metrics exposes prometheus instrumentation for the swap daemon.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"swapd/core/events"
)

var (
	registerOnce sync.Once

	swapEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "swapd",
		Subsystem: "engine",
		Name:      "events_total",
		Help:      "Lifecycle events emitted by the swap engine, by type.",
	}, []string{"type"})

	rpcRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "swapd",
		Subsystem: "rpc",
		Name:      "requests_total",
		Help:      "JSON-RPC requests served, by method and outcome.",
	}, []string{"method", "outcome"})

	rpcDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "swapd",
		Subsystem: "rpc",
		Name:      "request_seconds",
		Help:      "JSON-RPC request latency in seconds, by method.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method"})
)

// Register installs the swap collectors on the default registry. Safe to
// call multiple times.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(swapEvents, rpcRequests, rpcDuration)
	})
}

// ObserveRPC records a served JSON-RPC request.
func ObserveRPC(method, outcome string, seconds float64) {
	rpcRequests.WithLabelValues(method, outcome).Inc()
	rpcDuration.WithLabelValues(method).Observe(seconds)
}

// Emitter counts engine events by type before forwarding them to the
// wrapped sink.
type Emitter struct {
	next events.Emitter
}

// NewEmitter wraps next with event counting. A nil next discards events
// after counting.
func NewEmitter(next events.Emitter) *Emitter {
	if next == nil {
		next = events.NoopEmitter{}
	}
	return &Emitter{next: next}
}

// Emit implements events.Emitter.
func (e *Emitter) Emit(evt *events.Event) {
	if evt != nil {
		swapEvents.WithLabelValues(evt.Type).Inc()
	}
	e.next.Emit(evt)
}
