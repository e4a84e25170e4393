// ABOUTME: Prometheus collectors for pool, session, and message activity.
// ABOUTME: Register once via MustRegister; the /metrics endpoint is config-gated.

package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// PoolAcquires counts successful pool handle acquisitions.
	PoolAcquires = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bassi_pool_acquires_total",
		Help: "Successful agent pool acquisitions.",
	})

	// PoolExhausted counts acquisitions that timed out waiting for a handle.
	PoolExhausted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "bassi_pool_exhausted_total",
		Help: "Pool acquisitions that failed because no handle freed up in time.",
	})

	// PoolInUse tracks handles currently bound to a browser.
	PoolInUse = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bassi_pool_in_use",
		Help: "Agent pool handles currently in use.",
	})

	// BrowserConnections tracks live WebSocket connections.
	BrowserConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "bassi_browser_connections",
		Help: "Live browser WebSocket connections.",
	})

	// MessageLatency observes end-to-end message processing time.
	MessageLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bassi_message_latency_seconds",
		Help:    "Time from inbound chat message to terminal response event.",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"outcome"})

	// MessagesTotal counts processed inbound messages by type.
	MessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "bassi_messages_total",
		Help: "Inbound browser messages processed, by message type.",
	}, []string{"type"})
)

// MustRegister registers all collectors with the default registry exactly
// once. Safe to call from multiple entry points.
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(
			PoolAcquires,
			PoolExhausted,
			PoolInUse,
			BrowserConnections,
			MessageLatency,
			MessagesTotal,
		)
	})
}
