// Registers:
//
//	tickflow_ticks_received_total
//	tickflow_ticks_dropped_total
//	tickflow_stream_reconnects_total
//	tickflow_fallback_polls_total
//	go_* and process_* system metrics
//
// The handler is mounted on the dashboard router under /metrics.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once          sync.Once
	ticksReceived *prometheus.CounterVec
	ticksDropped  *prometheus.CounterVec
	reconnects    prometheus.Counter
	fallbackPolls prometheus.Counter
)

func Init() {
	once.Do(func() {
		ticksReceived = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickflow_ticks_received_total",
				Help: "Number of valid ticks accepted from the stream or polling fallback",
			},
			[]string{"symbol", "source"},
		)

		ticksDropped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tickflow_ticks_dropped_total",
				Help: "Number of ticks or batches dropped before merging",
			},
			[]string{"reason"},
		)

		reconnects = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickflow_stream_reconnects_total",
			Help: "Number of stream reconnect attempts",
		})

		fallbackPolls = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tickflow_fallback_polls_total",
			Help: "Number of REST fetches issued while in polling fallback",
		})

		_ = prometheus.Register(ticksReceived)
		_ = prometheus.Register(ticksDropped)
		_ = prometheus.Register(reconnects)
		_ = prometheus.Register(fallbackPolls)
		_ = prometheus.Register(collectors.NewGoCollector())
		_ = prometheus.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	})
}

// Handler exposes the Prometheus scrape handler for mounting on an HTTP
// router.
func Handler() http.Handler {
	return promhttp.Handler()
}

// AddTicksReceived increases the received counter for a symbol.
func AddTicksReceived(symbol, source string, n int) {
	if ticksReceived != nil && n > 0 {
		ticksReceived.WithLabelValues(symbol, source).Add(float64(n))
	}
}

// AddTicksDropped increases the dropped counter for a reason.
func AddTicksDropped(reason string, n int) {
	if ticksDropped != nil && n > 0 {
		ticksDropped.WithLabelValues(reason).Add(float64(n))
	}
}

// IncrementReconnect counts one reconnect attempt.
func IncrementReconnect() {
	if reconnects != nil {
		reconnects.Inc()
	}
}

// IncrementFallbackPoll counts one fallback REST fetch.
func IncrementFallbackPoll() {
	if fallbackPolls != nil {
		fallbackPolls.Inc()
	}
}
