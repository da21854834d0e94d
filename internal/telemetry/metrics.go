// Package telemetry exposes the engine's operational counters over
// Prometheus. It is fed through the ingest.Observer hooks the router and
// workers call — never a participant in matching or sequencing.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"matchbook/internal/ingest"
)

// Metrics holds every counter/gauge/histogram this service registers. Each
// Metrics owns a private registry rather than the default global one, so
// independent instances can be constructed side by side.
type Metrics struct {
	registry *prometheus.Registry

	TradesTotal            *prometheus.CounterVec
	CommandsProcessedTotal *prometheus.CounterVec
	BatchesFailed          *prometheus.CounterVec
	RouterDroppedTotal     *prometheus.CounterVec
	BatchSize              *prometheus.HistogramVec
	BookDepth              *prometheus.GaugeVec
}

// New registers and returns a fresh metrics set under the "matchbook"
// namespace.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		TradesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchbook",
			Name:      "trades_total",
			Help:      "Trades matched, by symbol.",
		}, []string{"symbol"}),
		CommandsProcessedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchbook",
			Name:      "commands_processed_total",
			Help:      "Commands successfully applied to a book, by symbol.",
		}, []string{"symbol"}),
		BatchesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchbook",
			Name:      "batches_failed_total",
			Help:      "Batches rejected by the batch processor (e.g. InvalidSequence), by symbol.",
		}, []string{"symbol"}),
		RouterDroppedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "matchbook",
			Name:      "router_dropped_total",
			Help:      "Commands dropped by the router for an unregistered symbol.",
		}, []string{"symbol"}),
		BatchSize: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "matchbook",
			Name:      "batch_size",
			Help:      "Size of batches handed to the batch processor, by symbol.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}, []string{"symbol"}),
		BookDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "matchbook",
			Name:      "book_depth",
			Help:      "Distinct resting price levels, by symbol and side.",
		}, []string{"symbol", "side"}),
	}

	reg.MustRegister(m.TradesTotal, m.CommandsProcessedTotal, m.BatchesFailed, m.RouterDroppedTotal, m.BatchSize, m.BookDepth)
	return m
}

// Handler returns the HTTP handler for this registry's /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve starts an HTTP server exposing Handler at addr. It blocks until the
// server stops; callers typically run it in its own goroutine.
func (m *Metrics) Serve(addr string) error {
	log.Info().Str("addr", addr).Msg("telemetry server starting")
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}

// The methods below satisfy ingest.Observer, letting the ingestion pipeline
// report to Prometheus without importing it directly.
var _ ingest.Observer = (*Metrics)(nil)

func (m *Metrics) TradeMatched(symbol string) {
	m.TradesTotal.WithLabelValues(symbol).Inc()
}

func (m *Metrics) CommandsProcessed(symbol string, n int) {
	m.CommandsProcessedTotal.WithLabelValues(symbol).Add(float64(n))
}

func (m *Metrics) BatchFailed(symbol string) {
	m.BatchesFailed.WithLabelValues(symbol).Inc()
}

func (m *Metrics) BatchSizeObserved(symbol string, n int) {
	m.BatchSize.WithLabelValues(symbol).Observe(float64(n))
}

func (m *Metrics) RouterDropped(symbol string) {
	m.RouterDroppedTotal.WithLabelValues(symbol).Inc()
}

func (m *Metrics) DepthObserved(symbol string, bidLevels, askLevels int) {
	m.BookDepth.WithLabelValues(symbol, "bid").Set(float64(bidLevels))
	m.BookDepth.WithLabelValues(symbol, "ask").Set(float64(askLevels))
}
