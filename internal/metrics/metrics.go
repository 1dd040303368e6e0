// Package metrics exposes Prometheus instrumentation for the pulse engine.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dealerpulse/pulse/internal/engine"
)

var _ engine.SweepRecorder = (*Metrics)(nil)

// Metrics holds the engine's instruments and serves them over HTTP.
type Metrics struct {
	reg    *prometheus.Registry
	server *http.Server

	ingested *prometheus.CounterVec
	cards    prometheus.Gauge
	threads  prometheus.Gauge
	mutes    prometheus.Gauge
	sweepDur prometheus.Summary
}

// New registers all instruments on a fresh registry.
func New() *Metrics {
	m := &Metrics{reg: prometheus.NewRegistry()}

	m.ingested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "pulse",
		Name:      "ingested_total",
		Help:      "Cards processed by the admission pipeline, by outcome.",
	}, []string{"outcome"})
	m.cards = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pulse",
		Name:      "cards",
		Help:      "Cards currently surfaced in the store.",
	})
	m.threads = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pulse",
		Name:      "threads",
		Help:      "Distinct threads currently tracked.",
	})
	m.mutes = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "pulse",
		Name:      "mutes",
		Help:      "Mute entries currently installed.",
	})
	m.sweepDur = prometheus.NewSummary(prometheus.SummaryOpts{
		Namespace: "pulse",
		Name:      "sweep_duration_seconds",
		Help:      "Duration of sweep passes.",
	})

	m.reg.MustRegister(m.ingested, m.cards, m.threads, m.mutes, m.sweepDur)
	return m
}

// IncIngested adds n processed cards for one outcome
// (accepted, muted, duplicate, stale, invalid).
func (m *Metrics) IncIngested(outcome string, n int) {
	if n > 0 {
		m.ingested.WithLabelValues(outcome).Add(float64(n))
	}
}

// SetCounts updates the store, thread, and mute gauges.
func (m *Metrics) SetCounts(cards, threads, mutes int) {
	m.cards.Set(float64(cards))
	m.threads.Set(float64(threads))
	m.mutes.Set(float64(mutes))
}

// ObserveSweep records the duration of one sweep pass.
func (m *Metrics) ObserveSweep(d time.Duration) {
	m.sweepDur.Observe(d.Seconds())
}

// Handler returns the exposition handler, mostly for tests.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// Serve starts the exposition endpoint on addr. It blocks until the server
// exits; run it in a goroutine and use Shutdown to stop it.
func (m *Metrics) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	m.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	err := m.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the exposition endpoint, if it was started.
func (m *Metrics) Shutdown(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	return m.server.Shutdown(ctx)
}
