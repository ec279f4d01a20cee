// Package metrics exposes pipeline counters and stage latencies in the
// Prometheus text format.
package metrics

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its registry so several instances can coexist in tests.
// A nil *Metrics records nothing.
type Metrics struct {
	registry   *prometheus.Registry
	dispatches prometheus.Counter
	runs       *prometheus.CounterVec
	stages     *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		dispatches: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "clip_translate_clipboard_dispatches_total",
			Help: "Clipboard changes handed to the pipeline.",
		}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "clip_translate_runs_total",
			Help: "Pipeline runs by source and outcome.",
		}, []string{"source", "outcome"}),
		stages: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "clip_translate_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
		}, []string{"stage"}),
	}
	m.registry.MustRegister(m.dispatches, m.runs, m.stages)
	return m
}

func (m *Metrics) RecordDispatch() {
	if m == nil {
		return
	}
	m.dispatches.Inc()
}

func (m *Metrics) RecordRun(source, outcome string) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stages.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Metrics listening on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
