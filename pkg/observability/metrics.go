package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes watcher activity as Prometheus collectors.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	callbacks *prometheus.CounterVec
	deferred  prometheus.Counter
	bindings  prometheus.Gauge
	watchers  *prometheus.GaugeVec
}

// NewMetrics creates the collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them on the default handler.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		callbacks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "observer_callbacks_total",
				Help: "Total number of watcher callbacks invoked",
			},
			[]string{"watcher", "attr"},
		),
		deferred: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "observer_deferred_watches_total",
				Help: "Total number of watches deferred until a type became ready",
			},
		),
		bindings: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "observer_hook_bindings",
				Help: "Number of hook bindings currently held by watchers",
			},
		),
		watchers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "observer_watchers",
				Help: "Number of watchers per state",
			},
			[]string{"state"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.callbacks, m.deferred, m.bindings, m.watchers)
	}
	return m
}

// CallbackFired records one callback invocation.
func (m *Metrics) CallbackFired(watcher, attr string) {
	if m == nil {
		return
	}
	m.callbacks.WithLabelValues(watcher, attr).Inc()
}

// WatchDeferred records a watch waiting on the lazy resolver.
func (m *Metrics) WatchDeferred() {
	if m == nil {
		return
	}
	m.deferred.Inc()
}

// BindingsChanged adjusts the live binding gauge by delta.
func (m *Metrics) BindingsChanged(delta int) {
	if m == nil {
		return
	}
	m.bindings.Add(float64(delta))
}

// StateChanged moves one watcher from one state gauge to another.
// Empty states are skipped.
func (m *Metrics) StateChanged(from, to string) {
	if m == nil {
		return
	}
	if from != "" {
		m.watchers.WithLabelValues(from).Dec()
	}
	if to != "" {
		m.watchers.WithLabelValues(to).Inc()
	}
}
