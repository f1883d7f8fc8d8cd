// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/relabs-tech/headtrack/internal/fault"
	"github.com/relabs-tech/headtrack/internal/tracker"
)

// Metrics counts what the node does. It has its own registry so tests and
// multiple nodes in one process do not collide.
type Metrics struct {
	registry *prometheus.Registry

	dispatches   *prometheus.CounterVec
	calibrations prometheus.Counter
	errors       *prometheus.CounterVec
	linkUp       prometheus.Gauge
	sampling     prometheus.Gauge
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "headtrack_dispatches_total",
			Help: "Samples delivered, by transport mode.",
		}, []string{"mode"}),
		calibrations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "headtrack_calibration_dispatches_total",
			Help: "Samples delivered tagged for calibration.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "headtrack_errors_total",
			Help: "Errors reported to the error sink, by severity.",
		}, []string{"severity"}),
		linkUp: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "headtrack_link_connected",
			Help: "1 while a wireless peer is connected.",
		}),
		sampling: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "headtrack_sampling_enabled",
			Help: "1 while the sampling loop is running.",
		}),
	}
	m.registry.MustRegister(m.dispatches, m.calibrations, m.errors, m.linkUp, m.sampling)
	return m
}

// Observe is a tracker.Observer.
func (m *Metrics) Observe(d tracker.Dispatch) {
	if d.Calibration {
		m.calibrations.Inc()
		return
	}
	m.dispatches.WithLabelValues(d.Mode.String()).Inc()
}

// CountError is a fault.LogSink forwarder.
func (m *Metrics) CountError(err error) {
	m.errors.WithLabelValues(fault.Severity(err)).Inc()
}

func (m *Metrics) setStatus(s Status) {
	m.linkUp.Set(boolGauge(s.LinkConnected))
	m.sampling.Set(boolGauge(s.Sampling))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
