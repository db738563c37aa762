// Package metrics exposes station refresh and reading metrics in the
// Prometheus text format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nerrad567/gray-logic-weather/internal/sensor"
)

const metricPrefix = "vantage_"

const (
	resultSuccess = "success"
	resultError   = "error"
)

// Metrics bundles the bridge's collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	RefreshTotal    *prometheus.CounterVec
	RefreshErrors   *prometheus.CounterVec
	RefreshDuration *prometheus.HistogramVec
	Available       *prometheus.GaugeVec
	LastSuccess     *prometheus.GaugeVec
	Reading         *prometheus.GaugeVec
}

// New constructs and registers the collectors. Go runtime and process
// collectors are included.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RefreshTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "refresh_total",
				Help: "Station refreshes by result",
			},
			[]string{"entry_id", "result"},
		),
		RefreshErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "refresh_errors_total",
				Help: "Failed station refreshes by error kind",
			},
			[]string{"entry_id", "kind"},
		),
		RefreshDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "refresh_duration_seconds",
				Help:    "Station refresh latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"entry_id"},
		),
		Available: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "station_available",
				Help: "1 when the last refresh of the station succeeded",
			},
			[]string{"entry_id"},
		),
		LastSuccess: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "last_success_timestamp_seconds",
				Help: "Unix time of the last successful refresh",
			},
			[]string{"entry_id"},
		),
		Reading: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: metricPrefix + "reading",
				Help: "Latest numeric station reading in native units",
			},
			[]string{"entry_id", "key", "unit"},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RefreshTotal,
		m.RefreshErrors,
		m.RefreshDuration,
		m.Available,
		m.LastSuccess,
		m.Reading,
	)
	return m
}

// Registry returns the registry the collectors are registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRefresh records the outcome of one refresh. kind is the error
// classification and is ignored on success.
func (m *Metrics) ObserveRefresh(entryID string, err error, kind string, d time.Duration, at time.Time) {
	m.RefreshDuration.WithLabelValues(entryID).Observe(d.Seconds())
	if err != nil {
		m.RefreshTotal.WithLabelValues(entryID, resultError).Inc()
		m.RefreshErrors.WithLabelValues(entryID, kind).Inc()
		m.Available.WithLabelValues(entryID).Set(0)
		return
	}
	m.RefreshTotal.WithLabelValues(entryID, resultSuccess).Inc()
	m.Available.WithLabelValues(entryID).Set(1)
	m.LastSuccess.WithLabelValues(entryID).Set(float64(at.Unix()))
}

// SetReadings updates the reading gauges. Readings without a numeric value
// are removed so stale values do not linger.
func (m *Metrics) SetReadings(entryID string, readings []sensor.Reading) {
	for _, r := range readings {
		if f, ok := r.Float(); ok && r.Available {
			m.Reading.WithLabelValues(entryID, r.Key, r.Unit).Set(f)
			continue
		}
		m.Reading.DeletePartialMatch(prometheus.Labels{"entry_id": entryID, "key": r.Key})
	}
}

// RemoveStation drops every series labelled with entryID.
func (m *Metrics) RemoveStation(entryID string) {
	labels := prometheus.Labels{"entry_id": entryID}
	m.RefreshTotal.DeletePartialMatch(labels)
	m.RefreshErrors.DeletePartialMatch(labels)
	m.RefreshDuration.DeletePartialMatch(labels)
	m.Available.DeletePartialMatch(labels)
	m.LastSuccess.DeletePartialMatch(labels)
	m.Reading.DeletePartialMatch(labels)
}
