// Package metrics exposes Prometheus metrics for the catch log: HTTP request
// counters and latencies, plus live per-type catch counts read from storage
// at scrape time.
package metrics

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/catchlog/internal/model"
)

const namespace = "catchlog"

// StatsFunc returns current catch counts. The service's Stats method fits.
type StatsFunc func(ctx context.Context) (*model.Stats, error)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
}

// New creates and registers every metric. statsFn may be nil, in which case
// catch counts are not exported.
func New(statsFn StatsFunc, logger *slog.Logger) (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.requestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status_code"},
	)
	m.requestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time taken for HTTP requests",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	m.inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "http_requests_in_flight",
		Help:      "Number of HTTP requests currently being served",
	})

	cs := []prometheus.Collector{
		m.requestsTotal,
		m.requestDuration,
		m.inFlight,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	if statsFn != nil {
		cs = append(cs, newCatchCollector(statsFn, logger))
	}

	for _, c := range cs {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("metrics: registering collector: %w", err)
		}
	}
	return m, nil
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format. A failing
// collector drops its own series instead of failing the whole scrape.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
}

// RequestStarted and RequestFinished bracket one HTTP request.
func (m *Metrics) RequestStarted() {
	m.inFlight.Inc()
}

func (m *Metrics) RequestFinished(method, route string, status int, d time.Duration) {
	m.inFlight.Dec()
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
