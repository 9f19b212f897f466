// Package telemetry exposes live load test progress as Prometheus metrics.
package telemetry

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wesleyorama2/loadgate/internal/loadtest"
)

const namespace = "loadgate"

// Collector records scheduler activity. It implements loadtest.Observer.
type Collector struct {
	registry *prometheus.Registry

	inFlight    prometheus.Gauge
	maxInFlight prometheus.Gauge
	requests    *prometheus.CounterVec
	latency     *prometheus.HistogramVec

	active atomic.Int64

	// peakMu keeps peak and the maxInFlight gauge in step
	peakMu sync.Mutex
	peak   int64
}

var _ loadtest.Observer = (*Collector)(nil)

// NewCollector creates a collector with its own registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight",
			Help:      "Requests currently in flight",
		}),
		maxInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_in_flight_max",
			Help:      "Highest number of requests in flight at once",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Completed requests by batch and outcome",
		}, []string{"batch", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "request_duration_seconds",
			Help:      "Request latency by batch and outcome",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15),
		}, []string{"batch", "outcome"}),
	}

	c.registry.MustRegister(c.inFlight, c.maxInFlight, c.requests, c.latency)
	return c
}

// RequestStarted implements loadtest.Observer.
func (c *Collector) RequestStarted(batch string) {
	n := c.active.Add(1)
	c.inFlight.Inc()

	c.peakMu.Lock()
	if n > c.peak {
		c.peak = n
		c.maxInFlight.Set(float64(n))
	}
	c.peakMu.Unlock()
}

// RequestFinished implements loadtest.Observer.
func (c *Collector) RequestFinished(batch string, result loadtest.RequestResult) {
	c.active.Add(-1)
	c.inFlight.Dec()

	outcome := string(result.Outcome())
	c.requests.WithLabelValues(batch, outcome).Inc()
	c.latency.WithLabelValues(batch, outcome).Observe(result.Latency.Seconds())
}

// MaxInFlight returns the highest concurrency observed so far.
func (c *Collector) MaxInFlight() int64 {
	c.peakMu.Lock()
	defer c.peakMu.Unlock()
	return c.peak
}

// Registry returns the collector's registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
