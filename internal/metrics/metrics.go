// Package metrics collects and exposes Prometheus metrics for the marketplace.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records HTTP traffic and favorite changes.
type Collector struct {
	requests         *prometheus.CounterVec
	requestLatency   *prometheus.HistogramVec
	favoritesAdded   prometheus.Counter
	favoritesRemoved prometheus.Counter
	uploadedImages   prometheus.Counter
}

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bookmarket_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status_code"}),
		requestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bookmarket_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		favoritesAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookmarket_favorites_added_total",
			Help: "Favorites successfully added.",
		}),
		favoritesRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookmarket_favorites_removed_total",
			Help: "Favorites successfully removed.",
		}),
		uploadedImages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bookmarket_images_uploaded_total",
			Help: "Listing images written to storage.",
		}),
	}

	reg.MustRegister(
		c.requests,
		c.requestLatency,
		c.favoritesAdded,
		c.favoritesRemoved,
		c.uploadedImages,
	)

	return c
}

// RecordRequest records one finished HTTP request. route is the matched
// route pattern, not the raw path.
func (c *Collector) RecordRequest(method, route string, status int, elapsed time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	c.requests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	c.requestLatency.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (c *Collector) FavoriteAdded() {
	c.favoritesAdded.Inc()
}

func (c *Collector) FavoriteRemoved() {
	c.favoritesRemoved.Inc()
}

// ImagesUploaded adds n stored images.
func (c *Collector) ImagesUploaded(n int) {
	c.uploadedImages.Add(float64(n))
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
