// ABOUTME: Prometheus metrics for the dev backend, served on /metrics
// ABOUTME: Each Server owns its registry so several can run in one process

package devserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Login outcomes recorded by the login handler
const (
	outcomeSuccess            = "success"
	outcomeInvalidCredentials = "invalid_credentials"
	outcomeRateLimited        = "rate_limited"
	outcomeCaptchaRequired    = "captcha_required"
)

// Metrics holds the dev backend's collectors
type Metrics struct {
	registry *prometheus.Registry

	LoginAttempts   *prometheus.CounterVec
	EventsPublished *prometheus.CounterVec
	EventDeliveries prometheus.Counter
	RequestDuration *prometheus.HistogramVec
}

// NewMetrics registers every collector on a fresh registry. clients reports the
// number of connected realtime clients at scrape time.
func NewMetrics(clients func() int) *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		LoginAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fastfood_dev_login_attempts_total",
				Help: "Login attempts by outcome",
			},
			[]string{"outcome"},
		),
		EventsPublished: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fastfood_dev_events_published_total",
				Help: "Realtime events published by name",
			},
			[]string{"event"},
		),
		EventDeliveries: factory.NewCounter(prometheus.CounterOpts{
			Name: "fastfood_dev_event_deliveries_total",
			Help: "Realtime frames queued to connected clients",
		}),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fastfood_dev_http_request_duration_seconds",
				Help:    "HTTP request latency by route and status",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
	}
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "fastfood_dev_realtime_clients",
		Help: "Connected realtime clients",
	}, func() float64 { return float64(clients()) })

	return m
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Instrument records request latency labeled by the matched route template
func (m *Metrics) Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		route := "unmatched"
		if cur := mux.CurrentRoute(r); cur != nil {
			if tpl, err := cur.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		m.RequestDuration.
			WithLabelValues(r.Method, route, strconv.Itoa(wrapped.statusCode)).
			Observe(time.Since(start).Seconds())
	})
}
