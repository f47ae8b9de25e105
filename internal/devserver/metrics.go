package devserver

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// metrics are registered on a per-server registry so several servers can
// run in one process.
type metrics struct {
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	authorizations  *prometheus.CounterVec
	logins          *prometheus.CounterVec
	bytesStored     prometheus.Counter
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &metrics{
		registry: reg,
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharefold_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sharefold_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		authorizations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharefold_transfer_authorizations_total",
				Help: "Transfer authorizations issued",
			},
			[]string{"direction"},
		),
		logins: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sharefold_logins_total",
				Help: "Login attempts",
			},
			[]string{"result"},
		),
		bytesStored: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sharefold_blob_bytes_stored_total",
				Help: "Bytes written through locally presigned uploads",
			},
		),
	}
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *metrics) recordRequest(method, route string, status int, d time.Duration) {
	m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
