package observability

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)

	StreamConnectionsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chat_stream_connections_active",
			Help: "Current number of open live delivery streams",
		},
		[]string{"service"},
	)

	MessagesIngestedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_ingested_total",
			Help: "Messages durably persisted by the send path",
		},
		[]string{"service"},
	)

	BrokerDegradedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_broker_degraded_total",
			Help: "Broker operations that failed and were tolerated",
		},
		[]string{"service", "op"},
	)

	ReplayFallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_replay_fallback_total",
			Help: "Stream replays served from the durable store instead of the broker log",
		},
		[]string{"service"},
	)
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack keeps websocket upgrades working behind the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return h.Hijack()
}

func MetricsMiddleware(serviceName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			HttpRequestsTotal.WithLabelValues(
				serviceName, r.Method, r.URL.Path, strconv.Itoa(rec.status),
			).Inc()
			HttpRequestDuration.WithLabelValues(
				serviceName, r.Method, r.URL.Path,
			).Observe(time.Since(start).Seconds())
		})
	}
}
