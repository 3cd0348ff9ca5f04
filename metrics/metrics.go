// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liontech",
		Name:      "http_requests_total",
		Help:      "HTTP requests by route, method and status code.",
	}, []string{"route", "method", "code"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "liontech",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route", "method"})

	OrdersCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "liontech",
		Name:      "orders_created_total",
		Help:      "Orders placed through checkout.",
	})

	PaymentWebhooks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liontech",
		Name:      "payment_webhooks_total",
		Help:      "Payment webhook deliveries by outcome.",
	}, []string{"status"})

	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liontech",
		Name:      "notifications_sent_total",
		Help:      "WhatsApp notifications by result.",
	}, []string{"result"})

	Backups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "liontech",
		Name:      "backups_total",
		Help:      "Backup runs by result.",
	}, []string{"result"})

	OrdersExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "liontech",
		Name:      "orders_expired_total",
		Help:      "Pending orders cancelled by the expiry job.",
	})
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.code = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack keeps websocket upgrades working through the middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	r.code = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Middleware records request count and latency labelled with the mux
// route template, so ids in paths do not explode cardinality.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if cr := mux.CurrentRoute(r); cr != nil {
			if tpl, err := cr.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)
		httpRequests.WithLabelValues(route, r.Method, strconv.Itoa(rec.code)).Inc()
		httpDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
