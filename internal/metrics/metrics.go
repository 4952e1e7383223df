package metrics

import (
	"net/http"
	"strconv"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	LookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookup_requests_total",
		Help: "Paid lookups by kind and settlement outcome",
	}, []string{"kind", "outcome"})

	RefundsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "lookup_refunds_total",
		Help: "Credit refunds by reason code",
	}, []string{"reason"})

	CreditsSpent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "credits_spent_total",
		Help: "Credits debited (net of refunds is derivable from lookup_refunds_total)",
	}, []string{"kind"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Request latency",
		Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15},
	}, []string{"method", "status"})
)

// Instrument records latency and status for every request.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(wrapped, r)

		httpRequestDuration.
			WithLabelValues(r.Method, strconv.Itoa(wrapped.Status())).
			Observe(time.Since(start).Seconds())
	})
}
