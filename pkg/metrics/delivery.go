package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DeliveryMetrics records outcomes and latency of outbound lead deliveries.
// Labels stay low-cardinality: outcome is one of success/failed/retrying and
// status_class buckets HTTP codes by hundreds.
type DeliveryMetrics struct {
	attempts *prometheus.CounterVec
	duration *prometheus.HistogramVec
	retries  prometheus.Counter
}

// NewDeliveryMetrics registers the delivery metrics on the provided registerer.
func NewDeliveryMetrics(reg prometheus.Registerer) *DeliveryMetrics {
	if reg == nil {
		return &DeliveryMetrics{}
	}
	attempts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "delivery_attempts_total",
		Help: "Delivery attempts by outcome and HTTP status class.",
	}, []string{"outcome", "status_class"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "delivery_duration_seconds",
		Help:    "Duration of outbound delivery requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	retries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "delivery_retries_scheduled_total",
		Help: "Retries scheduled after retryable delivery failures.",
	})
	reg.MustRegister(attempts, duration, retries)
	return &DeliveryMetrics{
		attempts: attempts,
		duration: duration,
		retries:  retries,
	}
}

// ObserveAttempt records one completed delivery attempt.
func (d *DeliveryMetrics) ObserveAttempt(outcome string, statusCode int, duration time.Duration) {
	if d == nil || d.attempts == nil {
		return
	}
	d.attempts.WithLabelValues(normalizeLabel(outcome), statusClass(statusCode)).Inc()
	d.duration.WithLabelValues(normalizeLabel(outcome)).Observe(duration.Seconds())
}

// IncRetryScheduled increments the scheduled-retry counter.
func (d *DeliveryMetrics) IncRetryScheduled() {
	if d == nil || d.retries == nil {
		return
	}
	d.retries.Inc()
}

func statusClass(code int) string {
	if code <= 0 {
		return "none"
	}
	return strconv.Itoa(code/100) + "xx"
}
