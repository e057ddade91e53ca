// Package metrics provides the Prometheus implementation of the relay
// telemetry interface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reportrelay/internal/relay/types"
)

// PrometheusMetrics implements types.Metrics using Prometheus.
type PrometheusMetrics struct {
	consumeSuccess  *prometheus.CounterVec
	consumeFailure  *prometheus.CounterVec
	deferred        *prometheus.CounterVec
	consumeLatency  *prometheus.HistogramVec
	deliverySuccess *prometheus.CounterVec
	deliveryFailure *prometheus.CounterVec
	deliveryLatency *prometheus.HistogramVec
	retryScheduled  *prometheus.CounterVec
	deadLettered    *prometheus.CounterVec
}

var _ types.Metrics = (*PrometheusMetrics)(nil)

// New creates and registers all relay metrics on the default registry.
func New() *PrometheusMetrics {
	return &PrometheusMetrics{
		consumeSuccess: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_consume_success_total",
			Help: "Events processed and acknowledged",
		}, []string{"type"}),
		consumeFailure: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_consume_failure_total",
			Help: "Events dropped or requeued, by reason",
		}, []string{"type", "reason"}),
		deferred: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_deferred_total",
			Help: "Events requeued because their notBefore was in the future",
		}, []string{"type"}),
		consumeLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_consume_duration_seconds",
			Help:    "Time spent fanning out one event",
			Buckets: prometheus.DefBuckets,
		}, []string{"type"}),
		deliverySuccess: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_delivery_success_total",
			Help: "Deliveries matching the subscriber's expected status",
		}, []string{"transport"}),
		deliveryFailure: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_delivery_failure_total",
			Help: "Deliveries with a wrong or missing status code",
		}, []string{"transport", "status"}),
		deliveryLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_delivery_duration_seconds",
			Help:    "Outbound delivery call duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"transport"}),
		retryScheduled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_retry_scheduled_total",
			Help: "Retry events published",
		}, []string{"type"}),
		deadLettered: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_dead_lettered_total",
			Help: "Deliveries that exhausted their retry budget",
		}, []string{"type"}),
	}
}

func (m *PrometheusMetrics) IncConsumeSuccess(eventType string) {
	m.consumeSuccess.WithLabelValues(eventType).Inc()
}

func (m *PrometheusMetrics) IncConsumeFailure(eventType, reason string) {
	m.consumeFailure.WithLabelValues(eventType, reason).Inc()
}

func (m *PrometheusMetrics) IncDeferred(eventType string) {
	m.deferred.WithLabelValues(eventType).Inc()
}

func (m *PrometheusMetrics) ObserveConsumeLatency(eventType string, d time.Duration) {
	m.consumeLatency.WithLabelValues(eventType).Observe(d.Seconds())
}

func (m *PrometheusMetrics) IncDeliverySuccess(transport string) {
	m.deliverySuccess.WithLabelValues(transport).Inc()
}

func (m *PrometheusMetrics) IncDeliveryFailure(transport string, status int) {
	m.deliveryFailure.WithLabelValues(transport, strconv.Itoa(status)).Inc()
}

func (m *PrometheusMetrics) ObserveDeliveryLatency(transport string, d time.Duration) {
	m.deliveryLatency.WithLabelValues(transport).Observe(d.Seconds())
}

func (m *PrometheusMetrics) IncRetryScheduled(eventType string) {
	m.retryScheduled.WithLabelValues(eventType).Inc()
}

func (m *PrometheusMetrics) IncDeadLettered(eventType string) {
	m.deadLettered.WithLabelValues(eventType).Inc()
}

// Handler returns the /metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
