package types

import "time"

// Metrics defines the relay telemetry surface.
type Metrics interface {
	// Consumer metrics
	IncConsumeSuccess(eventType string)
	IncConsumeFailure(eventType string, reason string)
	IncDeferred(eventType string)
	ObserveConsumeLatency(eventType string, duration time.Duration)

	// Delivery metrics
	IncDeliverySuccess(transport string)
	IncDeliveryFailure(transport string, status int)
	ObserveDeliveryLatency(transport string, duration time.Duration)

	// Retry metrics
	IncRetryScheduled(eventType string)
	IncDeadLettered(eventType string)
}

// NoopMetrics is a no-op implementation of Metrics.
type NoopMetrics struct{}

func (m *NoopMetrics) IncConsumeSuccess(eventType string)                           { _ = eventType }
func (m *NoopMetrics) IncConsumeFailure(eventType string, reason string)            { _ = eventType }
func (m *NoopMetrics) IncDeferred(eventType string)                                 { _ = eventType }
func (m *NoopMetrics) ObserveConsumeLatency(eventType string, d time.Duration)      { _ = eventType }
func (m *NoopMetrics) IncDeliverySuccess(transport string)                          { _ = transport }
func (m *NoopMetrics) IncDeliveryFailure(transport string, status int)              { _ = transport }
func (m *NoopMetrics) ObserveDeliveryLatency(transport string, d time.Duration)     { _ = transport }
func (m *NoopMetrics) IncRetryScheduled(eventType string)                           { _ = eventType }
func (m *NoopMetrics) IncDeadLettered(eventType string)                             { _ = eventType }
