// Package metrics exposes Prometheus collectors for the checkout flow.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	MetricCaptureTotal        = "gopay_capture_total"
	MetricNotifyTotal         = "gopay_notify_total"
	MetricGatewayCallDuration = "gopay_gateway_call_duration_seconds"
	MetricGatewayErrorsTotal  = "gopay_gateway_errors_total"
)

// Metrics records payment outcomes. Safe for concurrent use.
type Metrics struct {
	captures        *prometheus.CounterVec
	notifications   *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
	gatewayErrors   *prometheus.CounterVec
}

// NewMetrics builds the collectors without registering them.
func NewMetrics() *Metrics {
	return &Metrics{
		captures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricCaptureTotal,
				Help: "Capture attempts by outcome",
			},
			[]string{"outcome"},
		),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricNotifyTotal,
				Help: "GoPay notifications by outcome",
			},
			[]string{"outcome"},
		),
		gatewayDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    MetricGatewayCallDuration,
				Help:    "Duration of GoPay API calls in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 15},
			},
			[]string{"op"},
		),
		gatewayErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricGatewayErrorsTotal,
				Help: "Failed GoPay API calls",
			},
			[]string{"op"},
		),
	}
}

func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.captures,
		m.notifications,
		m.gatewayDuration,
		m.gatewayErrors,
	}
}

func (m *Metrics) CaptureOutcome(outcome string) {
	m.captures.WithLabelValues(outcome).Inc()
}

func (m *Metrics) NotifyOutcome(outcome string) {
	m.notifications.WithLabelValues(outcome).Inc()
}

// GatewayCall observes one GoPay request. op is authorize, create or retrieve.
func (m *Metrics) GatewayCall(op string, d time.Duration, err error) {
	m.gatewayDuration.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		m.gatewayErrors.WithLabelValues(op).Inc()
	}
}
