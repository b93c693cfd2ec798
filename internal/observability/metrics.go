package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	sends = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sockctl",
			Subsystem: "outbound",
			Name:      "sends_total",
			Help:      "Payloads delivered to the transport.",
		},
		[]string{"client"},
	)
	sendAttempts = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "sockctl",
			Subsystem: "outbound",
			Name:      "send_readiness_checks",
			Help:      "Readiness checks spent per delivered payload.",
			Buckets:   []float64{1, 2, 3, 5, 8, 13, 15},
		},
		[]string{"client"},
	)
	cancellations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sockctl",
			Subsystem: "outbound",
			Name:      "cancelled_total",
			Help:      "Payloads cancelled instead of delivered.",
		},
		[]string{"client", "reason"},
	)
	reconnects = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sockctl",
			Subsystem: "lifecycle",
			Name:      "reconnects_total",
			Help:      "Transport errors answered with a redial.",
		},
		[]string{"client"},
	)
	inbound = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "sockctl",
			Subsystem: "inbound",
			Name:      "messages_total",
			Help:      "Payloads received from the transport.",
		},
		[]string{"client"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(sends, sendAttempts, cancellations, reconnects, inbound)
	})
}

func RecordSend(client string, readinessChecks int) {
	RegisterMetrics()
	sends.WithLabelValues(client).Inc()
	sendAttempts.WithLabelValues(client).Observe(float64(readinessChecks))
}

func RecordCancel(client, reason string) {
	RegisterMetrics()
	cancellations.WithLabelValues(client, reason).Inc()
}

func RecordReconnect(client string) {
	RegisterMetrics()
	reconnects.WithLabelValues(client).Inc()
}

func RecordInbound(client string) {
	RegisterMetrics()
	inbound.WithLabelValues(client).Inc()
}
