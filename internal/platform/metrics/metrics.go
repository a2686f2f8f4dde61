package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	QRIssued        prometheus.Counter
	QRRedeemed      *prometheus.CounterVec
	AuditDropped    prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		Requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idgate_requests_total",
			Help: "Verification requests by operation and result code",
		}, []string{"operation", "code"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idgate_request_duration_seconds",
			Help:    "Verification request duration by operation",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		QRIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "idgate_qr_issued_total",
			Help: "QR tokens issued",
		}),
		QRRedeemed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "idgate_qr_redeemed_total",
			Help: "QR redemption attempts by outcome",
		}, []string{"outcome"}),
		AuditDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "idgate_audit_dropped_total",
			Help: "Audit snapshots dropped because the trail queue was full",
		}),
	}
}

// ObserveRequest records one finished operation.
func (m *Metrics) ObserveRequest(operation, code string, d time.Duration) {
	m.Requests.WithLabelValues(operation, code).Inc()
	m.RequestDuration.WithLabelValues(operation).Observe(d.Seconds())
}
