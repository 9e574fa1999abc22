package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveSessions    prometheus.Gauge
	SessionEvents     *prometheus.CounterVec
	Interruptions     *prometheus.CounterVec
	ApprovalDecisions *prometheus.CounterVec
	SweptRequests     prometheus.Counter
	ResponseLatency   prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of dialogue sessions currently in an active status.",
		}),
		SessionEvents: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Dialogue session events by kind.",
		}, []string{"event"}),
		Interruptions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "interruptions_total",
			Help:      "Detected interruptions by intent.",
		}, []string{"intent"}),
		ApprovalDecisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "approval_decisions_total",
			Help:      "Approval request terminal transitions by status.",
		}, []string{"status"}),
		SweptRequests: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "swept_requests_total",
			Help:      "Pending approval requests expired by the timeout sweeper.",
		}),
		ResponseLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "approval_response_seconds",
			Help:      "Latency between approval request creation and the recorded decision.",
			Buckets:   []float64{1, 10, 60, 300, 1800, 7200, 14400, 86400},
		}),
	}
}

// ObserveResponseLatency records the creation-to-decision delay of a request.
func (m *Metrics) ObserveResponseLatency(d time.Duration) {
	m.ResponseLatency.Observe(d.Seconds())
}

// Handler exposes the default registry for scraping.
func Handler() http.Handler {
	return promhttp.Handler()
}
