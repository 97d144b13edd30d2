package harness

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	nativecallback "github.com/opd-ai/nativecallback"
)

// Metrics records invocation outcomes. A nil *Metrics records nothing.
type Metrics struct {
	invocations *prometheus.CounterVec
	failures    *prometheus.CounterVec
	latency     *prometheus.HistogramVec
}

// NewMetrics creates the harness collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callbackbench",
			Name:      "invocations_total",
			Help:      "Completed callback invocations by requested mode and reported status.",
		}, []string{"mode", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callbackbench",
			Name:      "failures_total",
			Help:      "Failed callback invocations by requested mode and reason.",
		}, []string{"mode", "reason"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "callbackbench",
			Name:      "invocation_latency_seconds",
			Help:      "Time from invocation until the callback value is available.",
			Buckets:   prometheus.ExponentialBuckets(1e-7, 4, 14),
		}, []string{"mode"}),
	}

	for _, c := range []prometheus.Collector{m.invocations, m.failures, m.latency} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func modeLabel(nativeAsync bool) string {
	if nativeAsync {
		return "async"
	}
	return "sync"
}

func (m *Metrics) observe(nativeAsync bool, status nativecallback.Status, latency time.Duration) {
	if m == nil {
		return
	}
	mode := modeLabel(nativeAsync)
	m.invocations.WithLabelValues(mode, status.String()).Inc()
	m.latency.WithLabelValues(mode).Observe(latency.Seconds())
}

func (m *Metrics) fail(nativeAsync bool, err error) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(modeLabel(nativeAsync), failureReason(err)).Inc()
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrMissingCompletion):
		return "missing_completion"
	case errors.Is(err, ErrUnexpectedStatus):
		return "unexpected_status"
	case errors.Is(err, ErrUnexpectedPayload):
		return "unexpected_payload"
	case errors.Is(err, nativecallback.ErrNilCallback):
		return "nil_callback"
	default:
		return "other"
	}
}
