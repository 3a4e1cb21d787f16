package host

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for plugin invocations.
type Metrics struct {
	InvocationsTotal   *prometheus.CounterVec
	InvocationDuration *prometheus.HistogramVec
}

// NewMetrics creates the invocation collectors and registers them on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		InvocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "edgeplug_invocations_total",
				Help: "Total number of plugin Process calls",
			},
			[]string{"plugin", "success"},
		),
		InvocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "edgeplug_invocation_duration_seconds",
				Help:    "Plugin Process duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"plugin"},
		),
	}

	reg.MustRegister(
		m.InvocationsTotal,
		m.InvocationDuration,
	)

	return m
}

func (m *Metrics) observe(pluginID string, success bool, d time.Duration) {
	if m == nil {
		return
	}
	m.InvocationsTotal.WithLabelValues(pluginID, strconv.FormatBool(success)).Inc()
	m.InvocationDuration.WithLabelValues(pluginID).Observe(d.Seconds())
}
