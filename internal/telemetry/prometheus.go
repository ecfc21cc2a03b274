package telemetry

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/dshills/campaignsearch/pkg/types"
)

const namespace = "campaignsearch"

// Metrics holds the Prometheus collectors fed by the recorder
type Metrics struct {
	Requests      *prometheus.CounterVec
	PhaseDuration *prometheus.HistogramVec
	Failures      prometheus.Counter
	Sampled       prometheus.Counter
}

// NewMetrics creates the search collectors and registers them on reg
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "search",
				Name:      "requests_total",
				Help:      "Total number of searches by mode and whether anything was returned",
			},
			[]string{"mode", "has_results"},
		),
		PhaseDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "search",
				Name:      "phase_duration_seconds",
				Help:      "Search phase duration in seconds",
				Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"phase"},
		),
		Failures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "metrics_failures_total",
			Help:      "Search metric captures that failed and were dropped",
		}),
		Sampled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "sampled_total",
			Help:      "Searches that received the expanded quality measurement",
		}),
	}
}

func (m *Metrics) observe(mode string, hasResults, sampled bool, timings types.SearchTimings) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(mode, strconv.FormatBool(hasResults)).Inc()
	if sampled {
		m.Sampled.Inc()
	}
	phases := map[string]float64{
		"embedding":     timings.Embedding.Seconds(),
		"vector_search": timings.VectorSearch.Seconds(),
		"text_search":   timings.TextSearch.Seconds(),
		"fusion":        timings.Fusion.Seconds(),
		"conversion":    timings.Conversion.Seconds(),
		"total":         timings.Total.Seconds(),
	}
	for phase, seconds := range phases {
		m.PhaseDuration.WithLabelValues(phase).Observe(seconds)
	}
}

func (m *Metrics) failed() {
	if m == nil {
		return
	}
	m.Failures.Inc()
}
