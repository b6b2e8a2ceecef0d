// Package metrics records pCDM computations with Prometheus collectors.
package metrics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"

	"github.com/san-kum/pcdm/internal/pcdm"
)

const namespace = "pcdm"

// Recorder owns a private registry so several recorders can coexist in tests.
type Recorder struct {
	registry *prometheus.Registry

	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram
	points      prometheus.Counter
	transitions *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	auto := promauto.With(reg)

	return &Recorder{
		registry: reg,
		runs: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "runs_total",
			Help:      "Backend runs by resulting state",
		}, []string{"state"}),
		runDuration: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "run_duration_seconds",
			Help:      "Wall time of backend runs",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}),
		points: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "points_computed_total",
			Help:      "Observation points evaluated by successful runs",
		}),
		transitions: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "backend",
			Name:      "state_transitions_total",
			Help:      "Backend lifecycle transitions",
		}, []string{"from", "to"}),
	}
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Observer counts state transitions of a backend.
func (r *Recorder) Observer() pcdm.StateObserver {
	return func(old, new pcdm.State) {
		r.transitions.WithLabelValues(old.String(), new.String()).Inc()
	}
}

// RunBackend runs b and records its outcome and duration.
func (r *Recorder) RunBackend(b *pcdm.Backend) pcdm.State {
	before := b.State()
	start := time.Now()
	state := b.Run()
	elapsed := time.Since(start)

	// already-ready backends return immediately and are not counted as work
	if before == pcdm.StateResultsReady {
		r.runs.WithLabelValues("cached").Inc()
		return state
	}

	r.runs.WithLabelValues(state.String()).Inc()
	r.runDuration.Observe(elapsed.Seconds())
	if state == pcdm.StateResultsReady {
		r.points.Add(float64(b.HorizontalCoords().Len()))
	}
	return state
}

// Snapshot flattens the registry into "name{label=value}" keys. Histograms
// contribute _count and _sum entries.
func (r *Recorder) Snapshot() (map[string]float64, error) {
	families, err := r.registry.Gather()
	if err != nil {
		return nil, err
	}

	out := make(map[string]float64)
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			key := mf.GetName() + formatLabels(m.GetLabel())
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				out[key] = m.GetCounter().GetValue()
			case dto.MetricType_GAUGE:
				out[key] = m.GetGauge().GetValue()
			case dto.MetricType_HISTOGRAM:
				h := m.GetHistogram()
				out[mf.GetName()+"_count"+formatLabels(m.GetLabel())] = float64(h.GetSampleCount())
				out[mf.GetName()+"_sum"+formatLabels(m.GetLabel())] = h.GetSampleSum()
			}
		}
	}
	return out, nil
}

func formatLabels(labels []*dto.LabelPair) string {
	if len(labels) == 0 {
		return ""
	}
	parts := make([]string, 0, len(labels))
	for _, l := range labels {
		parts = append(parts, fmt.Sprintf("%s=%s", l.GetName(), l.GetValue()))
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, ",") + "}"
}
