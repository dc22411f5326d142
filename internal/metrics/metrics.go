// Package metrics records engine activity in Prometheus collectors.
//
// Recorder implements entities.Observer. It registers on its own registry
// rather than the global default so several engines, and tests, never
// collide on collector names.
package metrics

import (
	"sort"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/gbproject/normgraph/internal/entities"
)

const namespace = "normgraph"

// Recorder counts engine calls and the entities they produced.
type Recorder struct {
	registry *prom.Registry
	calls    *prom.CounterVec
	entities *prom.CounterVec
	duration *prom.HistogramVec
}

// New creates a Recorder with its collectors registered on a fresh
// registry.
func New() *Recorder {
	r := &Recorder{
		registry: prom.NewRegistry(),
		calls: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Engine calls by operation and outcome.",
		}, []string{"op", "outcome"}),
		entities: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "entities_total",
			Help:      "Entities in the tables of successful calls, by operation and type.",
		}, []string{"op", "type"}),
		duration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Engine call duration.",
			Buckets:   prom.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"op"}),
	}
	r.registry.MustRegister(r.calls, r.entities, r.duration)
	return r
}

// Observe implements entities.Observer.
func (r *Recorder) Observe(op entities.Operation, tables entities.Tables, err error, elapsed time.Duration) {
	r.duration.WithLabelValues(string(op)).Observe(elapsed.Seconds())
	if err != nil {
		r.calls.WithLabelValues(string(op), outcome(err)).Inc()
		return
	}
	r.calls.WithLabelValues(string(op), "ok").Inc()
	for t, n := range tables.Counts() {
		r.entities.WithLabelValues(string(op), string(t)).Add(float64(n))
	}
}

// outcome labels a failed call by fault code.
func outcome(err error) string {
	if code := entities.CodeOf(err); code != "" {
		return string(code)
	}
	return "error"
}

// Registry returns the registry holding the collectors, for exposition.
func (r *Recorder) Registry() *prom.Registry {
	return r.registry
}

// Sample is one counter value with its labels.
type Sample struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels"`
	Value  float64           `json:"value"`
}

// Snapshot gathers every counter and histogram count, sorted by name then
// labels. Histograms report their observation count.
func (r *Recorder) Snapshot() ([]Sample, error) {
	families, err := r.registry.Gather()
	if err != nil {
		return nil, err
	}
	samples := []Sample{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			s := Sample{Name: mf.GetName(), Labels: labels(m)}
			switch mf.GetType() {
			case dto.MetricType_COUNTER:
				s.Value = m.GetCounter().GetValue()
			case dto.MetricType_HISTOGRAM:
				s.Name += "_count"
				s.Value = float64(m.GetHistogram().GetSampleCount())
			default:
				continue
			}
			samples = append(samples, s)
		}
	}
	sort.SliceStable(samples, func(i, j int) bool {
		if samples[i].Name != samples[j].Name {
			return samples[i].Name < samples[j].Name
		}
		return labelKey(samples[i].Labels) < labelKey(samples[j].Labels)
	})
	return samples, nil
}

func labels(m *dto.Metric) map[string]string {
	out := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		out[lp.GetName()] = lp.GetValue()
	}
	return out
}

func labelKey(l map[string]string) string {
	keys := make([]string, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var s string
	for _, k := range keys {
		s += k + "=" + l[k] + ","
	}
	return s
}
