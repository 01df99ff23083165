// Package metrics exposes batch progress as prometheus metrics.
package metrics

import (
	"slices"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pagebatch/pagebatch/api"
	"github.com/pagebatch/pagebatch/batch"
	"github.com/pagebatch/pagebatch/operation"
)

const namespace = "pagebatch"

// outcomeSuccess labels items that didn't fail.
const outcomeSuccess = "success"

// unknownLabel replaces label values taken from items that aren't valid.
const unknownLabel = "unknown"

// CustomMetrics are the metrics recorded for batch items.
type CustomMetrics struct {
	Items            *prometheus.CounterVec
	ItemDuration     *prometheus.HistogramVec
	ResolveAttempts  *prometheus.CounterVec
	InstallAttempts  *prometheus.CounterVec
	StateTransitions *prometheus.CounterVec
}

var _ batch.Observer = &CustomMetrics{}

// RegisterCustomMetrics creates our custom metrics and registers them with
// reg.
func RegisterCustomMetrics(reg prometheus.Registerer) (*CustomMetrics, error) {
	m := &CustomMetrics{
		Items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_total",
			Help:      "Number of batch items processed, by outcome.",
		}, []string{"engine", "operation", "outcome"}),
		ItemDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "item_duration_seconds",
			Help:      "Time spent on a batch item, from resolution to session close.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"engine", "operation"}),
		ResolveAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "resolve_attempts_total",
			Help:      "Number of engine executable lookups.",
		}, []string{"engine"}),
		InstallAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "install_attempts_total",
			Help:      "Number of engine installs, by result.",
		}, []string{"engine", "result"}),
		StateTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_transitions_total",
			Help:      "Number of item lifecycle transitions, by target state.",
		}, []string{"state"}),
	}

	for _, c := range []prometheus.Collector{
		m.Items, m.ItemDuration, m.ResolveAttempts, m.InstallAttempts, m.StateTransitions,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// StateChanged counts the transition.
func (m *CustomMetrics) StateChanged(_ int, _, to batch.State) {
	m.StateTransitions.WithLabelValues(to.String()).Inc()
}

// ItemFinished records the outcome of an item.
func (m *CustomMetrics) ItemFinished(r batch.Report) {
	engine, op := engineLabel(r.Engine), operationLabel(r.Operation)

	outcome := outcomeSuccess
	if r.Err != nil {
		outcome = string(batch.KindOf(r.Err))
	}
	m.Items.WithLabelValues(engine, op, outcome).Inc()
	m.ItemDuration.WithLabelValues(engine, op).Observe(r.Duration.Seconds())

	if r.ResolveAttempts > 0 {
		m.ResolveAttempts.WithLabelValues(engine).Add(float64(r.ResolveAttempts))
	}
	if r.Installed {
		result := "ok"
		if r.InstallErr != nil {
			result = "failed"
		}
		m.InstallAttempts.WithLabelValues(engine, result).Inc()
	}
}

func engineLabel(e api.EngineType) string {
	if slices.Contains(api.Engines(), e) {
		return string(e)
	}
	return unknownLabel
}

func operationLabel(k operation.Kind) string {
	if _, err := operation.ParseKind(string(k)); err != nil {
		return unknownLabel
	}
	return string(k)
}
