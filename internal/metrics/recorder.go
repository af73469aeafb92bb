// Package metrics counts reconciliation actions and passes on a private
// Prometheus registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/olusolaa/vm-reconciler/internal/core/domain"
)

const namespace = "vmr"

type Recorder struct {
	registry *prometheus.Registry
	actions  *prometheus.CounterVec
	passes   *prometheus.CounterVec
}

func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Reconciliation actions by kind and outcome.",
		}, []string{"action", "outcome"}),
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "passes_total",
			Help:      "Reconciliation passes by outcome.",
		}, []string{"outcome"}),
	}
	r.registry.MustRegister(r.actions, r.passes)
	return r
}

func (r *Recorder) ObserveAction(action domain.Action, status domain.ActionStatus) {
	r.actions.WithLabelValues(action.String(), string(status)).Inc()
}

func (r *Recorder) ObservePass(failed bool) {
	outcome := "success"
	if failed {
		outcome = "failure"
	}
	r.passes.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteToTextfile writes the current counters in the node_exporter textfile
// format.
func (r *Recorder) WriteToTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}
