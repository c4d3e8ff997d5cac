package monitor

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/airsstack/overseer"
)

const namespace = "overseer"

// Prometheus exports supervision events as metrics.
type Prometheus struct {
	events      *prometheus.CounterVec
	restarts    *prometheus.CounterVec
	failures    *prometheus.CounterVec
	escalations *prometheus.CounterVec
	childState  *prometheus.GaugeVec
}

// NewPrometheus registers the supervision metrics with reg. A nil reg uses
// the default registerer.
func NewPrometheus(reg prometheus.Registerer) *Prometheus {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Prometheus{
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_total",
				Help:      "Total number of supervision events by kind",
			},
			[]string{"supervisor", "kind"},
		),
		restarts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "child_restarts_total",
				Help:      "Total number of child restarts",
			},
			[]string{"supervisor", "child"},
		),
		failures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "child_failures_total",
				Help:      "Total number of child failures",
			},
			[]string{"supervisor", "child"},
		),
		escalations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "escalations_total",
				Help:      "Total number of restart budget exhaustions",
			},
			[]string{"supervisor"},
		),
		childState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "child_state",
				Help:      "Current child state (0=starting, 1=running, 2=stopping, 3=stopped, 4=failed)",
			},
			[]string{"supervisor", "child"},
		),
	}
}

func (p *Prometheus) Record(e overseer.SupervisionEvent) {
	sup := e.SupervisorName
	p.events.WithLabelValues(sup, e.Kind.String()).Inc()

	child := string(e.ChildID)
	switch e.Kind {
	case overseer.ChildRestarted:
		p.restarts.WithLabelValues(sup, child).Inc()
	case overseer.ChildFailed:
		p.failures.WithLabelValues(sup, child).Inc()
	case overseer.RestartLimitExceeded:
		p.escalations.WithLabelValues(sup).Inc()
	case overseer.ChildRemoved:
		p.childState.DeleteLabelValues(sup, child)
		return
	}

	switch e.Kind {
	case overseer.ChildStarted, overseer.ChildRestarted, overseer.ChildStopped, overseer.ChildFailed:
		p.childState.WithLabelValues(sup, child).Set(float64(e.NewState))
	}
}
