package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/renangcr/devProperties/internal/authstate"
)

// AuthMetrics tracks per-client auth state instances and route guard outcomes.
type AuthMetrics struct {
	InstancesActive prometheus.Gauge
	InstancesOpened prometheus.Counter
	Notifications   *prometheus.CounterVec
	GuardDecisions  *prometheus.CounterVec
}

var _ authstate.Metrics = (*AuthMetrics)(nil)

// NewAuthMetrics creates and registers auth metrics on the given registry.
func NewAuthMetrics(reg prometheus.Registerer) *AuthMetrics {
	m := &AuthMetrics{
		InstancesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "instances_active",
			Help:      "Number of live per-client auth state instances.",
		}),
		InstancesOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "instances_opened_total",
			Help:      "Total number of auth state instances created.",
		}),
		Notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "notifications_total",
			Help:      "Total number of applied auth state notifications, by outcome.",
		}, []string{"outcome"}),
		GuardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "auth",
			Name:      "guard_decisions_total",
			Help:      "Total number of route guard decisions, by access level and decision.",
		}, []string{"access", "decision"}),
	}

	reg.MustRegister(m.InstancesActive, m.InstancesOpened, m.Notifications, m.GuardDecisions)
	return m
}

func (m *AuthMetrics) InstanceOpened() {
	m.InstancesOpened.Inc()
	m.InstancesActive.Inc()
}

func (m *AuthMetrics) InstanceClosed() {
	m.InstancesActive.Dec()
}

func (m *AuthMetrics) NotificationApplied(outcome authstate.Outcome) {
	m.Notifications.WithLabelValues(string(outcome)).Inc()
}

func (m *AuthMetrics) GuardDecision(access authstate.Access, decision authstate.Decision) {
	m.GuardDecisions.WithLabelValues(access.String(), decision.String()).Inc()
}
