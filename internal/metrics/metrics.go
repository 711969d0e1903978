// Package metrics exposes prometheus collectors for the call flow.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const Namespace = "randomic"

// Attempt outcomes.
const (
	AttemptStarted   = "started"
	AttemptConnected = "connected"
	AttemptTimeout   = "timeout"
	AttemptClosed    = "closed"
	AttemptError     = "error"
)

type Metrics struct {
	Transitions   *prometheus.CounterVec
	Attempts      *prometheus.CounterVec
	Notifications *prometheus.CounterVec
	Reconnects    *prometheus.CounterVec
	Matches       prometheus.Counter
	CallDuration  prometheus.Histogram
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "session",
			Name:      "transitions_total",
			Help:      "Session status transitions",
		}, []string{"from", "to", "event"}),
		Attempts: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "call",
			Name:      "attempts_total",
			Help:      "Call Attempts by outcome",
		}, []string{"outcome"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "session",
			Name:      "notifications_total",
			Help:      "User-visible notifications by error kind",
		}, []string{"kind"}),
		Reconnects: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "transport",
			Name:      "reconnects_total",
			Help:      "Reconnections by component and mode",
		}, []string{"component", "mode"}),
		Matches: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "session",
			Name:      "matches_total",
			Help:      "Matches assigned by the matchmaking service",
		}),
		CallDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "call",
			Name:      "duration_seconds",
			Help:      "Length of connected calls",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1800},
		}),
	}
}

// NewUnregistered returns collectors bound to a private registry.
func NewUnregistered() *Metrics {
	return New(prometheus.NewRegistry())
}
