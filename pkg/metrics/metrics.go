// Package metrics exposes Prometheus instrumentation for Scout and
// Supervisor runs, mounted on cmd/scout's admin HTTP surface.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the pipeline reports against. Singleton
// per process, mirroring Pulse's GetPatrolMetrics shape.
type Metrics struct {
	ScoutRunTotal       *prometheus.CounterVec
	ScoutRunSpentCents  *prometheus.HistogramVec
	SignalsPersisted    *prometheus.CounterVec
	StoriesTouched      *prometheus.CounterVec
	SupervisorRunTotal  *prometheus.CounterVec
	IssuesCreated       *prometheus.CounterVec
	SourcesPenalized    *prometheus.CounterVec
	EchoFlaggedStories  *prometheus.CounterVec
}

var (
	instance *Metrics
	once     sync.Once
)

// Get returns the process-wide Metrics singleton, registering its
// collectors on the default registry the first time it's called.
func Get() *Metrics {
	once.Do(func() {
		instance = newMetrics()
		prometheus.MustRegister(
			instance.ScoutRunTotal,
			instance.ScoutRunSpentCents,
			instance.SignalsPersisted,
			instance.StoriesTouched,
			instance.SupervisorRunTotal,
			instance.IssuesCreated,
			instance.SourcesPenalized,
			instance.EchoFlaggedStories,
		)
	})
	return instance
}

func newMetrics() *Metrics {
	return &Metrics{
		ScoutRunTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scout", Subsystem: "run", Name: "total",
			Help: "Total Scout runs by city and outcome",
		}, []string{"city", "outcome"}),
		ScoutRunSpentCents: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "scout", Subsystem: "run", Name: "spent_cents",
			Help:    "Budget cents spent per Scout run",
			Buckets: []float64{10, 50, 100, 250, 500, 1000, 2000, 5000},
		}, []string{"city"}),
		SignalsPersisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scout", Subsystem: "run", Name: "signals_persisted_total",
			Help: "Total new Signals persisted by city",
		}, []string{"city"}),
		StoriesTouched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scout", Subsystem: "run", Name: "stories_touched_total",
			Help: "Total Stories created or updated by city",
		}, []string{"city"}),
		SupervisorRunTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scout", Subsystem: "supervisor", Name: "run_total",
			Help: "Total supervisor runs by city and outcome",
		}, []string{"city", "outcome"}),
		IssuesCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scout", Subsystem: "supervisor", Name: "issues_created_total",
			Help: "Total ValidationIssues raised by city",
		}, []string{"city"}),
		SourcesPenalized: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scout", Subsystem: "supervisor", Name: "sources_penalized_total",
			Help: "Total source quality penalties reset to 1.0 by city",
		}, []string{"city"}),
		EchoFlaggedStories: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "scout", Subsystem: "supervisor", Name: "echo_flagged_stories_total",
			Help: "Total stories given an echo score by city",
		}, []string{"city"}),
	}
}
