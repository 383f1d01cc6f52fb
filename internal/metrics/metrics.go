// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "loaner"

var (
	// EventsRaised counts raised events. Labels: event
	EventsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "events",
		Name:      "raised_total",
		Help:      "Total events raised after a committed operation",
	}, []string{"event"})

	// ActionsRun counts action executions. Labels: action, kind, result
	ActionsRun = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "actions",
		Name:      "run_total",
		Help:      "Total action executions by outcome",
	}, []string{"action", "kind", "result"})

	// TasksProcessed counts worker outcomes. Labels: task, result (ok, retry, failed, exhausted)
	TasksProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "taskqueue",
		Name:      "processed_total",
		Help:      "Total queued tasks handled by workers",
	}, []string{"task", "result"})

	// Heartbeats counts device check-ins. Labels: outcome
	Heartbeats = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "devices",
		Name:      "heartbeats_total",
		Help:      "Total device heartbeats by outcome",
	}, []string{"outcome"})

	// WriteConflicts counts stale-version writes that had to be retried
	WriteConflicts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "devices",
		Name:      "write_conflicts_total",
		Help:      "Total optimistic concurrency conflicts on device writes",
	})

	// RemindersSent counts reminder emails. Labels: level
	RemindersSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "reminders",
		Name:      "sent_total",
		Help:      "Total loan reminders delivered",
	}, []string{"level"})

	// JobsRun counts periodic job runs. Labels: job, result
	JobsRun = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cron",
		Name:      "runs_total",
		Help:      "Total periodic job runs by outcome",
	}, []string{"job", "result"})

	// RequestDuration measures HTTP latency. Labels: method, route, status
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route", "status"})
)

// Handler serves the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
