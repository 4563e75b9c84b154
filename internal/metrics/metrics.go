// Package metrics defines Prometheus collectors for PolicyPipe.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// EventsProcessed counts inbound events by the state that handled them
	// and the processing outcome.
	EventsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policypipe_events_total",
			Help: "Count of processed inbound events",
		},
		[]string{"state", "status"},
	)

	// EventDuration tracks how long one event takes end to end, including
	// collaborator calls.
	EventDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "policypipe_event_duration_seconds",
			Help:    "Time taken to process one inbound event",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"state"},
	)

	// CollaboratorFailures counts degraded external calls by collaborator.
	CollaboratorFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "policypipe_collaborator_failures_total",
			Help: "Count of failed extraction and completion calls",
		},
		[]string{"collaborator"},
	)

	// PoliciesIssued counts rendered policy documents.
	PoliciesIssued = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "policypipe_policies_issued_total",
			Help: "Count of issued insurance policies",
		},
	)

	// ActiveConversations tracks users currently inside the intake flow.
	ActiveConversations = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "policypipe_active_conversations",
			Help: "Current number of in-progress intake conversations",
		},
	)
)

// Collaborator label values for CollaboratorFailures.
const (
	CollaboratorExtraction = "extraction"
	CollaboratorCompletion = "completion"
)

// MustRegister registers every PolicyPipe collector with the default
// Prometheus registry. Call once at startup.
func MustRegister() {
	prometheus.MustRegister(
		EventsProcessed,
		EventDuration,
		CollaboratorFailures,
		PoliciesIssued,
		ActiveConversations,
	)
}

// Handler returns the HTTP handler serving the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
