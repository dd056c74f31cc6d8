package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	// Transport
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workshop_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "workshop_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: []float64{0.005, 0.025, 0.1, 0.5, 1, 2, 5},
	}, []string{"method", "route"})

	// Domain
	ListQueries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workshop_list_queries_total",
		Help: "List queries executed per collection",
	}, []string{"collection"})

	RatingRecalculations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workshop_rating_recalculations_total",
		Help: "Aggregate rating recalculations by item type and outcome",
	}, []string{"item_type", "outcome"})

	ReviewsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workshop_reviews_written_total",
		Help: "Review mutations by operation",
	}, []string{"operation"})

	Reminders = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "workshop_maintenance_reminders_total",
		Help: "Maintenance reminders by outcome",
	}, []string{"outcome"})
)
