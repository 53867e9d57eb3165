// Package metrics holds the Prometheus collectors exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mintoons_http_requests_total",
		Help: "HTTP requests by route pattern, method and status code.",
	}, []string{"route", "method", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mintoons_http_request_duration_seconds",
		Help:    "HTTP request latency by route pattern.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "method"})

	StoriesCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mintoons_stories_created_total",
		Help: "Story sessions started.",
	})

	TurnsAddedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mintoons_turns_added_total",
		Help: "Turns written to story sessions.",
	})

	StoriesFlaggedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mintoons_stories_flagged_total",
		Help: "Story sessions flagged by moderation.",
	})

	AssessmentsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mintoons_assessments_total",
		Help: "Assessment requests by outcome (success, error, invalid).",
	}, []string{"outcome"})

	SubmissionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mintoons_competition_submissions_total",
		Help: "Competition submissions by outcome.",
	}, []string{"outcome"})

	EmailsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mintoons_emails_total",
		Help: "Emails by template and outcome.",
	}, []string{"template", "outcome"})

	AIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mintoons_ai_request_duration_seconds",
		Help:    "AI gateway call latency by operation.",
		Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 60},
	}, []string{"operation"})
)
