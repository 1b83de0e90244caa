// Package metrics holds the prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	RecommendationRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matchrank_recommendation_requests_total",
		Help: "Recommendation requests by outcome",
	}, []string{"status"})
	RecommendationDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "matchrank_recommendation_duration_seconds",
		Help:    "Time to score and rank one candidate list",
		Buckets: prometheus.DefBuckets,
	})
	CandidatesScored = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "matchrank_candidates_scored",
		Help:    "Candidate pool size per ranking",
		Buckets: prometheus.ExponentialBuckets(1, 4, 8),
	})
	Interactions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matchrank_interactions_total",
		Help: "Recorded interactions by action",
	}, []string{"action"})
	BestEffortFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matchrank_best_effort_failures_total",
		Help: "Failures in stages that do not fail the request",
	}, []string{"stage"})
	CircuitState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "matchrank_circuit_breaker_state",
		Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
	}, []string{"name"})
	CorpusSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "matchrank_bio_corpus_documents",
		Help: "Bios in the current similarity corpus",
	})
	CorpusRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "matchrank_bio_corpus_refreshes_total",
		Help: "Corpus rebuilds by result",
	}, []string{"result"})
	NotificationsSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "matchrank_notifications_sent_total",
		Help: "Websocket events delivered",
	})
)

func init() {
	prometheus.MustRegister(
		RecommendationRequests,
		RecommendationDuration,
		CandidatesScored,
		Interactions,
		BestEffortFailures,
		CircuitState,
		CorpusSize,
		CorpusRefreshes,
		NotificationsSent,
	)
}

// ObserveRecommendation records one ranking run
func ObserveRecommendation(start time.Time, status string, pool int) {
	RecommendationDuration.Observe(time.Since(start).Seconds())
	RecommendationRequests.WithLabelValues(status).Inc()
	CandidatesScored.Observe(float64(pool))
}

func IncBestEffortFailure(stage string) { BestEffortFailures.WithLabelValues(stage).Inc() }

func IncInteraction(action string) { Interactions.WithLabelValues(action).Inc() }
