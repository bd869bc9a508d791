// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	feedFetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reelfeed_feed_fetch_duration_seconds",
		Help:    "Time to fetch a page of reel records from the backend",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8},
	}, []string{"cache_hit"})

	feedFetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelfeed_feed_fetch_total",
		Help: "Feed fetch attempts by result",
	}, []string{"result"})

	resolverDecisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelfeed_resolver_decisions_total",
		Help: "Source resolver decisions by kind and reason",
	}, []string{"kind", "reason"})

	indexChangesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelfeed_index_changes_total",
		Help: "Viewport index changes by whether the request was clamped",
	}, []string{"clamped"})
)

// ObserveFeedFetch records one fetch of reel records.
func ObserveFeedFetch(cacheHit bool, d time.Duration, err error) {
	feedFetchDuration.WithLabelValues(strconv.FormatBool(cacheHit)).Observe(d.Seconds())
	result := "success"
	if err != nil {
		result = "failure"
	}
	feedFetchTotal.WithLabelValues(result).Inc()
}

// RecordResolverDecision records a source resolution outcome.
func RecordResolverDecision(kind, reason string) {
	resolverDecisionsTotal.WithLabelValues(kind, reason).Inc()
}

// RecordIndexChange records a viewport index change.
func RecordIndexChange(clamped bool) {
	indexChangesTotal.WithLabelValues(strconv.FormatBool(clamped)).Inc()
}
