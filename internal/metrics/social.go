// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	interactionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelfeed_interactions_total",
		Help: "Optimistic interaction outcomes by action and result",
	}, []string{"action", "result"})

	interactionRollbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelfeed_interaction_rollbacks_total",
		Help: "Optimistic interactions rolled back after remote rejection, by action",
	}, []string{"action"})
)

// Interaction results. Every outcome maps to exactly one of these.
const (
	InteractionConfirmed       = "confirmed"
	InteractionRolledBack      = "rolled_back"
	InteractionCoalesced       = "coalesced"
	InteractionUnauthenticated = "unauthenticated"
	InteractionRateLimited     = "rate_limited"
)

// RecordInteraction records one interaction outcome.
func RecordInteraction(action, result string) {
	interactionsTotal.WithLabelValues(normalizeActionLabel(action), result).Inc()
}

// RecordInteractionRollback records a rollback for the given action.
func RecordInteractionRollback(action string) {
	interactionRollbacksTotal.WithLabelValues(normalizeActionLabel(action)).Inc()
}

func normalizeActionLabel(action string) string {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "like", "unlike", "follow", "unfollow", "share":
		return strings.ToLower(strings.TrimSpace(action))
	default:
		return "unknown"
	}
}
