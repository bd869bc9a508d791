// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// playbackTransitionsTotal counts session state machine edges.
	playbackTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelfeed_playback_transitions_total",
		Help: "Total playback session state transitions by from/to state and reason",
	}, []string{"from", "to", "reason"})

	// playingSessions tracks how many sessions report Playing.
	// The single-playback invariant means this gauge must never exceed 1.
	playingSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reelfeed_playing_sessions",
		Help: "Number of playback sessions currently in the Playing state",
	})

	mountedSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reelfeed_mounted_sessions",
		Help: "Number of currently mounted playback sessions",
	})

	autoplayFallbackTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelfeed_autoplay_fallback_total",
		Help: "Autoplay attempt outcomes by stage (unmuted, muted) and result",
	}, []string{"stage", "result"})

	retryScheduledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelfeed_media_retry_scheduled_total",
		Help: "Automatic media reload retries scheduled, by attempt number",
	}, []string{"attempt"})

	retryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelfeed_media_retry_exhausted_total",
		Help: "Sessions that exhausted their automatic retry budget",
	})

	retryCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reelfeed_media_retry_cancelled_total",
		Help: "Pending retries cancelled before firing (unmount or re-schedule)",
	})

	attachmentsReleasedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelfeed_attachments_released_total",
		Help: "Source attachment handles released, by source kind",
	}, []string{"kind"})

	muteTogglesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reelfeed_mute_toggles_total",
		Help: "Global mute preference changes by new value",
	}, []string{"muted"})

	muteFanoutSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reelfeed_mute_fanout_subscribers",
		Help:    "Subscriber count observed per mute fan-out",
		Buckets: []float64{0, 1, 2, 3, 4, 5, 8, 13},
	})
)

// RecordPlaybackTransition records one session state machine edge.
func RecordPlaybackTransition(from, to, reason string) {
	if reason == "" {
		reason = "none"
	}
	playbackTransitionsTotal.WithLabelValues(from, to, reason).Inc()
}

// SetPlayingSessions publishes the current number of Playing sessions.
func SetPlayingSessions(n int) {
	playingSessions.Set(float64(n))
}

// IncMountedSessions tracks a session mount.
func IncMountedSessions() { mountedSessions.Inc() }

// DecMountedSessions tracks a session unmount.
func DecMountedSessions() { mountedSessions.Dec() }

// RecordAutoplayAttempt records an autoplay attempt outcome for a stage.
func RecordAutoplayAttempt(stage string, ok bool) {
	result := "rejected"
	if ok {
		result = "ok"
	}
	autoplayFallbackTotal.WithLabelValues(stage, result).Inc()
}

// RecordRetryScheduled records an automatic media reload being scheduled.
func RecordRetryScheduled(attempt int) {
	retryScheduledTotal.WithLabelValues(strconv.Itoa(attempt)).Inc()
}

// RecordRetryExhausted records a session settling into the terminal error state.
func RecordRetryExhausted() { retryExhaustedTotal.Inc() }

// RecordRetryCancelled records a pending retry timer being cancelled.
func RecordRetryCancelled() { retryCancelledTotal.Inc() }

// RecordAttachmentReleased records a source attachment teardown.
func RecordAttachmentReleased(kind string) {
	attachmentsReleasedTotal.WithLabelValues(kind).Inc()
}

// RecordMuteToggle records a global mute preference change and its fan-out size.
func RecordMuteToggle(muted bool, subscribers int) {
	muteTogglesTotal.WithLabelValues(strconv.FormatBool(muted)).Inc()
	muteFanoutSize.Observe(float64(subscribers))
}
