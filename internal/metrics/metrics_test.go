// SPDX-License-Identifier: MIT
package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getGaugeValue(t *testing.T, gauge prometheus.Gauge) float64 {
	t.Helper()
	metric := &dto.Metric{}
	err := gauge.Write(metric)
	require.NoError(t, err)
	return metric.GetGauge().GetValue()
}

func getCounterValue(t *testing.T, counter prometheus.Counter) float64 {
	t.Helper()
	metric := &dto.Metric{}
	err := counter.Write(metric)
	require.NoError(t, err)
	return metric.GetCounter().GetValue()
}

func getCounterVecValue(t *testing.T, counterVec *prometheus.CounterVec, labels ...string) float64 {
	t.Helper()
	return getCounterValue(t, counterVec.WithLabelValues(labels...))
}

func TestSetPlayingSessions(t *testing.T) {
	SetPlayingSessions(1)
	assert.Equal(t, 1.0, getGaugeValue(t, playingSessions))
	SetPlayingSessions(0)
	assert.Equal(t, 0.0, getGaugeValue(t, playingSessions))
}

func TestRecordPlaybackTransition(t *testing.T) {
	before := getCounterVecValue(t, playbackTransitionsTotal, "loading", "ready", "none")
	RecordPlaybackTransition("loading", "ready", "")
	after := getCounterVecValue(t, playbackTransitionsTotal, "loading", "ready", "none")
	assert.Equal(t, before+1, after)
}

func TestRecordRetryScheduled(t *testing.T) {
	before := getCounterVecValue(t, retryScheduledTotal, "1")
	RecordRetryScheduled(1)
	after := getCounterVecValue(t, retryScheduledTotal, "1")
	assert.Equal(t, before+1, after)
}

func TestRecordInteractionNormalizesAction(t *testing.T) {
	before := getCounterVecValue(t, interactionsTotal, "unknown", InteractionConfirmed)
	RecordInteraction("poke", InteractionConfirmed)
	after := getCounterVecValue(t, interactionsTotal, "unknown", InteractionConfirmed)
	assert.Equal(t, before+1, after)

	likeBefore := getCounterVecValue(t, interactionsTotal, "like", InteractionRolledBack)
	RecordInteraction(" Like ", InteractionRolledBack)
	likeAfter := getCounterVecValue(t, interactionsTotal, "like", InteractionRolledBack)
	assert.Equal(t, likeBefore+1, likeAfter)
}

func TestObserveFeedFetch(t *testing.T) {
	before := getCounterVecValue(t, feedFetchTotal, "failure")
	ObserveFeedFetch(false, 50*time.Millisecond, assert.AnError)
	after := getCounterVecValue(t, feedFetchTotal, "failure")
	assert.Equal(t, before+1, after)
}

func TestRecordMuteToggle(t *testing.T) {
	before := getCounterVecValue(t, muteTogglesTotal, "true")
	RecordMuteToggle(true, 3)
	after := getCounterVecValue(t, muteTogglesTotal, "true")
	assert.Equal(t, before+1, after)
}
