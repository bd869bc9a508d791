// SPDX-License-Identifier: MIT

// Common attribute keys for consistent tracing across the daemon.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	// Feed attributes
	FeedCursorKey   = "feed.cursor"
	FeedCountKey    = "feed.count"
	FeedCacheHitKey = "feed.cache_hit"

	// Playback attributes
	PlaybackReelKey    = "playback.reel"
	PlaybackStateKey   = "playback.state"
	PlaybackAttemptKey = "playback.attempt"

	// Media source attributes
	SourceKindKey      = "source.kind"
	SourceBandwidthKey = "source.bandwidth"

	// Interaction attributes
	InteractionActionKey = "interaction.action"
	InteractionTargetKey = "interaction.target"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// FeedAttributes creates feed-fetch span attributes.
func FeedAttributes(cursor string, count int, cacheHit bool) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if cursor != "" {
		attrs = append(attrs, attribute.String(FeedCursorKey, cursor))
	}
	attrs = append(attrs,
		attribute.Int(FeedCountKey, count),
		attribute.Bool(FeedCacheHitKey, cacheHit),
	)
	return attrs
}

// PlaybackAttributes creates playback-related span attributes.
func PlaybackAttributes(reelID, state string, attempt int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(PlaybackReelKey, reelID),
		attribute.String(PlaybackStateKey, state),
		attribute.Int(PlaybackAttemptKey, attempt),
	}
}

// SourceAttributes creates media source resolution span attributes.
func SourceAttributes(kind string, bandwidth int64) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(SourceKindKey, kind),
	}
	if bandwidth > 0 {
		attrs = append(attrs, attribute.Int64(SourceBandwidthKey, bandwidth))
	}
	return attrs
}

// InteractionAttributes creates social interaction span attributes.
func InteractionAttributes(action, target string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(InteractionActionKey, action),
		attribute.String(InteractionTargetKey, target),
	}
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
