// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldReelID    = "reel_id"
	FieldSessionID = "session_id"
	FieldViewerID  = "viewer_id"
	FieldOwnerID   = "owner_id"
	FieldRequestID = "request_id"

	// Feed / viewport fields
	FieldFeedIndex   = "feed_index"
	FieldActiveIndex = "active_index"
	FieldWindowSize  = "window_size"

	// Playback fields
	FieldEvent     = "event"
	FieldComponent = "component"
	FieldPosition  = "position"
	FieldAttempt   = "attempt"
	FieldMuted     = "muted"
	FieldSource    = "source_kind"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"
	FieldReason   = "reason"

	// Network / URL fields
	FieldMediaURL = "media_url"
	FieldBaseURL  = "base_url"
)
