// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package source

import (
	"net/url"
	"path"
	"strings"
)

// Kind defines the playback strategy bound to a surface.
type Kind string

const (
	KindAdaptive    Kind = "adaptive"    // Manifest-driven streaming session
	KindProgressive Kind = "progressive" // URL assigned to the surface directly
	KindNone        Kind = ""            // For errors
)

// ReasonCode defines strictly why a decision was made.
// Format: {INPUT}_{Constraint}_{Result}
type ReasonCode string

const (
	ReasonHLSManifest     ReasonCode = "MANIFEST_HLS_ADAPTIVE"
	ReasonDASHManifest    ReasonCode = "MANIFEST_DASH_ADAPTIVE"
	ReasonProgressiveFile ReasonCode = "DIRECT_FILE_PROGRESSIVE"
	ReasonInvalidURL      ReasonCode = "URL_PARSE_FAILED"
	ReasonPolicyRejected  ReasonCode = "POLICY_HOST_REJECTED"
)

// Decision represents the output of the decision matrix.
type Decision struct {
	Kind   Kind
	Reason ReasonCode
}

// Decide maps a media URL to a playback strategy. The rule is purely
// path-based: playlist manifests get an adaptive session, everything
// else is assigned to the surface as-is. Query strings and fragments
// never influence the outcome.
// It performs NO side effects (IO/Network).
func Decide(rawURL string) Decision {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Decision{Kind: KindNone, Reason: ReasonInvalidURL}
	}

	switch strings.ToLower(path.Ext(u.Path)) {
	case ".m3u8", ".m3u":
		return Decision{Kind: KindAdaptive, Reason: ReasonHLSManifest}
	case ".mpd":
		return Decision{Kind: KindAdaptive, Reason: ReasonDASHManifest}
	default:
		return Decision{Kind: KindProgressive, Reason: ReasonProgressiveFile}
	}
}
