// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package source

import (
	"bufio"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Variant represents one rendition advertised by a master playlist.
type Variant struct {
	URI        string
	Bandwidth  int64
	Resolution string
	Codecs     string
}

// ExtractVariants parses an HLS master playlist and returns its variant
// streams in declaration order. Guards:
// 1. BANDWIDTH is mandatory per rendition and must parse
// 2. A #EXT-X-STREAM-INF tag must be followed by a URI line
func ExtractVariants(playlist string) ([]Variant, error) {
	scanner := bufio.NewScanner(strings.NewReader(playlist))

	var (
		variants []Variant
		pending  *Variant
	)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "#EXT-X-STREAM-INF:") {
			attrs := parseAttributes(strings.TrimPrefix(line, "#EXT-X-STREAM-INF:"))

			bwStr, ok := attrs["BANDWIDTH"]
			if !ok {
				return nil, fmt.Errorf("stream-inf without BANDWIDTH: %s", line)
			}
			bw, err := strconv.ParseInt(bwStr, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid BANDWIDTH: %s", bwStr)
			}

			pending = &Variant{
				Bandwidth:  bw,
				Resolution: attrs["RESOLUTION"],
				Codecs:     attrs["CODECS"],
			}
			continue
		}

		if strings.HasPrefix(line, "#") {
			continue
		}

		// URI line closes the pending rendition.
		if pending != nil {
			pending.URI = line
			variants = append(variants, *pending)
			pending = nil
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, fmt.Errorf("stream-inf without URI line")
	}

	return variants, nil
}

// SelectVariant returns the highest-bandwidth rendition at or below
// maxBandwidth. A cap of zero means unconstrained. When every rendition
// exceeds the cap the lowest one is returned so playback can still start.
func SelectVariant(variants []Variant, maxBandwidth int64) (Variant, bool) {
	if len(variants) == 0 {
		return Variant{}, false
	}

	best := -1
	lowest := 0
	for i, v := range variants {
		if v.Bandwidth < variants[lowest].Bandwidth {
			lowest = i
		}
		if maxBandwidth > 0 && v.Bandwidth > maxBandwidth {
			continue
		}
		if best == -1 || v.Bandwidth > variants[best].Bandwidth {
			best = i
		}
	}
	if best == -1 {
		best = lowest
	}
	return variants[best], true
}

// ResolveVariantURI resolves a rendition URI against the master playlist URL.
func ResolveVariantURI(masterURL, variantURI string) (string, error) {
	base, err := url.Parse(masterURL)
	if err != nil {
		return "", fmt.Errorf("invalid master url: %w", err)
	}
	ref, err := url.Parse(variantURI)
	if err != nil {
		return "", fmt.Errorf("invalid variant uri: %w", err)
	}
	return base.ResolveReference(ref).String(), nil
}

// parseAttributes splits an attribute list like
// BANDWIDTH=1280000,RESOLUTION=720x1280,CODECS="avc1.64001f,mp4a.40.2"
// honoring quoted values that contain commas.
func parseAttributes(s string) map[string]string {
	attrs := make(map[string]string)

	var (
		key      strings.Builder
		val      strings.Builder
		inVal    bool
		inQuotes bool
	)

	flush := func() {
		if key.Len() > 0 {
			attrs[key.String()] = val.String()
		}
		key.Reset()
		val.Reset()
		inVal = false
	}

	for _, r := range s {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == '=' && !inVal:
			inVal = true
		case r == ',' && !inQuotes:
			flush()
		case inVal:
			val.WriteRune(r)
		default:
			key.WriteRune(r)
		}
	}
	flush()

	return attrs
}
