// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package netutil validates media URLs before they reach a video surface.
package netutil

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
)

var (
	// ErrMediaURLNotAllowed indicates the URL host did not match the allowlist.
	ErrMediaURLNotAllowed = errors.New("media url host not allowed")
	// ErrInsecureScheme indicates a plain-http media URL under a https-only policy.
	ErrInsecureScheme = errors.New("insecure media url scheme")
)

// MediaPolicy restricts which URLs may be attached to a playback surface.
// An empty host allowlist admits any host; schemes are always restricted.
type MediaPolicy struct {
	// AllowInsecure admits http:// in addition to https://.
	AllowInsecure bool
	// Hosts lists allowed hosts. Entries starting with "." match any
	// subdomain of the suffix (".cdn.example.com" admits "v1.cdn.example.com").
	Hosts []string
}

// NormalizeHost validates and normalizes a host for comparison.
func NormalizeHost(raw string) (string, error) {
	host := strings.TrimSpace(raw)
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if strings.Contains(host, "://") {
		return "", fmt.Errorf("host must not include scheme: %s", raw)
	}
	if strings.Contains(host, "/") {
		return "", fmt.Errorf("host must not include path: %s", raw)
	}
	if strings.Contains(host, "@") {
		return "", fmt.Errorf("host must not include userinfo: %s", raw)
	}
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		host = strings.TrimSuffix(strings.TrimPrefix(host, "["), "]")
	}
	if strings.Contains(host, ":") && net.ParseIP(host) == nil {
		return "", fmt.Errorf("host must not include port: %s", raw)
	}
	if strings.Contains(host, "%") {
		return "", fmt.Errorf("host must not include zone: %s", raw)
	}
	host = strings.TrimSuffix(host, ".")
	if host == "" {
		return "", fmt.Errorf("host is empty")
	}
	if ip := net.ParseIP(host); ip != nil {
		return strings.ToLower(ip.String()), nil
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("invalid host %q: %w", raw, err)
	}
	return strings.ToLower(ascii), nil
}

// ValidateMediaURL verifies a media URL against the policy and returns the
// normalized URL string to hand to the source resolver.
func ValidateMediaURL(raw string, policy MediaPolicy) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("media url empty")
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return "", fmt.Errorf("invalid media url: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing media url host")
	}
	if u.User != nil {
		return "", fmt.Errorf("userinfo not allowed in media url")
	}

	scheme := strings.ToLower(u.Scheme)
	switch scheme {
	case "https":
	case "http":
		if !policy.AllowInsecure {
			return "", ErrInsecureScheme
		}
	default:
		return "", fmt.Errorf("scheme %q not allowed", scheme)
	}

	host, err := NormalizeHost(u.Hostname())
	if err != nil {
		return "", err
	}
	if !hostAllowed(host, policy.Hosts) {
		return "", ErrMediaURLNotAllowed
	}

	u.Scheme = scheme
	u.Host = joinHostPort(host, u.Port())
	return u.String(), nil
}

func hostAllowed(host string, allow []string) bool {
	if len(allow) == 0 {
		return true
	}
	for _, entry := range allow {
		normalized, err := NormalizeHost(strings.TrimPrefix(strings.TrimSpace(entry), "."))
		if err != nil {
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(entry), ".") {
			if host == normalized || strings.HasSuffix(host, "."+normalized) {
				return true
			}
			continue
		}
		if host == normalized {
			return true
		}
	}
	return false
}

func joinHostPort(host, port string) string {
	if port == "" {
		if strings.Contains(host, ":") {
			return "[" + host + "]"
		}
		return host
	}
	return net.JoinHostPort(host, port)
}
