// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	xglog "github.com/ManuGH/reelfeed/internal/log"
)

// parseString reads a string from an environment variable or returns
// the default. Empty values fall back to the default.
func parseString(key, defaultValue string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		l := xglog.WithComponent("config")
		l.Warn().
			Str("key", key).
			Str("value", v).
			Msg("invalid boolean in environment variable, using default")
		return defaultValue
	}
	return b
}

func parseInt(key string, defaultValue int) int {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		l := xglog.WithComponent("config")
		l.Warn().
			Str("key", key).
			Str("value", v).
			Msg("invalid integer in environment variable, using default")
		return defaultValue
	}
	return i
}

func parseInt64(key string, defaultValue int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		l := xglog.WithComponent("config")
		l.Warn().
			Str("key", key).
			Str("value", v).
			Msg("invalid integer in environment variable, using default")
		return defaultValue
	}
	return i
}

func parseFloat(key string, defaultValue float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		l := xglog.WithComponent("config")
		l.Warn().
			Str("key", key).
			Str("value", v).
			Msg("invalid float in environment variable, using default")
		return defaultValue
	}
	return f
}

func parseDuration(key string, defaultValue time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		l := xglog.WithComponent("config")
		l.Warn().
			Str("key", key).
			Str("value", v).
			Msg("invalid duration in environment variable, using default")
		return defaultValue
	}
	return d
}

// parseHostList reads a comma-separated host list.
func parseHostList(key string, defaultValue []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return defaultValue
	}
	parts := strings.Split(v, ",")
	hosts := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			hosts = append(hosts, trimmed)
		}
	}
	return hosts
}
