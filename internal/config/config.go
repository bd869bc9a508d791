// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config loads, validates and hot-reloads the reelfeed daemon
// configuration with the precedence ENV > file > defaults.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ManuGH/reelfeed/internal/netutil"
)

// Config is the full daemon configuration.
type Config struct {
	// Listen is the HTTP bind address, e.g. ":8080".
	Listen   string `yaml:"listen"`
	LogLevel string `yaml:"logLevel"`
	// DataDir holds local state such as the resume database.
	DataDir string `yaml:"dataDir"`

	Feed      FeedConfig      `yaml:"feed"`
	Media     MediaConfig     `yaml:"media"`
	Cache     CacheConfig     `yaml:"cache"`
	Resume    ResumeConfig    `yaml:"resume"`
	Social    SocialConfig    `yaml:"social"`
	API       APIConfig       `yaml:"api"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// FeedConfig points at the upstream feed backend.
type FeedConfig struct {
	BaseURL string `yaml:"baseURL"`
	// Token authenticates requests against the backend. Optional.
	Token       string        `yaml:"token"`
	Timeout     time.Duration `yaml:"timeout"`
	ListRetries int           `yaml:"listRetries"`
	PageLimit   int           `yaml:"pageLimit"`
}

// MediaConfig governs which media URLs may be attached and how
// playback progress is sampled.
type MediaConfig struct {
	AllowInsecure bool `yaml:"allowInsecure"`
	// AllowedHosts restricts media URL hosts. Empty admits any host.
	// Entries starting with "." match any subdomain of the suffix.
	AllowedHosts []string `yaml:"allowedHosts"`
	// MaxBandwidth caps adaptive variant selection in bits/s. Zero
	// selects the highest available variant.
	MaxBandwidth   int64         `yaml:"maxBandwidth"`
	SampleInterval time.Duration `yaml:"sampleInterval"`
}

// Policy converts the media settings into an enforceable URL policy.
func (m MediaConfig) Policy() netutil.MediaPolicy {
	return netutil.MediaPolicy{
		AllowInsecure: m.AllowInsecure,
		Hosts:         m.AllowedHosts,
	}
}

// CacheConfig selects the feed page cache backend.
type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend string        `yaml:"backend"`
	TTL     time.Duration `yaml:"ttl"`
	Redis   RedisConfig   `yaml:"redis"`
}

// RedisConfig holds Redis connection settings for the page cache.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// ResumeConfig selects the resume position store backend.
type ResumeConfig struct {
	// Backend is "sqlite" or "memory".
	Backend string `yaml:"backend"`
}

// SocialConfig bounds viewer interactions per feed session.
type SocialConfig struct {
	// Rate is the sustained interactions per second. Zero disables limiting.
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
}

// APIConfig bounds inbound HTTP traffic.
type APIConfig struct {
	// RateLimit is requests per RateWindow per client IP. Zero disables.
	RateLimit  int           `yaml:"rateLimit"`
	RateWindow time.Duration `yaml:"rateWindow"`
}

// TelemetryConfig configures the OTLP trace exporter.
type TelemetryConfig struct {
	Enabled bool `yaml:"enabled"`
	// Exporter is "grpc" or "http".
	Exporter     string  `yaml:"exporter"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"samplingRate"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Listen:   ":8080",
		LogLevel: "info",
		DataDir:  "./data",
		Feed: FeedConfig{
			Timeout:     10 * time.Second,
			ListRetries: 2,
			PageLimit:   20,
		},
		Media: MediaConfig{
			SampleInterval: 200 * time.Millisecond,
		},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     2 * time.Minute,
		},
		Resume: ResumeConfig{
			Backend: "sqlite",
		},
		Social: SocialConfig{
			Rate:  5,
			Burst: 10,
		},
		API: APIConfig{
			RateLimit:  100,
			RateWindow: time.Minute,
		},
		Telemetry: TelemetryConfig{
			Exporter:     "grpc",
			Endpoint:     "localhost:4317",
			SamplingRate: 0.1,
		},
	}
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true,
	"warn": true, "error": true,
}

// Validate checks the configuration for internal consistency. A config
// that fails validation must never be applied.
func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.Listen) == "" {
		return fmt.Errorf("listen address is empty")
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log level %q", cfg.LogLevel)
	}

	if cfg.Feed.BaseURL == "" {
		return fmt.Errorf("feed.baseURL is required")
	}
	u, err := url.Parse(cfg.Feed.BaseURL)
	if err != nil {
		return fmt.Errorf("feed.baseURL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("feed.baseURL must be absolute: %q", cfg.Feed.BaseURL)
	}
	if cfg.Feed.Timeout <= 0 {
		return fmt.Errorf("feed.timeout must be positive")
	}
	if cfg.Feed.ListRetries < 0 || cfg.Feed.ListRetries > 5 {
		return fmt.Errorf("feed.listRetries must be in [0,5], got %d", cfg.Feed.ListRetries)
	}
	if cfg.Feed.PageLimit < 1 || cfg.Feed.PageLimit > 100 {
		return fmt.Errorf("feed.pageLimit must be in [1,100], got %d", cfg.Feed.PageLimit)
	}

	for _, host := range cfg.Media.AllowedHosts {
		candidate := strings.TrimPrefix(host, ".")
		if _, err := netutil.NormalizeHost(candidate); err != nil {
			return fmt.Errorf("media.allowedHosts entry %q: %w", host, err)
		}
	}
	if cfg.Media.MaxBandwidth < 0 {
		return fmt.Errorf("media.maxBandwidth must not be negative")
	}
	if cfg.Media.SampleInterval <= 0 {
		return fmt.Errorf("media.sampleInterval must be positive")
	}

	switch cfg.Cache.Backend {
	case "memory":
	case "redis":
		if cfg.Cache.Redis.Addr == "" {
			return fmt.Errorf("cache.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown cache backend %q (supported: memory, redis)", cfg.Cache.Backend)
	}
	if cfg.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}

	switch cfg.Resume.Backend {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("unknown resume backend %q (supported: sqlite, memory)", cfg.Resume.Backend)
	}
	if cfg.Resume.Backend == "sqlite" && strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("dataDir is required for the sqlite resume backend")
	}

	if cfg.Social.Rate < 0 {
		return fmt.Errorf("social.rate must not be negative")
	}
	if cfg.API.RateLimit < 0 {
		return fmt.Errorf("api.rateLimit must not be negative")
	}
	if cfg.API.RateLimit > 0 && cfg.API.RateWindow <= 0 {
		return fmt.Errorf("api.rateWindow must be positive when api.rateLimit is set")
	}

	if cfg.Telemetry.Enabled {
		switch cfg.Telemetry.Exporter {
		case "grpc", "http":
		default:
			return fmt.Errorf("unknown telemetry exporter %q (supported: grpc, http)", cfg.Telemetry.Exporter)
		}
		if cfg.Telemetry.Endpoint == "" {
			return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
		}
	}
	if cfg.Telemetry.SamplingRate < 0 || cfg.Telemetry.SamplingRate > 1 {
		return fmt.Errorf("telemetry.samplingRate must be in [0,1]")
	}

	return nil
}
