// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Loader loads configuration with the precedence ENV > file > defaults.
// An empty configPath skips the file layer.
type Loader struct {
	configPath string
}

// NewLoader creates a loader for the given config file path.
func NewLoader(configPath string) *Loader {
	return &Loader{configPath: configPath}
}

// Load builds the effective configuration: defaults, then the YAML
// file, then environment overrides, and validates the result.
func (l *Loader) Load() (Config, error) {
	cfg := Defaults()

	if l.configPath != "" {
		if err := mergeFile(&cfg, l.configPath); err != nil {
			return Config{}, fmt.Errorf("load config file: %w", err)
		}
	}

	mergeEnv(&cfg)

	if err := Validate(cfg); err != nil {
		return Config{}, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// mergeFile overlays the YAML file onto cfg. Unknown keys are
// rejected so typos fail loudly instead of being silently ignored.
func mergeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path) // #nosec G304 -- operator-supplied config path
	if err != nil {
		return err
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// mergeEnv overlays REELFEED_* environment variables onto cfg.
func mergeEnv(cfg *Config) {
	cfg.Listen = parseString("REELFEED_LISTEN", cfg.Listen)
	cfg.LogLevel = parseString("REELFEED_LOG_LEVEL", cfg.LogLevel)
	cfg.DataDir = parseString("REELFEED_DATA", cfg.DataDir)

	cfg.Feed.BaseURL = parseString("REELFEED_FEED_BASE", cfg.Feed.BaseURL)
	cfg.Feed.Token = parseString("REELFEED_FEED_TOKEN", cfg.Feed.Token)
	cfg.Feed.Timeout = parseDuration("REELFEED_FEED_TIMEOUT", cfg.Feed.Timeout)
	cfg.Feed.ListRetries = parseInt("REELFEED_FEED_RETRIES", cfg.Feed.ListRetries)
	cfg.Feed.PageLimit = parseInt("REELFEED_FEED_PAGE_LIMIT", cfg.Feed.PageLimit)

	cfg.Media.AllowInsecure = parseBool("REELFEED_MEDIA_ALLOW_INSECURE", cfg.Media.AllowInsecure)
	cfg.Media.AllowedHosts = parseHostList("REELFEED_MEDIA_HOSTS", cfg.Media.AllowedHosts)
	cfg.Media.MaxBandwidth = parseInt64("REELFEED_MEDIA_MAX_BANDWIDTH", cfg.Media.MaxBandwidth)
	cfg.Media.SampleInterval = parseDuration("REELFEED_MEDIA_SAMPLE_INTERVAL", cfg.Media.SampleInterval)

	cfg.Cache.Backend = parseString("REELFEED_CACHE_BACKEND", cfg.Cache.Backend)
	cfg.Cache.TTL = parseDuration("REELFEED_CACHE_TTL", cfg.Cache.TTL)
	cfg.Cache.Redis.Addr = parseString("REELFEED_REDIS_ADDR", cfg.Cache.Redis.Addr)
	cfg.Cache.Redis.Password = parseString("REELFEED_REDIS_PASSWORD", cfg.Cache.Redis.Password)
	cfg.Cache.Redis.DB = parseInt("REELFEED_REDIS_DB", cfg.Cache.Redis.DB)

	cfg.Resume.Backend = parseString("REELFEED_RESUME_BACKEND", cfg.Resume.Backend)

	cfg.Social.Rate = parseFloat("REELFEED_SOCIAL_RATE", cfg.Social.Rate)
	cfg.Social.Burst = parseInt("REELFEED_SOCIAL_BURST", cfg.Social.Burst)

	cfg.API.RateLimit = parseInt("REELFEED_API_RATE_LIMIT", cfg.API.RateLimit)
	cfg.API.RateWindow = parseDuration("REELFEED_API_RATE_WINDOW", cfg.API.RateWindow)

	cfg.Telemetry.Enabled = parseBool("REELFEED_OTEL_ENABLED", cfg.Telemetry.Enabled)
	cfg.Telemetry.Exporter = parseString("REELFEED_OTEL_EXPORTER", cfg.Telemetry.Exporter)
	cfg.Telemetry.Endpoint = parseString("REELFEED_OTEL_ENDPOINT", cfg.Telemetry.Endpoint)
	cfg.Telemetry.SamplingRate = parseFloat("REELFEED_OTEL_SAMPLING", cfg.Telemetry.SamplingRate)
}
