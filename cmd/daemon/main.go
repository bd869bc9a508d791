// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/ManuGH/reelfeed/internal/api"
	"github.com/ManuGH/reelfeed/internal/config"
	"github.com/ManuGH/reelfeed/internal/engine"
	"github.com/ManuGH/reelfeed/internal/feed"
	xglog "github.com/ManuGH/reelfeed/internal/log"
	"github.com/ManuGH/reelfeed/internal/resume"
	"github.com/ManuGH/reelfeed/internal/source"
	"github.com/ManuGH/reelfeed/internal/telemetry"
	"golang.org/x/time/rate"
)

var (
	version   = "v0.3.0"
	commit    = "none"
	buildDate = "unknown"
)

const manifestSizeLimit = 2 << 20 // master playlists are tiny; cap reads defensively

// contextAuth derives the viewer identity from the request context,
// populated by the API middleware from the X-Viewer-Id header.
type contextAuth struct{}

func (contextAuth) ViewerID(ctx context.Context) string { return xglog.ViewerIDFromContext(ctx) }

func (contextAuth) RequireLogin(ctx context.Context) {
	l := xglog.WithComponentFromContext(ctx, "auth")
	l.Info().
		Str(xglog.FieldEvent, "auth.login_required").
		Msg("anonymous viewer redirected to login")
}

// logNotifier surfaces transient interaction failures in the log; a
// client shell would render these as toasts.
type logNotifier struct{}

func (logNotifier) Notify(ctx context.Context, message string) {
	l := xglog.WithComponentFromContext(ctx, "notify")
	l.Info().Msg(message)
}

// newManifestFetcher returns the HTTP fetcher used to probe adaptive
// master playlists during source resolution.
func newManifestFetcher(timeout time.Duration) source.ManifestFetcher {
	client := &http.Client{Timeout: timeout}
	return func(ctx context.Context, url string) (string, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return "", err
		}
		resp, err := client.Do(req)
		if err != nil {
			return "", err
		}
		defer func() { _ = resp.Body.Close() }()
		if resp.StatusCode != http.StatusOK {
			return "", fmt.Errorf("manifest fetch: unexpected status %d", resp.StatusCode)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, manifestSizeLimit))
		if err != nil {
			return "", err
		}
		return string(body), nil
	}
}

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	configPath := flag.String("config", "", "path to config file (YAML)")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s (commit: %s, built: %s)\n", version, commit, buildDate)
		os.Exit(0)
	}

	// Safe logging defaults until the config is loaded.
	xglog.Configure(xglog.Config{
		Level:   "info",
		Service: "reelfeed",
		Version: version,
	})
	logger := xglog.WithComponent("daemon")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Config path: explicit via --config, otherwise auto-load
	// ${REELFEED_DATA}/config.yaml when it exists.
	effectivePath := strings.TrimSpace(*configPath)
	if effectivePath == "" {
		dataDir := strings.TrimSpace(os.Getenv("REELFEED_DATA"))
		if dataDir != "" {
			autoPath := filepath.Join(dataDir, "config.yaml")
			if _, err := os.Stat(autoPath); err == nil {
				effectivePath = autoPath
			}
		}
	}

	loader := config.NewLoader(effectivePath)
	cfg, err := loader.Load()
	if err != nil {
		logger.Fatal().
			Err(err).
			Str(xglog.FieldEvent, "config.load_failed").
			Str("config_path", effectivePath).
			Msg("failed to load configuration")
	}

	xglog.SetLevel(cfg.LogLevel)
	logger.Info().
		Str(xglog.FieldEvent, "config.loaded").
		Str("path", effectivePath).
		Msg("configuration loaded")

	holder := config.NewHolder(cfg, loader, effectivePath)
	if err := holder.StartWatcher(ctx); err != nil {
		logger.Warn().Err(err).Msg("config watcher unavailable, hot reload disabled")
	}
	defer holder.Stop()

	provider, err := telemetry.NewProvider(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "reelfeed",
		ServiceVersion: version,
		Environment:    os.Getenv("REELFEED_ENV"),
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		if err := provider.Shutdown(context.Background()); err != nil {
			logger.Warn().Err(err).Msg("telemetry shutdown failed")
		}
	}()

	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		logger.Fatal().Err(err).Str("dir", cfg.DataDir).Msg("failed to create data directory")
	}

	store, err := resume.NewStore(cfg.Resume.Backend, cfg.DataDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open resume store")
	}
	defer func() { _ = store.Close() }()

	var cache feed.PageCache
	switch cfg.Cache.Backend {
	case "redis":
		redisCache, err := feed.NewRedisPageCache(feed.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		}, xglog.WithComponent("page-cache"))
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect to redis")
		}
		defer func() { _ = redisCache.Close() }()
		cache = redisCache
	default:
		cache = feed.NewMemoryPageCache()
	}

	token := cfg.Feed.Token
	client, err := feed.NewClient(feed.ClientConfig{
		BaseURL:     cfg.Feed.BaseURL,
		Timeout:     cfg.Feed.Timeout,
		ListRetries: cfg.Feed.ListRetries,
		Token:       func(context.Context) string { return token },
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create feed client")
	}

	resolver := source.NewResolver(source.ResolverConfig{
		Policy:       cfg.Media.Policy(),
		Fetch:        newManifestFetcher(cfg.Feed.Timeout),
		MaxBandwidth: cfg.Media.MaxBandwidth,
	})

	eng, err := engine.New(engine.Config{
		Service:        client,
		Cache:          cache,
		CacheTTL:       cfg.Cache.TTL,
		Resolver:       resolver,
		Resume:         store,
		Auth:           contextAuth{},
		Notifier:       logNotifier{},
		PageLimit:      cfg.Feed.PageLimit,
		SocialRate:     rate.Limit(cfg.Social.Rate),
		SocialBurst:    cfg.Social.Burst,
		SampleInterval: cfg.Media.SampleInterval,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create feed engine")
	}

	// Hot-reloadable settings: log level and fetch tunables. Bounds
	// like the retry budget are fixed for the process lifetime.
	reloads := make(chan config.Config, 1)
	holder.RegisterListener(reloads)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case newCfg := <-reloads:
				xglog.SetLevel(newCfg.LogLevel)
				eng.ApplyTunables(newCfg.Feed.PageLimit, newCfg.Cache.TTL)
			}
		}
	}()

	// An unreachable backend at boot is not fatal; the feed can be
	// loaded later via POST /api/feed/refresh.
	loadCtx, cancel := context.WithTimeout(ctx, cfg.Feed.Timeout)
	if err := eng.LoadFeed(loadCtx); err != nil {
		logger.Warn().Err(err).Msg("initial feed load failed")
	}
	cancel()

	tracing := ""
	if cfg.Telemetry.Enabled {
		tracing = "reelfeed-api"
	}
	srv := api.NewServer(api.ServerConfig{
		Listen:         cfg.Listen,
		Engine:         eng,
		TracingService: tracing,
		RateLimit:      cfg.API.RateLimit,
		RateWindow:     cfg.API.RateWindow,
	})

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		logger.Info().Str(xglog.FieldEvent, "daemon.shutdown").Msg("shutdown signal received")
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server failed")
		}
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("http server shutdown incomplete")
	}
	if err := eng.Close(shutdownCtx); err != nil {
		logger.Warn().Err(err).Msg("engine close incomplete")
	}
	logger.Info().Str(xglog.FieldEvent, "daemon.stopped").Msg("daemon stopped")
}
