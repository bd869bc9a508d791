// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package api provides the HTTP surface of the reelfeed daemon: feed
// snapshots, viewport commands, media events and social interactions.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ManuGH/reelfeed/internal/engine"
	xglog "github.com/ManuGH/reelfeed/internal/log"
	"github.com/ManuGH/reelfeed/internal/social"
)

// FeedEngine is the engine surface the API depends on. Implemented by
// *engine.Engine; narrowed to an interface so handlers are testable
// without a live backend.
type FeedEngine interface {
	LoadFeed(ctx context.Context) error
	LoadMore(ctx context.Context) error
	Snapshot() engine.Snapshot
	SetIndex(ctx context.Context, index int) engine.Snapshot
	Next(ctx context.Context) engine.Snapshot
	Prev(ctx context.Context) engine.Snapshot
	ToggleMute() bool
	Muted() bool
	ToggleLike(ctx context.Context, reelID string) (social.InteractionState, error)
	ToggleFollow(ctx context.Context, reelID string) (social.InteractionState, error)
	Share(ctx context.Context, reelID string) (social.InteractionState, error)
	ReportMediaEvent(ctx context.Context, reelID string, ev engine.MediaEvent) error
	ManualRetry(ctx context.Context, reelID string) error
	TogglePlay(ctx context.Context, reelID string) error
}

var _ FeedEngine = (*engine.Engine)(nil)

// ServerConfig wires the HTTP server to its collaborators.
type ServerConfig struct {
	Listen string
	Engine FeedEngine

	// TracingService enables OTel server spans when non-empty.
	TracingService string
	// RateLimit is requests per RateWindow per client IP. Zero disables.
	RateLimit  int
	RateWindow time.Duration
}

// Server is the reelfeed HTTP API server.
type Server struct {
	engine FeedEngine
	cfg    ServerConfig
	logger zerolog.Logger
	http   *http.Server
}

// NewServer builds the server and its router.
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		engine: cfg.Engine,
		cfg:    cfg,
		logger: xglog.WithComponent("api"),
	}
	s.http = &http.Server{
		Addr:              cfg.Listen,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// ListenAndServe blocks serving HTTP until Shutdown or a listener error.
func (s *Server) ListenAndServe() error {
	s.logger.Info().Str("listen", s.cfg.Listen).Msg("http server starting")
	return s.http.ListenAndServe()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
