// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ManuGH/reelfeed/internal/api/middleware"
	"github.com/ManuGH/reelfeed/internal/engine"
)

// Router builds the chi router with the full middleware stack.
func (s *Server) Router() http.Handler {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableMetrics:  true,
		EnableLogging:  true,
		TracingService: s.cfg.TracingService,
		RateLimit:      s.cfg.RateLimit,
		RateWindow:     s.cfg.RateWindow,
	})

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Route("/feed", func(r chi.Router) {
			r.Get("/", s.handleFeedSnapshot)
			r.Post("/refresh", s.handleFeedRefresh)
			r.Post("/more", s.handleFeedMore)
			r.Post("/index", s.handleSetIndex)
			r.Post("/next", s.handleNext)
			r.Post("/prev", s.handlePrev)
			r.Get("/mute", s.handleGetMute)
			r.Post("/mute", s.handleToggleMute)
		})

		r.Route("/reels/{reelID}", func(r chi.Router) {
			r.Post("/like", s.handleLike)
			r.Post("/follow", s.handleFollow)
			r.Post("/share", s.handleShare)
			r.Post("/retry", s.handleRetry)
			r.Post("/toggle", s.handleTogglePlay)
			r.Post("/events", s.handleMediaEvent)
		})
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleFeedSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleFeedRefresh(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.LoadFeed(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleFeedMore(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.LoadMore(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleSetIndex(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid body: expected {\"index\": n}")
		return
	}
	writeJSON(w, http.StatusOK, s.engine.SetIndex(r.Context(), req.Index))
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Next(r.Context()))
}

func (s *Server) handlePrev(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Prev(r.Context()))
}

func (s *Server) handleGetMute(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"muted": s.engine.Muted()})
}

func (s *Server) handleToggleMute(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"muted": s.engine.ToggleMute()})
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.ToggleLike(r.Context(), chi.URLParam(r, "reelID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.ToggleFollow(r.Context(), chi.URLParam(r, "reelID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleShare(w http.ResponseWriter, r *http.Request) {
	st, err := s.engine.Share(r.Context(), chi.URLParam(r, "reelID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.ManualRetry(r.Context(), chi.URLParam(r, "reelID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "retrying"})
}

func (s *Server) handleTogglePlay(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.TogglePlay(r.Context(), chi.URLParam(r, "reelID")); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleMediaEvent(w http.ResponseWriter, r *http.Request) {
	var ev engine.MediaEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeBadRequest(w, "invalid media event body")
		return
	}
	if err := s.engine.ReportMediaEvent(r.Context(), chi.URLParam(r, "reelID"), ev); err != nil {
		switch {
		case errors.Is(err, engine.ErrReelNotMounted):
			// Late event from a slot that already left the window.
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "dropped"})
		case errors.Is(err, engine.ErrUnknownReel):
			writeError(w, err)
		default:
			writeBadRequest(w, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
