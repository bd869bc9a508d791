// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package engine

import (
	"context"
	"sync"

	"github.com/ManuGH/reelfeed/internal/playback"
)

// SurfaceFactory creates the video surface backing one reel slot.
type SurfaceFactory func(reelID string) playback.Surface

// AutoplayPolicy decides whether a play attempt with the given mute
// state is allowed. Returning an error (usually
// playback.ErrAutoplayRejected) blocks the attempt.
type AutoplayPolicy func(muted bool) error

// trackedSurface is the engine-owned surface for headless operation:
// client shells report real media events through the API while the
// engine keeps the authoritative source/mute/position state here.
type trackedSurface struct {
	mu     sync.Mutex
	policy AutoplayPolicy

	src     string
	muted   bool
	playing bool
	pos     float64
}

func newTrackedSurface(policy AutoplayPolicy) *trackedSurface {
	return &trackedSurface{policy: policy}
}

func (s *trackedSurface) SetSource(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src = url
	s.pos = 0
}

func (s *trackedSurface) ClearSource() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src = ""
	s.playing = false
}

func (s *trackedSurface) Play(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.policy != nil {
		if err := s.policy(s.muted); err != nil {
			return err
		}
	}
	s.playing = true
	return nil
}

func (s *trackedSurface) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
}

func (s *trackedSurface) SetMuted(muted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.muted = muted
}

func (s *trackedSurface) Seek(fraction float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = fraction
}

func (s *trackedSurface) Position() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// ReportPosition feeds a shell-reported play position into the surface.
func (s *trackedSurface) ReportPosition(fraction float64) {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = fraction
}

var _ playback.Surface = (*trackedSurface)(nil)
