// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import (
	"time"

	"github.com/google/uuid"
)

// Session is the ephemeral runtime state bound to one mounted surface.
// It is owned exclusively by the controller that created it.
type Session struct {
	ID          string
	ReelID      string
	State       State
	Position    float64
	HasAudio    bool
	MountedAt   time.Time
	UnmountedAt time.Time
}

func newSession(reelID string) *Session {
	return &Session{
		ID:        uuid.NewString(),
		ReelID:    reelID,
		State:     StateIdle,
		HasAudio:  true,
		MountedAt: time.Now().UTC(),
	}
}

// Snapshot is a copy of the session safe to hand across goroutines.
type Snapshot struct {
	ID       string  `json:"id"`
	ReelID   string  `json:"reelId"`
	State    State   `json:"state"`
	Position float64 `json:"position"`
	Attempts int     `json:"retryAttempts"`
	Muted    bool    `json:"muted"`
	Active   bool    `json:"active"`
}
