// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package social holds the per-feed optimistic interaction state: likes,
// follows and shares applied locally first and rolled back when the
// backend rejects them.
package social

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ManuGH/reelfeed/internal/feed"
	xglog "github.com/ManuGH/reelfeed/internal/log"
	"github.com/ManuGH/reelfeed/internal/metrics"
)

var (
	// ErrLoginRequired signals that the viewer must authenticate first.
	// The login redirect hook has already been invoked when it is returned.
	ErrLoginRequired = errors.New("login required")
	// ErrRateLimited signals the viewer exceeded the interaction rate.
	ErrRateLimited = errors.New("interaction rate exceeded")
)

// AuthState is the read-only viewer identity plus the login redirect hook.
type AuthState interface {
	// ViewerID returns the authenticated viewer, empty when anonymous.
	ViewerID(ctx context.Context) string
	// RequireLogin redirects an anonymous viewer to authentication.
	RequireLogin(ctx context.Context)
}

// Notifier surfaces transient, non-blocking failure messages.
type Notifier interface {
	Notify(ctx context.Context, message string)
}

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, string) {}

// InteractionState is the viewer-visible interaction snapshot for one reel.
type InteractionState struct {
	Liked      bool  `json:"liked"`
	LikeCount  int64 `json:"likeCount"`
	Following  bool  `json:"following"`
	ShareCount int64 `json:"shareCount"`
}

type likeState struct {
	liked bool
	count int64
}

type shareState struct {
	count int64
}

// ManagerConfig wires a Manager to its collaborators.
type ManagerConfig struct {
	Remote   feed.Service
	Auth     AuthState
	Notifier Notifier
	// Rate bounds interactions per second; Burst tops the bucket.
	// Zero values disable limiting.
	Rate  rate.Limit
	Burst int
}

// Manager owns all interaction state for one feed lifetime. Every
// mutation goes through its action methods; duplicate actions on the
// same target while a prior request is in flight are coalesced.
type Manager struct {
	mu       sync.Mutex
	remote   feed.Service
	auth     AuthState
	notifier Notifier
	limiter  *rate.Limiter
	logger   zerolog.Logger

	likes    map[string]*likeState  // keyed by reel id
	follows  map[string]bool        // keyed by owner id
	shares   map[string]*shareState // keyed by reel id
	inflight map[string]bool
}

// NewManager creates an empty manager; call Seed with the fetched records.
func NewManager(cfg ManagerConfig) *Manager {
	notifier := cfg.Notifier
	if notifier == nil {
		notifier = noopNotifier{}
	}
	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(cfg.Rate, burst)
	}
	return &Manager{
		remote:   cfg.Remote,
		auth:     cfg.Auth,
		notifier: notifier,
		limiter:  limiter,
		logger:   xglog.WithComponent("social"),
		likes:    make(map[string]*likeState),
		follows:  make(map[string]bool),
		shares:   make(map[string]*shareState),
		inflight: make(map[string]bool),
	}
}

// Seed initializes interaction state from server-provided records.
// Already-seeded entries keep their local state.
func (m *Manager) Seed(records []feed.ReelRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, rec := range records {
		if _, ok := m.likes[rec.ID]; !ok {
			m.likes[rec.ID] = &likeState{liked: rec.LikedByViewer, count: rec.Likes}
		}
		if _, ok := m.shares[rec.ID]; !ok {
			m.shares[rec.ID] = &shareState{count: rec.Shares}
		}
		if rec.Owner.ID != "" {
			if _, ok := m.follows[rec.Owner.ID]; !ok {
				m.follows[rec.Owner.ID] = rec.FollowingOwner
			}
		}
	}
}

// State returns the current snapshot for one reel and its owner.
func (m *Manager) State(reelID, ownerID string) InteractionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := InteractionState{}
	if ls, ok := m.likes[reelID]; ok {
		st.Liked = ls.liked
		st.LikeCount = ls.count
	}
	if ss, ok := m.shares[reelID]; ok {
		st.ShareCount = ss.count
	}
	st.Following = m.follows[ownerID]
	return st
}

// command is one optimistic mutation: apply locally, commit remotely,
// roll back the exact delta on rejection. apply and rollback run with
// the manager lock held.
type command struct {
	key      string
	action   string
	apply    func()
	commit   func(ctx context.Context) error
	rollback func()
}

// ToggleLike flips the viewer's like on a reel.
func (m *Manager) ToggleLike(ctx context.Context, reelID string) error {
	m.mu.Lock()
	ls, ok := m.likes[reelID]
	if !ok {
		ls = &likeState{}
		m.likes[reelID] = ls
	}
	m.mu.Unlock()

	// Captured during apply, under the manager lock, so the rollback
	// restores exactly the pre-mutation values.
	var prior likeState
	var turningOn bool

	return m.run(ctx, command{
		key:    "like:" + reelID,
		action: "like",
		apply: func() {
			prior = *ls
			turningOn = !prior.liked
			if turningOn {
				ls.liked = true
				ls.count = prior.count + 1
			} else {
				ls.liked = false
				ls.count = prior.count - 1
			}
		},
		commit: func(ctx context.Context) error {
			var count int64
			var err error
			if turningOn {
				count, err = m.remote.Like(ctx, reelID)
			} else {
				count, err = m.remote.Unlike(ctx, reelID)
			}
			if err != nil {
				return err
			}
			// Reconcile to the authoritative counter.
			m.mu.Lock()
			ls.count = count
			m.mu.Unlock()
			return nil
		},
		rollback: func() { *ls = prior },
	})
}

// ToggleFollow flips the viewer's follow on a reel owner.
func (m *Manager) ToggleFollow(ctx context.Context, ownerID string) error {
	var prior bool

	return m.run(ctx, command{
		key:    "follow:" + ownerID,
		action: "follow",
		apply: func() {
			prior = m.follows[ownerID]
			m.follows[ownerID] = !prior
		},
		commit: func(ctx context.Context) error {
			if prior {
				return m.remote.Unfollow(ctx, ownerID)
			}
			return m.remote.Follow(ctx, ownerID)
		},
		rollback: func() { m.follows[ownerID] = prior },
	})
}

// Share bumps the share counter optimistically and reconciles it to the
// server value on success.
func (m *Manager) Share(ctx context.Context, reelID string) error {
	m.mu.Lock()
	ss, ok := m.shares[reelID]
	if !ok {
		ss = &shareState{}
		m.shares[reelID] = ss
	}
	m.mu.Unlock()

	var prior shareState

	return m.run(ctx, command{
		key:    "share:" + reelID,
		action: "share",
		apply: func() {
			prior = *ss
			ss.count = prior.count + 1
		},
		commit: func(ctx context.Context) error {
			count, err := m.remote.Share(ctx, reelID)
			if err != nil {
				return err
			}
			m.mu.Lock()
			ss.count = count
			m.mu.Unlock()
			return nil
		},
		rollback: func() { *ss = prior },
	})
}

// run executes one command: auth gate, rate limit, coalescing, the
// optimistic apply, the remote commit and the rollback path.
func (m *Manager) run(ctx context.Context, cmd command) error {
	if m.auth != nil && m.auth.ViewerID(ctx) == "" {
		metrics.RecordInteraction(cmd.action, metrics.InteractionUnauthenticated)
		m.auth.RequireLogin(ctx)
		return ErrLoginRequired
	}

	if m.limiter != nil && !m.limiter.Allow() {
		metrics.RecordInteraction(cmd.action, metrics.InteractionRateLimited)
		m.notifier.Notify(ctx, "slow down a little")
		return ErrRateLimited
	}

	m.mu.Lock()
	if m.inflight[cmd.key] {
		m.mu.Unlock()
		metrics.RecordInteraction(cmd.action, metrics.InteractionCoalesced)
		return nil
	}
	m.inflight[cmd.key] = true
	cmd.apply()
	m.mu.Unlock()

	err := cmd.commit(ctx)

	m.mu.Lock()
	delete(m.inflight, cmd.key)
	if err != nil {
		cmd.rollback()
	}
	m.mu.Unlock()

	if err != nil {
		metrics.RecordInteraction(cmd.action, metrics.InteractionRolledBack)
		metrics.RecordInteractionRollback(cmd.action)
		m.logger.Warn().Err(err).Str(xglog.FieldEvent, cmd.action).Msg("interaction rejected, rolled back")
		m.notifier.Notify(ctx, "action failed, please try again")
		return err
	}

	metrics.RecordInteraction(cmd.action, metrics.InteractionConfirmed)
	return nil
}
