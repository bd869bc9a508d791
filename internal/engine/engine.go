// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package engine composes the feed: viewport, per-slot playback
// controllers, the mute coordinator, social state and the resume store.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ManuGH/reelfeed/internal/feed"
	xglog "github.com/ManuGH/reelfeed/internal/log"
	"github.com/ManuGH/reelfeed/internal/metrics"
	"github.com/ManuGH/reelfeed/internal/mute"
	"github.com/ManuGH/reelfeed/internal/playback"
	"github.com/ManuGH/reelfeed/internal/resume"
	"github.com/ManuGH/reelfeed/internal/retry"
	"github.com/ManuGH/reelfeed/internal/social"
	"github.com/ManuGH/reelfeed/internal/source"
	"github.com/ManuGH/reelfeed/internal/viewport"
)

// ErrUnknownReel is returned for operations on reels outside the feed.
var ErrUnknownReel = errors.New("unknown reel")

// ErrReelNotMounted marks an event for a reel that is in the feed but
// currently outside the mounted window; shells can drop it silently.
var ErrReelNotMounted = errors.New("reel not mounted")

// DefaultPageLimit is the reel page size requested from the backend.
const DefaultPageLimit = 20

// DefaultCacheTTL bounds how long a fetched page may be served from cache.
const DefaultCacheTTL = 2 * time.Minute

// Config wires the engine to its collaborators.
type Config struct {
	Service  feed.Service
	Cache    feed.PageCache
	CacheTTL time.Duration
	Resolver *source.Resolver
	Resume   resume.Store
	ViewerID string
	Auth     social.AuthState
	Notifier social.Notifier

	// Surfaces is optional; the default creates engine-tracked surfaces
	// driven by shell-reported media events.
	Surfaces SurfaceFactory
	// Autoplay is consulted by the default surfaces only.
	Autoplay AutoplayPolicy

	PageLimit int

	// SocialRate bounds interactions per second, SocialBurst tops the
	// bucket. Zero values fall back to 5/s with a burst of 10.
	SocialRate  rate.Limit
	SocialBurst int

	SampleInterval time.Duration
	NewTicker      playback.TickerFactory
	RetryOptions   []retry.Option
}

// Engine is the feed orchestrator. One instance serves one viewer's
// feed lifetime.
type Engine struct {
	mu sync.Mutex

	service   feed.Service
	cache     feed.PageCache
	cacheTTL  time.Duration
	resolver  *source.Resolver
	store     resume.Store
	viewerID  string
	surfaces  SurfaceFactory
	pageLimit int
	logger    zerolog.Logger

	sampleInterval time.Duration
	newTicker      playback.TickerFactory
	retryOptions   []retry.Option

	coordinator *mute.Coordinator
	social      *social.Manager
	vp          *viewport.Controller

	records     []feed.ReelRecord
	byID        map[string]int // reel id -> feed index
	nextCursor  string
	morePages   bool
	controllers map[int]*playback.Controller
	slotSurface map[string]playback.Surface // reel id -> surface
	closed      bool

	playMu  sync.Mutex
	playing map[string]struct{}
}

// New creates an engine. Call LoadFeed before anything else.
func New(cfg Config) (*Engine, error) {
	if cfg.Service == nil || cfg.Resolver == nil {
		return nil, errors.New("engine: service and resolver required")
	}

	e := &Engine{
		service:        cfg.Service,
		cache:          cfg.Cache,
		cacheTTL:       cfg.CacheTTL,
		resolver:       cfg.Resolver,
		store:          cfg.Resume,
		viewerID:       cfg.ViewerID,
		pageLimit:      cfg.PageLimit,
		logger:         xglog.WithComponent("engine"),
		sampleInterval: cfg.SampleInterval,
		newTicker:      cfg.NewTicker,
		retryOptions:   cfg.RetryOptions,
		coordinator:    mute.NewCoordinator(),
		byID:           make(map[string]int),
		controllers:    make(map[int]*playback.Controller),
		slotSurface:    make(map[string]playback.Surface),
		playing:        make(map[string]struct{}),
	}
	if e.cacheTTL <= 0 {
		e.cacheTTL = DefaultCacheTTL
	}
	if e.pageLimit <= 0 {
		e.pageLimit = DefaultPageLimit
	}
	if cfg.Surfaces != nil {
		e.surfaces = cfg.Surfaces
	} else {
		policy := cfg.Autoplay
		e.surfaces = func(string) playback.Surface { return newTrackedSurface(policy) }
	}

	socialRate := cfg.SocialRate
	if socialRate <= 0 {
		socialRate = 5
	}
	socialBurst := cfg.SocialBurst
	if socialBurst <= 0 {
		socialBurst = 10
	}
	e.social = social.NewManager(social.ManagerConfig{
		Remote:   cfg.Service,
		Auth:     cfg.Auth,
		Notifier: cfg.Notifier,
		Rate:     socialRate,
		Burst:    socialBurst,
	})
	e.vp = viewport.New(0, e)
	return e, nil
}

// Mute returns the coordinator, mainly for tests and the API layer.
func (e *Engine) Mute() *mute.Coordinator { return e.coordinator }

// LoadFeed fetches the first page and activates index zero.
func (e *Engine) LoadFeed(ctx context.Context) error {
	page, err := e.fetchPage(ctx, "")
	if err != nil {
		return err
	}

	records := validRecords(page.Records, e.logger)

	e.mu.Lock()
	// A refresh may return a different record set; controllers mounted
	// for a slot whose reel changed must not survive into the new feed.
	var evict []*playback.Controller
	for idx, c := range e.controllers {
		if idx < len(records) && records[idx].ID == c.ReelID() {
			continue
		}
		evict = append(evict, c)
		delete(e.controllers, idx)
		delete(e.slotSurface, c.ReelID())
	}
	e.records = records
	e.nextCursor = page.NextCursor
	e.morePages = page.NextCursor != ""
	e.byID = make(map[string]int, len(records))
	for i, rec := range records {
		e.byID[rec.ID] = i
	}
	size := len(records)
	e.mu.Unlock()

	for _, c := range evict {
		c.Unmount(ctx)
	}

	e.social.Seed(records)
	e.vp.SetSize(ctx, size)
	if size > 0 {
		e.SetIndex(ctx, 0)
	}
	return nil
}

// LoadMore appends the next page when one exists.
func (e *Engine) LoadMore(ctx context.Context) error {
	e.mu.Lock()
	if !e.morePages {
		e.mu.Unlock()
		return nil
	}
	cursor := e.nextCursor
	e.mu.Unlock()

	page, err := e.fetchPage(ctx, cursor)
	if err != nil {
		return err
	}
	records := validRecords(page.Records, e.logger)

	e.mu.Lock()
	base := len(e.records)
	e.records = append(e.records, records...)
	for i, rec := range records {
		e.byID[rec.ID] = base + i
	}
	e.nextCursor = page.NextCursor
	e.morePages = page.NextCursor != ""
	size := len(e.records)
	e.mu.Unlock()

	e.social.Seed(records)
	e.vp.SetSize(ctx, size)
	return nil
}

// ApplyTunables updates the hot-reloadable fetch settings. Zero or
// negative values leave the current setting in place.
func (e *Engine) ApplyTunables(pageLimit int, cacheTTL time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if pageLimit > 0 {
		e.pageLimit = pageLimit
	}
	if cacheTTL > 0 {
		e.cacheTTL = cacheTTL
	}
}

func (e *Engine) fetchPage(ctx context.Context, cursor string) (feed.ReelPage, error) {
	e.mu.Lock()
	limit, ttl := e.pageLimit, e.cacheTTL
	e.mu.Unlock()

	if e.cache != nil {
		start := time.Now()
		if page, ok := e.cache.Get(ctx, e.viewerID, cursor); ok {
			metrics.ObserveFeedFetch(true, time.Since(start), nil)
			return page, nil
		}
	}

	page, err := e.service.ListReels(ctx, cursor, limit)
	if err != nil {
		return feed.ReelPage{}, fmt.Errorf("load feed page: %w", err)
	}
	if e.cache != nil {
		e.cache.Set(ctx, e.viewerID, cursor, page, ttl)
	}
	return page, nil
}

func validRecords(records []feed.ReelRecord, logger zerolog.Logger) []feed.ReelRecord {
	valid := records[:0:0]
	for _, rec := range records {
		if err := rec.Validate(); err != nil {
			logger.Warn().Err(err).Str(xglog.FieldReelID, rec.ID).Msg("dropping invalid reel record")
			continue
		}
		valid = append(valid, rec)
	}
	return valid
}

// SetIndex moves the active index, reconciles the mounted window and
// fetches the next page when paging approaches the end.
func (e *Engine) SetIndex(ctx context.Context, index int) Snapshot {
	w := e.vp.OnIndexChange(ctx, index)
	e.syncWindow(ctx, w)

	e.mu.Lock()
	nearEnd := w.Active != viewport.NoActive && w.Active >= len(e.records)-2 && e.morePages
	e.mu.Unlock()
	if nearEnd {
		if err := e.LoadMore(ctx); err != nil {
			e.logger.Warn().Err(err).Msg("next page fetch failed")
		}
	}

	return e.Snapshot()
}

// Next advances one reel.
func (e *Engine) Next(ctx context.Context) Snapshot {
	return e.SetIndex(ctx, e.vp.ActiveIndex()+1)
}

// Prev goes back one reel.
func (e *Engine) Prev(ctx context.Context) Snapshot {
	idx := e.vp.ActiveIndex()
	if idx == viewport.NoActive {
		idx = 0
	}
	return e.SetIndex(ctx, idx-1)
}

// Pause implements viewport.CommandSink.
func (e *Engine) Pause(ctx context.Context, index int) {
	if c := e.controllerAt(index); c != nil {
		c.SetActive(ctx, false)
	}
}

// Play implements viewport.CommandSink. It mounts the slot on demand so
// far jumps activate immediately.
func (e *Engine) Play(ctx context.Context, index int) {
	c := e.controllerAt(index)
	if c == nil {
		c = e.mountSlot(ctx, index)
	}
	if c != nil {
		c.SetActive(ctx, true)
	}
}

func (e *Engine) controllerAt(index int) *playback.Controller {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.controllers[index]
}

// syncWindow mounts every slot inside the window and unmounts the rest.
func (e *Engine) syncWindow(ctx context.Context, w viewport.Window) {
	e.mu.Lock()
	var evict []*playback.Controller
	for idx, c := range e.controllers {
		if !w.Contains(idx) {
			evict = append(evict, c)
			delete(e.controllers, idx)
			delete(e.slotSurface, c.ReelID())
		}
	}
	e.mu.Unlock()

	for _, c := range evict {
		c.Unmount(ctx)
	}

	if w.Active == viewport.NoActive {
		return
	}
	for idx := w.Lo; idx <= w.Hi; idx++ {
		e.mountSlot(ctx, idx)
	}
}

// mountSlot creates and mounts the controller for one feed index,
// returning the existing one when already mounted.
func (e *Engine) mountSlot(ctx context.Context, index int) *playback.Controller {
	e.mu.Lock()
	if e.closed || index < 0 || index >= len(e.records) {
		e.mu.Unlock()
		return nil
	}
	if c, ok := e.controllers[index]; ok {
		e.mu.Unlock()
		return c
	}
	rec := e.records[index]
	surface := e.surfaces(rec.ID)

	c, err := playback.NewController(playback.ControllerConfig{
		ReelID:         rec.ID,
		ViewerID:       e.viewerID,
		MediaURL:       rec.MediaURL,
		Surface:        surface,
		Resolver:       e.resolver,
		Mute:           e.coordinator,
		Resume:         e.store,
		OnTransition:   e.onTransition,
		SampleInterval: e.sampleInterval,
		NewTicker:      e.newTicker,
		RetryOptions:   e.retryOptions,
	})
	if err != nil {
		e.mu.Unlock()
		e.logger.Error().Err(err).Str(xglog.FieldReelID, rec.ID).Msg("controller create failed")
		return nil
	}
	e.controllers[index] = c
	e.slotSurface[rec.ID] = surface
	e.mu.Unlock()

	if err := c.Mount(ctx); err != nil {
		e.logger.Warn().Err(err).Str(xglog.FieldReelID, rec.ID).Msg("mount failed, retry pending")
	}
	return c
}

func (e *Engine) onTransition(reelID string, from, to playback.State, reason string) {
	e.playMu.Lock()
	if to == playback.StatePlaying {
		e.playing[reelID] = struct{}{}
	} else {
		delete(e.playing, reelID)
	}
	n := len(e.playing)
	e.playMu.Unlock()
	metrics.SetPlayingSessions(n)
}

// PlayingReels lists reels currently in the playing state.
func (e *Engine) PlayingReels() []string {
	e.playMu.Lock()
	defer e.playMu.Unlock()
	ids := make([]string, 0, len(e.playing))
	for id := range e.playing {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// ToggleMute flips the global preference and returns the new value.
func (e *Engine) ToggleMute() bool {
	return e.coordinator.Toggle()
}

// Muted reports the global mute preference.
func (e *Engine) Muted() bool {
	return e.coordinator.Get()
}

// ToggleLike flips the viewer's like for a reel and returns the
// resulting interaction state.
func (e *Engine) ToggleLike(ctx context.Context, reelID string) (social.InteractionState, error) {
	rec, ok := e.record(reelID)
	if !ok {
		return social.InteractionState{}, ErrUnknownReel
	}
	err := e.social.ToggleLike(ctx, reelID)
	return e.social.State(reelID, rec.Owner.ID), err
}

// ToggleFollow flips the follow state for the reel's owner.
func (e *Engine) ToggleFollow(ctx context.Context, reelID string) (social.InteractionState, error) {
	rec, ok := e.record(reelID)
	if !ok {
		return social.InteractionState{}, ErrUnknownReel
	}
	err := e.social.ToggleFollow(ctx, rec.Owner.ID)
	return e.social.State(reelID, rec.Owner.ID), err
}

// Share bumps the share counter for a reel.
func (e *Engine) Share(ctx context.Context, reelID string) (social.InteractionState, error) {
	rec, ok := e.record(reelID)
	if !ok {
		return social.InteractionState{}, ErrUnknownReel
	}
	err := e.social.Share(ctx, reelID)
	return e.social.State(reelID, rec.Owner.ID), err
}

func (e *Engine) record(reelID string) (feed.ReelRecord, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, ok := e.byID[reelID]
	if !ok {
		return feed.ReelRecord{}, false
	}
	return e.records[idx], true
}

func (e *Engine) controllerFor(reelID string) *playback.Controller {
	e.mu.Lock()
	defer e.mu.Unlock()
	idx, ok := e.byID[reelID]
	if !ok {
		return nil
	}
	return e.controllers[idx]
}

// MediaEvent is a shell-reported media pipeline event.
type MediaEvent struct {
	Kind     string  `json:"kind"` // ready | ended | error | position
	Error    string  `json:"error,omitempty"`
	Position float64 `json:"position,omitempty"`
}

// ReportMediaEvent feeds a shell-reported event into the owning
// controller's state machine.
func (e *Engine) ReportMediaEvent(ctx context.Context, reelID string, ev MediaEvent) error {
	c := e.controllerFor(reelID)
	if c == nil {
		if _, ok := e.record(reelID); ok {
			return ErrReelNotMounted
		}
		return ErrUnknownReel
	}

	switch ev.Kind {
	case "ready":
		c.HandleReady(ctx)
	case "ended":
		c.HandleEnded(ctx)
	case "error":
		msg := ev.Error
		if msg == "" {
			msg = "media load failed"
		}
		c.HandleMediaError(ctx, errors.New(msg))
	case "position":
		if s, ok := e.surfaceFor(reelID); ok {
			s.ReportPosition(ev.Position)
		}
	default:
		return fmt.Errorf("unknown media event kind: %q", ev.Kind)
	}
	return nil
}

// surfaceFor returns the engine-tracked surface for a mounted reel.
// Custom surface factories handle position reporting themselves.
func (e *Engine) surfaceFor(reelID string) (*trackedSurface, bool) {
	e.mu.Lock()
	s, ok := e.slotSurface[reelID]
	e.mu.Unlock()
	if !ok {
		return nil, false
	}
	ts, ok := s.(*trackedSurface)
	return ts, ok
}

// ManualRetry is the user-initiated reload affordance for a reel stuck
// in the errored state.
func (e *Engine) ManualRetry(ctx context.Context, reelID string) error {
	c := e.controllerFor(reelID)
	if c == nil {
		return ErrUnknownReel
	}
	c.ManualRetry(ctx)
	return nil
}

// TogglePlay pauses or resumes the active reel on explicit tap.
func (e *Engine) TogglePlay(ctx context.Context, reelID string) error {
	c := e.controllerFor(reelID)
	if c == nil {
		return ErrUnknownReel
	}
	if c.State() == playback.StatePlaying {
		c.Pause(ctx)
	} else {
		c.SetActive(ctx, true)
	}
	return nil
}

// SessionView is one mounted slot in a feed snapshot.
type SessionView struct {
	Index       int                     `json:"index"`
	Reel        feed.ReelRecord         `json:"reel"`
	Session     playback.Snapshot       `json:"session"`
	Interaction social.InteractionState `json:"interaction"`
}

// Snapshot is the externally visible feed state.
type Snapshot struct {
	ActiveIndex int           `json:"activeIndex"`
	Total       int           `json:"total"`
	Muted       bool          `json:"muted"`
	HasMore     bool          `json:"hasMore"`
	Sessions    []SessionView `json:"sessions"`
}

// Snapshot captures the current feed state for the API layer.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	snap := Snapshot{
		ActiveIndex: e.vp.ActiveIndex(),
		Total:       len(e.records),
		Muted:       e.coordinator.Get(),
		HasMore:     e.morePages,
	}
	type slot struct {
		idx int
		c   *playback.Controller
	}
	slots := make([]slot, 0, len(e.controllers))
	for idx, c := range e.controllers {
		slots = append(slots, slot{idx: idx, c: c})
	}
	records := e.records
	e.mu.Unlock()

	sort.Slice(slots, func(i, j int) bool { return slots[i].idx < slots[j].idx })
	for _, s := range slots {
		rec := records[s.idx]
		snap.Sessions = append(snap.Sessions, SessionView{
			Index:       s.idx,
			Reel:        rec,
			Session:     s.c.Snapshot(),
			Interaction: e.social.State(rec.ID, rec.Owner.ID),
		})
	}
	return snap
}

// Close unmounts every controller and tears down the coordinator.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	ctrls := make([]*playback.Controller, 0, len(e.controllers))
	for _, c := range e.controllers {
		ctrls = append(ctrls, c)
	}
	e.controllers = make(map[int]*playback.Controller)
	e.slotSurface = make(map[string]playback.Surface)
	e.mu.Unlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, c := range ctrls {
		c := c
		g.Go(func() error {
			c.Unmount(ctx)
			return nil
		})
	}
	err := g.Wait()
	e.coordinator.Close()
	return err
}
