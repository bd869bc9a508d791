// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/reelfeed/internal/log"
	"github.com/ManuGH/reelfeed/internal/metrics"
	"github.com/ManuGH/reelfeed/internal/mute"
	"github.com/ManuGH/reelfeed/internal/resume"
	"github.com/ManuGH/reelfeed/internal/retry"
	"github.com/ManuGH/reelfeed/internal/source"
)

// DefaultSampleInterval is the progress sampling period while playing.
const DefaultSampleInterval = 200 * time.Millisecond

// TransitionListener observes session transitions. It runs with the
// controller lock held and must not call back into the same controller.
type TransitionListener func(reelID string, from, to State, reason string)

// ControllerConfig wires one controller to its collaborators.
type ControllerConfig struct {
	ReelID   string
	ViewerID string
	MediaURL string
	Surface  Surface
	Resolver *source.Resolver
	Mute     *mute.Coordinator

	// Resume is optional; nil disables position persistence.
	Resume resume.Store

	// OnTransition is optional.
	OnTransition TransitionListener

	SampleInterval time.Duration
	NewTicker      TickerFactory
	RetryOptions   []retry.Option
}

// Controller drives one video surface: attach, the autoplay ladder,
// progress sampling, bounded reloads and ordered teardown. All media
// events from the surface funnel through the Handle* methods.
type Controller struct {
	mu sync.Mutex

	reelID   string
	viewerID string
	mediaURL string
	surface  Surface
	resolver *source.Resolver
	mute     *mute.Coordinator
	store    resume.Store
	onChange TransitionListener

	retry       *retry.Scheduler
	sampleEvery time.Duration
	newTicker   TickerFactory
	logger      zerolog.Logger

	session     *Session
	handle      source.AttachmentHandle
	muteCancel  func()
	globalMuted bool
	active      bool
	mounted     bool
	sampler     *progressSampler
}

type progressSampler struct {
	ticker Ticker
	stop   chan struct{}
}

// NewController creates an unmounted controller for one reel.
func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.ReelID == "" {
		return nil, errors.New("playback: reel id required")
	}
	if cfg.Surface == nil || cfg.Resolver == nil || cfg.Mute == nil {
		return nil, errors.New("playback: surface, resolver and mute coordinator required")
	}

	interval := cfg.SampleInterval
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	factory := cfg.NewTicker
	if factory == nil {
		factory = defaultTickerFactory
	}

	return &Controller{
		reelID:      cfg.ReelID,
		viewerID:    cfg.ViewerID,
		mediaURL:    cfg.MediaURL,
		surface:     cfg.Surface,
		resolver:    cfg.Resolver,
		mute:        cfg.Mute,
		store:       cfg.Resume,
		onChange:    cfg.OnTransition,
		retry:       retry.NewScheduler(cfg.RetryOptions...),
		sampleEvery: interval,
		newTicker:   factory,
		logger: xglog.WithComponent("playback").With().
			Str(xglog.FieldReelID, cfg.ReelID).Logger(),
		session: newSession(cfg.ReelID),
	}, nil
}

// ReelID returns the owning reel.
func (c *Controller) ReelID() string { return c.reelID }

// State reports the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.State
}

// Snapshot returns a copy of the session for external observers.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		ID:       c.session.ID,
		ReelID:   c.session.ReelID,
		State:    c.session.State,
		Position: c.session.Position,
		Attempts: c.retry.Attempts(),
		Muted:    c.globalMuted,
		Active:   c.active,
	}
}

// Mount subscribes to the mute coordinator, applies the current
// preference and begins source attachment.
func (c *Controller) Mount(ctx context.Context) error {
	muteCancel := c.mute.Subscribe(c.applyMute)
	globalMuted := c.mute.Get()

	c.mu.Lock()
	if c.mounted {
		c.mu.Unlock()
		muteCancel()
		return errors.New("playback: already mounted")
	}
	c.mounted = true
	c.muteCancel = muteCancel
	c.globalMuted = globalMuted
	c.surface.SetMuted(globalMuted)
	c.transitionLocked(EvAttach)
	c.mu.Unlock()

	metrics.IncMountedSessions()
	return c.attach(ctx)
}

// Unmount tears the session down: sampler, then retry timer, then the
// attachment handle, all before the surface goes away.
func (c *Controller) Unmount(ctx context.Context) {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return
	}
	c.mounted = false
	c.stopSamplerLocked()
	if c.session.State == StatePlaying {
		c.surface.Pause()
		c.transitionLocked(EvPause)
	}
	handle := c.handle
	c.handle = nil
	muteCancel := c.muteCancel
	c.muteCancel = nil
	pos := c.session.Position
	c.session.UnmountedAt = time.Now().UTC()
	c.mu.Unlock()

	c.retry.Cancel()
	if handle != nil {
		handle.Release()
	}
	if muteCancel != nil {
		muteCancel()
	}
	c.persist(ctx, pos, false)
	metrics.DecMountedSessions()
}

// SetActive marks this item as the one authorized to play. Activation
// starts playback once media is ready; deactivation pauses.
func (c *Controller) SetActive(ctx context.Context, active bool) {
	c.mu.Lock()
	if c.active == active {
		c.mu.Unlock()
		return
	}
	c.active = active
	c.mu.Unlock()

	if active {
		c.play(ctx)
	} else {
		c.Pause(ctx)
	}
}

// HandleReady is called by the surface when metadata/first frame is
// available. Restores any persisted position, then autoplays if active.
func (c *Controller) HandleReady(ctx context.Context) {
	c.mu.Lock()
	if !c.transitionLocked(EvMediaReady) {
		c.mu.Unlock()
		return
	}
	active := c.active
	c.mu.Unlock()

	c.restoreResume(ctx)
	if active {
		c.play(ctx)
	}
}

// HandleEnded is called on natural completion. While active the session
// loops from position zero; otherwise it stays ended.
func (c *Controller) HandleEnded(ctx context.Context) {
	c.mu.Lock()
	if !c.transitionLocked(EvEnded) {
		c.mu.Unlock()
		return
	}
	c.session.Position = 1
	active := c.active
	c.mu.Unlock()

	c.persist(ctx, 1, true)
	if active {
		c.play(ctx)
	}
}

// HandleMediaError is called by the surface on a load/decode failure.
// It moves the session to errored and schedules a bounded reload.
func (c *Controller) HandleMediaError(ctx context.Context, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mediaFailedLocked(err)
}

// Pause stops playback on explicit tap, visibility loss or unmount.
func (c *Controller) Pause(ctx context.Context) {
	c.mu.Lock()
	if c.session.State != StatePlaying {
		c.mu.Unlock()
		return
	}
	c.surface.Pause()
	c.transitionLocked(EvPause)
	pos := c.session.Position
	c.mu.Unlock()

	c.persist(ctx, pos, false)
}

// ManualRetry is the user-initiated reload after the automatic budget is
// spent. It resets the retry counter.
func (c *Controller) ManualRetry(ctx context.Context) {
	c.retry.Reset()
	c.Reload(ctx)
}

// Reload releases the current attachment and re-runs source resolution.
// The previous handle is fully released before a new one is acquired.
func (c *Controller) Reload(ctx context.Context) {
	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		return
	}
	if _, ok := TransitionFor(c.session.State, EvReload); !ok {
		c.mu.Unlock()
		return
	}
	handle := c.handle
	c.handle = nil
	c.transitionLocked(EvReload)
	c.mu.Unlock()

	if handle != nil {
		handle.Release()
	}
	_ = c.attach(ctx)
}

func (c *Controller) attach(ctx context.Context) error {
	handle, err := c.resolver.Attach(ctx, c.surface, c.mediaURL)

	c.mu.Lock()
	if !c.mounted {
		c.mu.Unlock()
		if handle != nil {
			handle.Release()
		}
		return nil
	}
	if err != nil {
		c.mediaFailedLocked(err)
		c.mu.Unlock()
		return err
	}
	c.handle = handle
	c.mu.Unlock()
	return nil
}

func (c *Controller) play(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.playLocked(ctx)
}

// playLocked runs the autoplay ladder: unmuted first when the global
// preference allows sound, then a session-scoped muted fallback, then
// errored with reason autoplay-blocked. The global preference is never
// written here.
func (c *Controller) playLocked(ctx context.Context) {
	st := c.session.State
	if st != StateReady && st != StatePaused && st != StateEnded {
		return
	}
	if st == StateEnded {
		c.surface.Seek(0)
		c.session.Position = 0
	}

	if !c.globalMuted {
		err := c.surface.Play(ctx)
		if err == nil {
			metrics.RecordAutoplayAttempt("unmuted", true)
			c.transitionLocked(EvPlay)
			return
		}
		if !errors.Is(err, ErrAutoplayRejected) {
			c.mediaFailedLocked(err)
			return
		}
		metrics.RecordAutoplayAttempt("unmuted", false)
	}

	c.surface.SetMuted(true)
	err := c.surface.Play(ctx)
	if err == nil {
		metrics.RecordAutoplayAttempt("muted", true)
		c.transitionLocked(EvPlay)
		return
	}
	if !errors.Is(err, ErrAutoplayRejected) {
		c.mediaFailedLocked(err)
		return
	}
	metrics.RecordAutoplayAttempt("muted", false)
	c.transitionLocked(EvAutoplayBlocked)
}

func (c *Controller) mediaFailedLocked(err error) {
	if !c.transitionLocked(EvMediaFailed) {
		return
	}
	c.logger.Warn().Err(err).Msg("media load failed")

	delay, serr := c.retry.Schedule(func() {
		c.Reload(context.Background())
	})
	if serr != nil {
		if errors.Is(serr, retry.ErrExhausted) {
			c.logger.Warn().Msg("retry budget exhausted, awaiting manual retry")
		}
		return
	}
	c.logger.Info().
		Dur("delay", delay).
		Int(xglog.FieldAttempt, c.retry.Attempts()).
		Msg("reload scheduled")
}

func (c *Controller) applyMute(muted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.globalMuted = muted
	c.surface.SetMuted(muted)
}

// transitionLocked applies one state machine edge. Entering or leaving
// Playing starts or stops the progress sampler.
func (c *Controller) transitionLocked(ev EventKind) bool {
	tr, ok := TransitionFor(c.session.State, ev)
	if !ok {
		c.logger.Debug().
			Str(xglog.FieldOldState, string(c.session.State)).
			Str(xglog.FieldEvent, string(ev)).
			Msg("transition not allowed")
		return false
	}

	from := c.session.State
	c.session.State = tr.To
	metrics.RecordPlaybackTransition(string(from), string(tr.To), tr.Reason)

	if tr.To == StatePlaying {
		c.startSamplerLocked()
	} else if from == StatePlaying {
		c.stopSamplerLocked()
	}

	c.logger.Debug().
		Str(xglog.FieldOldState, string(from)).
		Str(xglog.FieldNewState, string(tr.To)).
		Str(xglog.FieldEvent, string(ev)).
		Msg("session transition")

	if c.onChange != nil {
		c.onChange(c.reelID, from, tr.To, tr.Reason)
	}
	return true
}

func (c *Controller) startSamplerLocked() {
	if c.sampler != nil {
		return
	}
	s := &progressSampler{
		ticker: c.newTicker(c.sampleEvery),
		stop:   make(chan struct{}),
	}
	c.sampler = s

	go func() {
		for {
			select {
			case <-s.stop:
				return
			case <-s.ticker.C():
				c.recordProgress()
			}
		}
	}()
}

func (c *Controller) stopSamplerLocked() {
	if c.sampler == nil {
		return
	}
	c.sampler.ticker.Stop()
	close(c.sampler.stop)
	c.sampler = nil
}

func (c *Controller) recordProgress() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.State != StatePlaying {
		return
	}
	c.session.Position = c.surface.Position()
}

func (c *Controller) restoreResume(ctx context.Context) {
	if c.store == nil || c.viewerID == "" {
		return
	}
	pos, err := c.store.Get(ctx, c.viewerID, c.reelID)
	if err != nil {
		c.logger.Warn().Err(err).Msg("resume position load failed")
		return
	}
	if pos == nil || pos.Watched || pos.Fraction <= 0 || pos.Fraction >= 1 {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session.State != StateReady {
		return
	}
	c.surface.Seek(pos.Fraction)
	c.session.Position = pos.Fraction
}

func (c *Controller) persist(ctx context.Context, fraction float64, watched bool) {
	if c.store == nil || c.viewerID == "" {
		return
	}
	err := c.store.Put(ctx, c.viewerID, c.reelID, &resume.Position{
		Fraction:  fraction,
		Watched:   watched,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("resume position save failed")
	}
}
