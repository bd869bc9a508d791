// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package viewport decides which feed item is active and which neighbors
// stay mounted. It owns the pause-before-play ordering between items.
package viewport

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	xglog "github.com/ManuGH/reelfeed/internal/log"
	"github.com/ManuGH/reelfeed/internal/metrics"
)

// NoActive is the active index of an empty feed.
const NoActive = -1

// visibleRadius is the number of neighbors kept mounted on each side.
const visibleRadius = 1

// CommandSink receives ordered playback commands for feed indices. For
// any index change the sink sees Pause for the old index strictly before
// Play for the new one.
type CommandSink interface {
	Pause(ctx context.Context, index int)
	Play(ctx context.Context, index int)
}

// Window is the contiguous index range eligible for mounting.
type Window struct {
	Active int
	Lo     int
	Hi     int
}

// Contains reports whether the index is inside the window.
func (w Window) Contains(i int) bool {
	return w.Active != NoActive && i >= w.Lo && i <= w.Hi
}

// Controller tracks the active index over a feed of known size.
type Controller struct {
	mu     sync.Mutex
	size   int
	active int
	sink   CommandSink
	logger zerolog.Logger
}

// New creates a controller over size items. No item is active until the
// first OnIndexChange call.
func New(size int, sink CommandSink) *Controller {
	if size < 0 {
		size = 0
	}
	return &Controller{
		size:   size,
		active: NoActive,
		sink:   sink,
		logger: xglog.WithComponent("viewport"),
	}
}

// ActiveIndex returns the current active index, NoActive when empty.
func (c *Controller) ActiveIndex() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Size returns the current feed length.
func (c *Controller) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.size
}

// SetSize updates the feed length (pagination appends). Shrinking below
// the active index clamps it; an empty feed deactivates entirely. The
// lock is held across the sink commands, same as OnIndexChange, so a
// concurrent index change cannot interleave with the clamp.
func (c *Controller) SetSize(ctx context.Context, n int) {
	if n < 0 {
		n = 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.size = n
	if n == 0 {
		prev := c.active
		c.active = NoActive
		if prev != NoActive && c.sink != nil {
			c.sink.Pause(ctx, prev)
		}
		return
	}
	if c.active >= n {
		prev := c.active
		c.active = n - 1
		if c.sink != nil {
			c.sink.Pause(ctx, prev)
			c.sink.Play(ctx, c.active)
		}
	}
}

// IsVisible reports whether the index should stay mounted.
func (c *Controller) IsVisible(i int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == NoActive {
		return false
	}
	return abs(i-c.active) <= visibleRadius
}

// CurrentWindow returns the mountable index range.
func (c *Controller) CurrentWindow() Window {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.windowLocked()
}

func (c *Controller) windowLocked() Window {
	if c.active == NoActive {
		return Window{Active: NoActive}
	}
	lo := c.active - visibleRadius
	if lo < 0 {
		lo = 0
	}
	hi := c.active + visibleRadius
	if hi > c.size-1 {
		hi = c.size - 1
	}
	return Window{Active: c.active, Lo: lo, Hi: hi}
}

// OnIndexChange moves the active index. Out-of-range targets are
// clamped, never wrapped. The previous item is paused strictly before
// the new one plays; the lock is held across both commands so rapid
// repeated transitions cannot interleave.
func (c *Controller) OnIndexChange(ctx context.Context, newIndex int) Window {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.size == 0 {
		return Window{Active: NoActive}
	}

	clamped := false
	if newIndex < 0 {
		newIndex = 0
		clamped = true
	}
	if newIndex > c.size-1 {
		newIndex = c.size - 1
		clamped = true
	}

	prev := c.active
	if newIndex == prev {
		return c.windowLocked()
	}

	c.active = newIndex
	metrics.RecordIndexChange(clamped)
	c.logger.Debug().
		Int(xglog.FieldActiveIndex, newIndex).
		Bool("clamped", clamped).
		Msg("active index changed")

	if c.sink != nil {
		if prev != NoActive {
			c.sink.Pause(ctx, prev)
		}
		c.sink.Play(ctx, newIndex)
	}

	return c.windowLocked()
}

// Next advances one item (wheel/swipe/arrow-down paging).
func (c *Controller) Next(ctx context.Context) Window {
	return c.OnIndexChange(ctx, c.ActiveIndex()+1)
}

// Prev goes back one item.
func (c *Controller) Prev(ctx context.Context) Window {
	idx := c.ActiveIndex()
	if idx == NoActive {
		idx = 0
	}
	return c.OnIndexChange(ctx, idx-1)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
