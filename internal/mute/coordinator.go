// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package mute holds the process-wide audio mute preference for a feed.
//
// The coordinator is an owned store with an explicit lifecycle: the feed
// orchestrator creates it on mount and drops it on unmount. It is not a
// package-level singleton; tests construct their own instances.
package mute

import (
	"sync"

	"github.com/ManuGH/reelfeed/internal/metrics"
)

// Listener receives the new mute preference on every change.
// Listeners run synchronously under the coordinator lock and must not call
// back into the coordinator.
type Listener func(muted bool)

// Coordinator is the single writer/many reader store for the mute preference.
type Coordinator struct {
	mu     sync.Mutex
	muted  bool
	subs   map[int]Listener
	nextID int
	closed bool
}

// NewCoordinator returns a coordinator with the autoplay-safe default: muted.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		muted: true,
		subs:  make(map[int]Listener),
	}
}

// Get returns the current mute preference.
func (c *Coordinator) Get() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// Set applies a new mute preference and fans it out to every subscriber.
// The fan-out is atomic with respect to any other Set: the lock is held for
// the full notification pass, so no subscriber observes value A after another
// subscriber has observed a later value B.
func (c *Coordinator) Set(muted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.muted == muted {
		return
	}
	c.muted = muted
	metrics.RecordMuteToggle(muted, len(c.subs))
	for _, l := range c.subs {
		l(muted)
	}
}

// Toggle flips the preference and returns the new value.
func (c *Coordinator) Toggle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return c.muted
	}
	c.muted = !c.muted
	metrics.RecordMuteToggle(c.muted, len(c.subs))
	for _, l := range c.subs {
		l(c.muted)
	}
	return c.muted
}

// Subscribe registers a listener and returns its cancel function.
// The listener is not invoked with the current value; callers read Get()
// once at mount, which keeps mount ordering explicit.
func (c *Coordinator) Subscribe(l Listener) (cancel func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.subs[id] = l

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.subs, id)
	}
}

// Close detaches all subscribers. Subsequent Set/Toggle calls are no-ops.
func (c *Coordinator) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.subs = make(map[int]Listener)
}

// Subscribers reports the current subscriber count.
func (c *Coordinator) Subscribers() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}
