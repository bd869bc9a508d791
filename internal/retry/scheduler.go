// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package retry implements the bounded reload policy for flaky media loads.
package retry

import (
	"errors"
	"sync"
	"time"

	"github.com/ManuGH/reelfeed/internal/metrics"
)

// MaxAutoAttempts is the automatic retry budget per session. A third
// automatic reload is never scheduled; only a manual reset re-arms it.
const MaxAutoAttempts = 2

// DefaultBaseDelay matches the reload ladder: 1s, then 2s.
const DefaultBaseDelay = time.Second

// ErrExhausted signals that the automatic retry budget is spent.
var ErrExhausted = errors.New("retry budget exhausted")

// Timer is the cancellable handle returned by a TimerFactory.
type Timer interface {
	Stop() bool
}

// TimerFactory schedules f after d. Tests substitute a manual implementation.
type TimerFactory func(d time.Duration, f func()) Timer

type realTimer struct{ t *time.Timer }

func (r realTimer) Stop() bool { return r.t.Stop() }

func defaultTimerFactory(d time.Duration, f func()) Timer {
	return realTimer{t: time.AfterFunc(d, f)}
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTimerFactory substitutes the timer implementation (tests).
func WithTimerFactory(tf TimerFactory) Option {
	return func(s *Scheduler) { s.newTimer = tf }
}

// WithBaseDelay overrides the reload delay unit.
func WithBaseDelay(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.baseDelay = d
		}
	}
}

// Scheduler owns the retry state for one playback session. Scheduling and
// cancellation are mutually exclusive: a pending timer is always cancelled
// before a new one is armed and before the owning session unmounts.
type Scheduler struct {
	mu        sync.Mutex
	baseDelay time.Duration
	newTimer  TimerFactory

	attempts int
	timer    Timer
	gen      uint64
}

// NewScheduler returns a scheduler with an empty attempt counter.
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{
		baseDelay: DefaultBaseDelay,
		newTimer:  defaultTimerFactory,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule arms a reload after (attempts+1) * baseDelay and increments the
// counter. It returns ErrExhausted once MaxAutoAttempts reloads have been
// scheduled. Any pending timer is cancelled first.
func (s *Scheduler) Schedule(reload func()) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.attempts >= MaxAutoAttempts {
		metrics.RecordRetryExhausted()
		return 0, ErrExhausted
	}

	s.cancelLocked()

	delay := time.Duration(s.attempts+1) * s.baseDelay
	s.attempts++
	metrics.RecordRetryScheduled(s.attempts)

	gen := s.gen
	s.timer = s.newTimer(delay, func() {
		s.mu.Lock()
		if s.gen != gen {
			// Cancelled or superseded after firing was already in flight.
			s.mu.Unlock()
			return
		}
		s.timer = nil
		s.mu.Unlock()
		reload()
	})

	return delay, nil
}

// Cancel stops any pending reload. Safe to call repeatedly; required before
// the owning session unmounts.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
}

// Reset clears the attempt counter and cancels any pending reload. Used for
// the manual, user-initiated retry affordance.
func (s *Scheduler) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelLocked()
	s.attempts = 0
}

// Attempts reports how many automatic reloads have been scheduled.
func (s *Scheduler) Attempts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts
}

// Exhausted reports whether the automatic budget is spent.
func (s *Scheduler) Exhausted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts >= MaxAutoAttempts
}

func (s *Scheduler) cancelLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
		metrics.RecordRetryCancelled()
	}
}
