package retry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualTimer fires only when the test says so.
type manualTimer struct {
	mu      sync.Mutex
	d       time.Duration
	f       func()
	stopped bool
}

func (m *manualTimer) Stop() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	was := m.stopped
	m.stopped = true
	return !was
}

func (m *manualTimer) fire() {
	m.mu.Lock()
	stopped := m.stopped
	f := m.f
	m.mu.Unlock()
	if !stopped && f != nil {
		f()
	}
}

type manualClock struct {
	mu     sync.Mutex
	timers []*manualTimer
}

func (c *manualClock) factory(d time.Duration, f func()) Timer {
	t := &manualTimer{d: d, f: f}
	c.mu.Lock()
	c.timers = append(c.timers, t)
	c.mu.Unlock()
	return t
}

func (c *manualClock) last() *manualTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.timers) == 0 {
		return nil
	}
	return c.timers[len(c.timers)-1]
}

func TestScheduleDelayLadder(t *testing.T) {
	clock := &manualClock{}
	s := NewScheduler(WithTimerFactory(clock.factory))

	d1, err := s.Schedule(func() {})
	require.NoError(t, err)
	assert.Equal(t, 1*time.Second, d1)

	d2, err := s.Schedule(func() {})
	require.NoError(t, err)
	assert.Equal(t, 2*time.Second, d2)
}

func TestThirdAutomaticRetryNeverScheduled(t *testing.T) {
	clock := &manualClock{}
	s := NewScheduler(WithTimerFactory(clock.factory))

	fired := 0
	reload := func() { fired++ }

	_, err := s.Schedule(reload)
	require.NoError(t, err)
	clock.last().fire()

	_, err = s.Schedule(reload)
	require.NoError(t, err)
	clock.last().fire()

	_, err = s.Schedule(reload)
	assert.ErrorIs(t, err, ErrExhausted)
	assert.True(t, s.Exhausted())
	assert.Equal(t, 2, fired)
	assert.Len(t, clock.timers, 2)
}

func TestCancelPreventsFire(t *testing.T) {
	clock := &manualClock{}
	s := NewScheduler(WithTimerFactory(clock.factory))

	fired := false
	_, err := s.Schedule(func() { fired = true })
	require.NoError(t, err)

	s.Cancel()
	clock.last().fire()

	assert.False(t, fired, "timer must not fire after cancel")
	assert.Equal(t, 1, s.Attempts(), "cancel does not refund the attempt")
}

func TestScheduleCancelsPendingTimer(t *testing.T) {
	clock := &manualClock{}
	s := NewScheduler(WithTimerFactory(clock.factory))

	first := 0
	_, err := s.Schedule(func() { first++ })
	require.NoError(t, err)
	stale := clock.last()

	second := 0
	_, err = s.Schedule(func() { second++ })
	require.NoError(t, err)

	stale.fire()
	clock.last().fire()

	assert.Zero(t, first, "superseded timer must not run its reload")
	assert.Equal(t, 1, second)
}

func TestResetReArmsBudget(t *testing.T) {
	clock := &manualClock{}
	s := NewScheduler(WithTimerFactory(clock.factory))

	for i := 0; i < MaxAutoAttempts; i++ {
		_, err := s.Schedule(func() {})
		require.NoError(t, err)
		clock.last().fire()
	}
	_, err := s.Schedule(func() {})
	require.ErrorIs(t, err, ErrExhausted)

	s.Reset()
	assert.Zero(t, s.Attempts())

	d, err := s.Schedule(func() {})
	require.NoError(t, err)
	assert.Equal(t, 1*time.Second, d)
}

func TestWithBaseDelay(t *testing.T) {
	clock := &manualClock{}
	s := NewScheduler(WithTimerFactory(clock.factory), WithBaseDelay(10*time.Millisecond))

	d, err := s.Schedule(func() {})
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, d)
}
