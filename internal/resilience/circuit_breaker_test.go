package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now time.Time }

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

var errBackend = errors.New("backend down")

func TestBreakerOpensAfterThreshold(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	cb := NewCircuitBreaker("feed", 3, 30*time.Second, WithClock(clk))

	fail := func() error { return errBackend }
	for i := 0; i < 3; i++ {
		require.ErrorIs(t, cb.Execute(fail), errBackend)
	}

	assert.Equal(t, string(StateOpen), cb.State())
	assert.ErrorIs(t, cb.Execute(fail), ErrCircuitOpen)
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	cb := NewCircuitBreaker("feed", 1, 30*time.Second, WithClock(clk))

	require.Error(t, cb.Execute(func() error { return errBackend }))
	require.Equal(t, string(StateOpen), cb.State())

	clk.advance(31 * time.Second)

	// Successful probe closes the breaker.
	require.NoError(t, cb.Execute(func() error { return nil }))
	assert.Equal(t, string(StateClosed), cb.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	cb := NewCircuitBreaker("feed", 1, 30*time.Second, WithClock(clk))

	require.Error(t, cb.Execute(func() error { return errBackend }))
	clk.advance(31 * time.Second)
	require.ErrorIs(t, cb.Execute(func() error { return errBackend }), errBackend)

	assert.Equal(t, string(StateOpen), cb.State())
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb := NewCircuitBreaker("feed", 2, 30*time.Second)

	require.Error(t, cb.Execute(func() error { return errBackend }))
	require.NoError(t, cb.Execute(func() error { return nil }))
	require.Error(t, cb.Execute(func() error { return errBackend }))

	assert.Equal(t, string(StateClosed), cb.State())
}

func TestBreakerDefaults(t *testing.T) {
	cb := NewCircuitBreaker("feed", 0, 0)
	assert.Equal(t, string(StateClosed), cb.State())
}
