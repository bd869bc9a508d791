// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package playback

import (
	"context"
	"errors"
	"time"

	"github.com/ManuGH/reelfeed/internal/source"
)

// ErrAutoplayRejected is returned by Surface.Play when the platform's
// autoplay policy refuses to start playback.
var ErrAutoplayRejected = errors.New("autoplay rejected by platform policy")

// Surface is one video rendering target. The controller is its only
// driver; surfaces report media events back through the controller's
// Handle* methods.
type Surface interface {
	source.Surface

	// Play starts playback. It returns ErrAutoplayRejected when the
	// platform blocks unattended playback for the current mute state.
	Play(ctx context.Context) error
	Pause()
	SetMuted(muted bool)
	// Seek positions playback at the given fraction [0,1].
	Seek(fraction float64)
	// Position reports the current play position as a fraction [0,1].
	Position() float64
}

// Ticker abstracts time.Ticker so tests can drive progress sampling.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates a Ticker with the given interval.
type TickerFactory func(d time.Duration) Ticker

type realTicker struct{ t *time.Ticker }

func (r realTicker) C() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()               { r.t.Stop() }

func defaultTickerFactory(d time.Duration) Ticker {
	return realTicker{t: time.NewTicker(d)}
}
