package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ManuGH/reelfeed/internal/feed"
	"github.com/ManuGH/reelfeed/internal/playback"
	"github.com/ManuGH/reelfeed/internal/retry"
	"github.com/ManuGH/reelfeed/internal/source"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeService struct {
	mu         sync.Mutex
	pages      map[string]feed.ReelPage
	listCalls  int
	likeErr    error
	likeCounts map[string]int64
}

func newFakeService(pages map[string]feed.ReelPage) *fakeService {
	return &fakeService{pages: pages, likeCounts: make(map[string]int64)}
}

func (f *fakeService) ListReels(_ context.Context, cursor string, _ int) (feed.ReelPage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	page, ok := f.pages[cursor]
	if !ok {
		return feed.ReelPage{}, nil
	}
	return page, nil
}

func (f *fakeService) Like(_ context.Context, reelID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.likeErr != nil {
		return 0, f.likeErr
	}
	f.likeCounts[reelID]++
	return f.likeCounts[reelID], nil
}

func (f *fakeService) Unlike(_ context.Context, reelID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.likeCounts[reelID]--
	return f.likeCounts[reelID], nil
}

func (f *fakeService) Follow(context.Context, string) error   { return nil }
func (f *fakeService) Unfollow(context.Context, string) error { return nil }

func (f *fakeService) Share(_ context.Context, reelID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.likeCounts["share:"+reelID]++
	return f.likeCounts["share:"+reelID], nil
}

type staticAuth struct{ viewer string }

func (a staticAuth) ViewerID(context.Context) string { return a.viewer }
func (a staticAuth) RequireLogin(context.Context)    {}

type countingAuth struct {
	mu        sync.Mutex
	redirects int
}

func (a *countingAuth) ViewerID(context.Context) string { return "" }
func (a *countingAuth) RequireLogin(context.Context) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.redirects++
}

type manualTimers struct {
	mu      sync.Mutex
	pending []*manualTimer
}

type manualTimer struct {
	f       func()
	stopped bool
}

func (m *manualTimer) Stop() bool {
	m.stopped = true
	return true
}

func (m *manualTimers) factory(_ time.Duration, f func()) retry.Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{f: f}
	m.pending = append(m.pending, t)
	return t
}

func (m *manualTimers) fireLast(t *testing.T) {
	t.Helper()
	m.mu.Lock()
	require.NotEmpty(t, m.pending)
	timer := m.pending[len(m.pending)-1]
	m.mu.Unlock()
	timer.f()
}

func (m *manualTimers) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

type stubTicker struct{ ch chan time.Time }

func (s stubTicker) C() <-chan time.Time { return s.ch }
func (s stubTicker) Stop()               {}

func makeReels(n int) []feed.ReelRecord {
	records := make([]feed.ReelRecord, 0, n)
	for i := 0; i < n; i++ {
		records = append(records, feed.ReelRecord{
			ID:       fmt.Sprintf("r%d", i),
			MediaURL: fmt.Sprintf("https://cdn.example.com/r%d.mp4", i),
			Likes:    10,
			Owner:    feed.Owner{ID: fmt.Sprintf("u%d", i%3), DisplayName: "creator"},
		})
	}
	return records
}

type engineFixture struct {
	eng    *Engine
	svc    *fakeService
	timers *manualTimers
}

func newEngineFixture(t *testing.T, records []feed.ReelRecord, mutate func(*Config)) *engineFixture {
	t.Helper()
	svc := newFakeService(map[string]feed.ReelPage{
		"": {Records: records},
	})
	timers := &manualTimers{}
	cfg := Config{
		Service:      svc,
		Resolver:     source.NewResolver(source.ResolverConfig{}),
		ViewerID:     "v1",
		Auth:         staticAuth{viewer: "v1"},
		NewTicker:    func(time.Duration) playback.Ticker { return stubTicker{ch: make(chan time.Time)} },
		RetryOptions: []retry.Option{retry.WithTimerFactory(timers.factory)},
	}
	if mutate != nil {
		mutate(&cfg)
	}
	eng, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close(context.Background()) })
	return &engineFixture{eng: eng, svc: svc, timers: timers}
}

func (f *engineFixture) ready(t *testing.T, reelID string) {
	t.Helper()
	require.NoError(t, f.eng.ReportMediaEvent(context.Background(), reelID, MediaEvent{Kind: "ready"}))
}

func TestRapidSwipesLeaveSingleActivePlayback(t *testing.T) {
	f := newEngineFixture(t, makeReels(5), nil)
	ctx := context.Background()
	require.NoError(t, f.eng.LoadFeed(ctx))

	f.ready(t, "r0")
	require.Equal(t, []string{"r0"}, f.eng.PlayingReels())

	// Three fast swipes: 1, 2, 3.
	f.eng.SetIndex(ctx, 1)
	assert.LessOrEqual(t, len(f.eng.PlayingReels()), 1)
	f.eng.SetIndex(ctx, 2)
	assert.LessOrEqual(t, len(f.eng.PlayingReels()), 1)
	snap := f.eng.SetIndex(ctx, 3)

	assert.Equal(t, 3, snap.ActiveIndex)
	f.ready(t, "r3")

	assert.Equal(t, []string{"r3"}, f.eng.PlayingReels())

	snap = f.eng.Snapshot()
	for _, s := range snap.Sessions {
		if s.Reel.ID == "r3" {
			assert.Equal(t, playback.StatePlaying, s.Session.State)
		} else {
			assert.NotEqual(t, playback.StatePlaying, s.Session.State)
		}
	}
}

func TestWindowMountsActivePlusNeighbors(t *testing.T) {
	f := newEngineFixture(t, makeReels(5), nil)
	ctx := context.Background()
	require.NoError(t, f.eng.LoadFeed(ctx))

	snap := f.eng.SetIndex(ctx, 2)
	mounted := make([]int, 0, len(snap.Sessions))
	for _, s := range snap.Sessions {
		mounted = append(mounted, s.Index)
	}
	assert.ElementsMatch(t, []int{1, 2, 3}, mounted)
}

type releaseCountSurface struct {
	trackedSurface
	mu     sync.Mutex
	clears int
}

func (s *releaseCountSurface) ClearSource() {
	s.mu.Lock()
	s.clears++
	s.mu.Unlock()
	s.trackedSurface.ClearSource()
}

func TestAdaptiveAttachmentReleasedOnceOnUnmount(t *testing.T) {
	records := makeReels(5)
	records[0].MediaURL = "https://cdn.example.com/r0/master.m3u8"

	surfaces := map[string]*releaseCountSurface{}
	var surfMu sync.Mutex
	f := newEngineFixture(t, records, func(cfg *Config) {
		cfg.Surfaces = func(reelID string) playback.Surface {
			surfMu.Lock()
			defer surfMu.Unlock()
			s := &releaseCountSurface{}
			surfaces[reelID] = s
			return s
		}
	})
	ctx := context.Background()
	require.NoError(t, f.eng.LoadFeed(ctx))

	surfMu.Lock()
	s0 := surfaces["r0"]
	surfMu.Unlock()
	require.NotNil(t, s0)
	s0.trackedSurface.mu.Lock()
	src := s0.src
	s0.trackedSurface.mu.Unlock()
	assert.Contains(t, src, "master.m3u8", "manifest bound as adaptive session")

	// Swipe far enough that index 0 leaves the window.
	f.eng.SetIndex(ctx, 2)

	s0.mu.Lock()
	defer s0.mu.Unlock()
	assert.Equal(t, 1, s0.clears, "adaptive session released exactly once")
}

func TestAutoplayFallbackLeavesGlobalUnmuted(t *testing.T) {
	f := newEngineFixture(t, makeReels(3), func(cfg *Config) {
		cfg.Autoplay = func(muted bool) error {
			if !muted {
				return playback.ErrAutoplayRejected
			}
			return nil
		}
	})
	ctx := context.Background()
	f.eng.Mute().Set(false) // viewer prefers sound

	require.NoError(t, f.eng.LoadFeed(ctx))
	f.ready(t, "r0")

	assert.Equal(t, []string{"r0"}, f.eng.PlayingReels())
	assert.False(t, f.eng.Muted(), "global preference untouched by the session fallback")

	snap := f.eng.Snapshot()
	for _, s := range snap.Sessions {
		if s.Reel.ID == "r0" {
			assert.Equal(t, playback.StatePlaying, s.Session.State)
		}
	}
}

func TestUnauthenticatedLikeRedirects(t *testing.T) {
	auth := &countingAuth{}
	f := newEngineFixture(t, makeReels(3), func(cfg *Config) { cfg.Auth = auth })
	ctx := context.Background()
	require.NoError(t, f.eng.LoadFeed(ctx))

	st, err := f.eng.ToggleLike(ctx, "r1")
	assert.Error(t, err)
	assert.False(t, st.Liked)
	assert.Equal(t, int64(10), st.LikeCount)

	auth.mu.Lock()
	defer auth.mu.Unlock()
	assert.Equal(t, 1, auth.redirects)
}

func TestLikeRollbackOnRemoteRejection(t *testing.T) {
	f := newEngineFixture(t, makeReels(3), nil)
	f.svc.mu.Lock()
	f.svc.likeErr = errors.New("rejected")
	f.svc.mu.Unlock()

	ctx := context.Background()
	require.NoError(t, f.eng.LoadFeed(ctx))

	st, err := f.eng.ToggleLike(ctx, "r1")
	assert.Error(t, err)
	assert.False(t, st.Liked)
	assert.Equal(t, int64(10), st.LikeCount)
}

func TestMediaErrorRecoversAfterTwoRetries(t *testing.T) {
	f := newEngineFixture(t, makeReels(3), nil)
	ctx := context.Background()
	require.NoError(t, f.eng.LoadFeed(ctx))

	require.NoError(t, f.eng.ReportMediaEvent(ctx, "r0", MediaEvent{Kind: "error", Error: "decode failed"}))
	require.Equal(t, 1, f.timers.count())
	f.timers.fireLast(t)

	require.NoError(t, f.eng.ReportMediaEvent(ctx, "r0", MediaEvent{Kind: "error", Error: "decode failed"}))
	require.Equal(t, 2, f.timers.count())
	f.timers.fireLast(t)

	// Third load succeeds.
	f.ready(t, "r0")

	snap := f.eng.Snapshot()
	for _, s := range snap.Sessions {
		if s.Reel.ID == "r0" {
			// Active item autoplays straight from ready.
			assert.Equal(t, playback.StatePlaying, s.Session.State)
		}
	}
	assert.Equal(t, 2, f.timers.count(), "no third automatic reload scheduled")
}

func TestMuteTogglePropagatesToMountedSessions(t *testing.T) {
	f := newEngineFixture(t, makeReels(3), nil)
	ctx := context.Background()
	require.NoError(t, f.eng.LoadFeed(ctx))

	assert.True(t, f.eng.Muted(), "feed starts muted")
	muted := f.eng.ToggleMute()
	assert.False(t, muted)

	snap := f.eng.Snapshot()
	for _, s := range snap.Sessions {
		assert.False(t, s.Session.Muted)
	}
}

func TestEmptyFeed(t *testing.T) {
	f := newEngineFixture(t, nil, nil)
	ctx := context.Background()
	require.NoError(t, f.eng.LoadFeed(ctx))

	snap := f.eng.Snapshot()
	assert.Equal(t, -1, snap.ActiveIndex)
	assert.Zero(t, snap.Total)
	assert.Empty(t, snap.Sessions)
}

func TestPaginationLoadsNextPageNearEnd(t *testing.T) {
	first := makeReels(3)
	second := []feed.ReelRecord{
		{ID: "r100", MediaURL: "https://cdn.example.com/r100.mp4", Owner: feed.Owner{ID: "u9"}},
	}
	svc := newFakeService(map[string]feed.ReelPage{
		"":   {Records: first, NextCursor: "c2"},
		"c2": {Records: second},
	})
	timers := &manualTimers{}
	eng, err := New(Config{
		Service:      svc,
		Resolver:     source.NewResolver(source.ResolverConfig{}),
		ViewerID:     "v1",
		Auth:         staticAuth{viewer: "v1"},
		NewTicker:    func(time.Duration) playback.Ticker { return stubTicker{ch: make(chan time.Time)} },
		RetryOptions: []retry.Option{retry.WithTimerFactory(timers.factory)},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = eng.Close(context.Background()) })

	ctx := context.Background()
	require.NoError(t, eng.LoadFeed(ctx))

	snap := eng.SetIndex(ctx, 2)
	assert.Equal(t, 4, snap.Total, "approaching the end pulls the next page")
	assert.False(t, snap.HasMore)
}

func TestRefreshReplacesMountedControllers(t *testing.T) {
	f := newEngineFixture(t, makeReels(3), nil)
	ctx := context.Background()
	require.NoError(t, f.eng.LoadFeed(ctx))
	f.ready(t, "r0")
	require.Equal(t, []string{"r0"}, f.eng.PlayingReels())

	// The backend serves a brand new record set on refresh.
	fresh := []feed.ReelRecord{
		{ID: "x0", MediaURL: "https://cdn.example.com/x0.mp4", Owner: feed.Owner{ID: "u9"}},
		{ID: "x1", MediaURL: "https://cdn.example.com/x1.mp4", Owner: feed.Owner{ID: "u9"}},
	}
	f.svc.mu.Lock()
	f.svc.pages[""] = feed.ReelPage{Records: fresh}
	f.svc.mu.Unlock()
	require.NoError(t, f.eng.LoadFeed(ctx))

	// Every snapshot slot pairs the new record with its own session.
	snap := f.eng.Snapshot()
	require.NotEmpty(t, snap.Sessions)
	for _, s := range snap.Sessions {
		assert.Equal(t, s.Reel.ID, s.Session.ReelID)
	}

	// Events for the old reels no longer route anywhere, events for the
	// new active reel reach its own controller.
	assert.ErrorIs(t, f.eng.ReportMediaEvent(ctx, "r0", MediaEvent{Kind: "ready"}), ErrUnknownReel)
	f.ready(t, "x0")
	assert.Equal(t, []string{"x0"}, f.eng.PlayingReels())
}

func TestRefreshKeepsUnchangedSlotMounted(t *testing.T) {
	f := newEngineFixture(t, makeReels(3), nil)
	ctx := context.Background()
	require.NoError(t, f.eng.LoadFeed(ctx))
	f.ready(t, "r0")

	// Identical page: the active session survives the refresh untouched.
	require.NoError(t, f.eng.LoadFeed(ctx))
	assert.Equal(t, []string{"r0"}, f.eng.PlayingReels())
}

func TestUnknownReelOperationsFail(t *testing.T) {
	f := newEngineFixture(t, makeReels(2), nil)
	ctx := context.Background()
	require.NoError(t, f.eng.LoadFeed(ctx))

	_, err := f.eng.ToggleLike(ctx, "nope")
	assert.ErrorIs(t, err, ErrUnknownReel)

	err = f.eng.ReportMediaEvent(ctx, "nope", MediaEvent{Kind: "ready"})
	assert.ErrorIs(t, err, ErrUnknownReel)

	err = f.eng.ReportMediaEvent(ctx, "r0", MediaEvent{Kind: "bogus"})
	assert.Error(t, err)
}

func TestEventForUnmountedReelIsDistinguished(t *testing.T) {
	f := newEngineFixture(t, makeReels(5), nil)
	ctx := context.Background()
	require.NoError(t, f.eng.LoadFeed(ctx))

	// r4 is in the feed but outside the mounted window around index 0.
	err := f.eng.ReportMediaEvent(ctx, "r4", MediaEvent{Kind: "ready"})
	assert.ErrorIs(t, err, ErrReelNotMounted)
	assert.NotErrorIs(t, err, ErrUnknownReel)
}
