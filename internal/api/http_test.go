package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuGH/reelfeed/internal/engine"
	xglog "github.com/ManuGH/reelfeed/internal/log"
	"github.com/ManuGH/reelfeed/internal/social"
)

// fakeEngine records calls and returns scripted responses.
type fakeEngine struct {
	snap        engine.Snapshot
	interaction social.InteractionState
	likeErr     error
	eventErr    error
	retryErr    error

	setIndexCalls []int
	mediaEvents   []engine.MediaEvent
	mediaReels    []string
	viewerSeen    string
	muted         bool
	loadFeedCalls int
	loadMoreCalls int
}

func (f *fakeEngine) LoadFeed(context.Context) error { f.loadFeedCalls++; return nil }
func (f *fakeEngine) LoadMore(context.Context) error { f.loadMoreCalls++; return nil }
func (f *fakeEngine) Snapshot() engine.Snapshot      { return f.snap }

func (f *fakeEngine) SetIndex(_ context.Context, index int) engine.Snapshot {
	f.setIndexCalls = append(f.setIndexCalls, index)
	f.snap.ActiveIndex = index
	return f.snap
}

func (f *fakeEngine) Next(ctx context.Context) engine.Snapshot {
	return f.SetIndex(ctx, f.snap.ActiveIndex+1)
}

func (f *fakeEngine) Prev(ctx context.Context) engine.Snapshot {
	return f.SetIndex(ctx, f.snap.ActiveIndex-1)
}

func (f *fakeEngine) ToggleMute() bool { f.muted = !f.muted; return f.muted }
func (f *fakeEngine) Muted() bool      { return f.muted }

func (f *fakeEngine) ToggleLike(ctx context.Context, _ string) (social.InteractionState, error) {
	f.viewerSeen = xglog.ViewerIDFromContext(ctx)
	return f.interaction, f.likeErr
}

func (f *fakeEngine) ToggleFollow(context.Context, string) (social.InteractionState, error) {
	return f.interaction, f.likeErr
}

func (f *fakeEngine) Share(context.Context, string) (social.InteractionState, error) {
	return f.interaction, f.likeErr
}

func (f *fakeEngine) ReportMediaEvent(_ context.Context, reelID string, ev engine.MediaEvent) error {
	if f.eventErr != nil {
		return f.eventErr
	}
	f.mediaReels = append(f.mediaReels, reelID)
	f.mediaEvents = append(f.mediaEvents, ev)
	return nil
}

func (f *fakeEngine) ManualRetry(context.Context, string) error { return f.retryErr }
func (f *fakeEngine) TogglePlay(context.Context, string) error  { return f.retryErr }

func newTestServer(fe *fakeEngine) *httptest.Server {
	s := NewServer(ServerConfig{Listen: ":0", Engine: fe})
	return httptest.NewServer(s.Router())
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	resp, err := http.Post(url, "application/json", &buf)
	require.NoError(t, err)
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(&fakeEngine{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "ok", body["status"])
}

func TestFeedSnapshot(t *testing.T) {
	fe := &fakeEngine{snap: engine.Snapshot{ActiveIndex: 2, Total: 5, HasMore: true}}
	srv := newTestServer(fe)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/feed")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	snap := decodeBody[engine.Snapshot](t, resp)
	assert.Equal(t, 2, snap.ActiveIndex)
	assert.Equal(t, 5, snap.Total)
	assert.True(t, snap.HasMore)
}

func TestSetIndex(t *testing.T) {
	fe := &fakeEngine{}
	srv := newTestServer(fe)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/feed/index", map[string]int{"index": 3})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	snap := decodeBody[engine.Snapshot](t, resp)
	assert.Equal(t, 3, snap.ActiveIndex)
	assert.Equal(t, []int{3}, fe.setIndexCalls)
}

func TestSetIndexRejectsMalformedBody(t *testing.T) {
	srv := newTestServer(&fakeEngine{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/feed/index", "application/json", bytes.NewBufferString("not json"))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestNextPrev(t *testing.T) {
	fe := &fakeEngine{snap: engine.Snapshot{ActiveIndex: 1}}
	srv := newTestServer(fe)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/feed/next", nil)
	snap := decodeBody[engine.Snapshot](t, resp)
	assert.Equal(t, 2, snap.ActiveIndex)

	resp = postJSON(t, srv.URL+"/api/feed/prev", nil)
	snap = decodeBody[engine.Snapshot](t, resp)
	assert.Equal(t, 1, snap.ActiveIndex)
}

func TestMuteToggleRoundTrip(t *testing.T) {
	srv := newTestServer(&fakeEngine{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/feed/mute")
	require.NoError(t, err)
	assert.False(t, decodeBody[map[string]bool](t, resp)["muted"])

	resp = postJSON(t, srv.URL+"/api/feed/mute", nil)
	assert.True(t, decodeBody[map[string]bool](t, resp)["muted"])

	resp, err = http.Get(srv.URL + "/api/feed/mute")
	require.NoError(t, err)
	assert.True(t, decodeBody[map[string]bool](t, resp)["muted"])
}

func TestLikeReturnsInteractionState(t *testing.T) {
	fe := &fakeEngine{interaction: social.InteractionState{Liked: true, LikeCount: 11}}
	srv := newTestServer(fe)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/reels/r7/like", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	st := decodeBody[social.InteractionState](t, resp)
	assert.True(t, st.Liked)
	assert.Equal(t, int64(11), st.LikeCount)
}

func TestLikeUnauthenticatedMapsTo401(t *testing.T) {
	fe := &fakeEngine{likeErr: social.ErrLoginRequired}
	srv := newTestServer(fe)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/reels/r7/like", nil)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestLikeRateLimitedMapsTo429(t *testing.T) {
	fe := &fakeEngine{likeErr: social.ErrRateLimited}
	srv := newTestServer(fe)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/reels/r7/like", nil)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestUnknownReelMapsTo404(t *testing.T) {
	fe := &fakeEngine{retryErr: engine.ErrUnknownReel}
	srv := newTestServer(fe)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/reels/nope/retry", nil)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestViewerHeaderReachesHandlers(t *testing.T) {
	fe := &fakeEngine{}
	srv := newTestServer(fe)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/reels/r7/like", nil)
	require.NoError(t, err)
	req.Header.Set("X-Viewer-Id", "v42")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "v42", fe.viewerSeen)
}

func TestMediaEventForwarded(t *testing.T) {
	fe := &fakeEngine{}
	srv := newTestServer(fe)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/reels/r7/events", engine.MediaEvent{Kind: "ready"})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Len(t, fe.mediaEvents, 1)
	assert.Equal(t, "ready", fe.mediaEvents[0].Kind)
	assert.Equal(t, []string{"r7"}, fe.mediaReels)
}

func TestMediaEventUnknownKindMapsTo400(t *testing.T) {
	fe := &fakeEngine{eventErr: errors.New(`unknown media event kind: "warp"`)}
	srv := newTestServer(fe)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/reels/r7/events", engine.MediaEvent{Kind: "warp"})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMediaEventForUnmountedReelDropped(t *testing.T) {
	fe := &fakeEngine{eventErr: engine.ErrReelNotMounted}
	srv := newTestServer(fe)
	defer srv.Close()

	resp := postJSON(t, srv.URL+"/api/reels/r9/events", engine.MediaEvent{Kind: "ended"})
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	body := decodeBody[map[string]string](t, resp)
	assert.Equal(t, "dropped", body["status"])
}

func TestRequestIDEchoed(t *testing.T) {
	srv := newTestServer(&fakeEngine{})
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "req-123")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, "req-123", resp.Header.Get("X-Request-Id"))
}

func TestRequestIDGeneratedWhenAbsent(t *testing.T) {
	srv := newTestServer(&fakeEngine{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.NotEmpty(t, resp.Header.Get("X-Request-Id"))
}

func TestMetricsEndpointExposed(t *testing.T) {
	srv := newTestServer(&fakeEngine{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimitEnforced(t *testing.T) {
	s := NewServer(ServerConfig{
		Listen:     ":0",
		Engine:     &fakeEngine{},
		RateLimit:  2,
		RateWindow: time.Minute,
	})
	srv := httptest.NewServer(s.Router())
	defer srv.Close()

	for i := 0; i < 2; i++ {
		resp, err := http.Get(srv.URL + "/healthz")
		require.NoError(t, err)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))
}
