package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		wantKind   Kind
		wantReason ReasonCode
	}{
		{
			name:       "hls master playlist",
			url:        "https://cdn.example.com/reels/r1/master.m3u8",
			wantKind:   KindAdaptive,
			wantReason: ReasonHLSManifest,
		},
		{
			name:       "hls uppercase extension",
			url:        "https://cdn.example.com/reels/r1/MASTER.M3U8",
			wantKind:   KindAdaptive,
			wantReason: ReasonHLSManifest,
		},
		{
			name:       "dash manifest",
			url:        "https://cdn.example.com/reels/r1/stream.mpd",
			wantKind:   KindAdaptive,
			wantReason: ReasonDASHManifest,
		},
		{
			name:       "progressive mp4",
			url:        "https://cdn.example.com/reels/r1.mp4",
			wantKind:   KindProgressive,
			wantReason: ReasonProgressiveFile,
		},
		{
			name:       "extensionless path",
			url:        "https://cdn.example.com/reels/r1",
			wantKind:   KindProgressive,
			wantReason: ReasonProgressiveFile,
		},
		{
			name:       "query string does not change the decision",
			url:        "https://cdn.example.com/reels/r1.mp4?fmt=master.m3u8",
			wantKind:   KindProgressive,
			wantReason: ReasonProgressiveFile,
		},
		{
			name:       "unparseable url",
			url:        "https://cdn.example.com/%zz",
			wantKind:   KindNone,
			wantReason: ReasonInvalidURL,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.url)
			assert.Equal(t, tt.wantKind, d.Kind)
			assert.Equal(t, tt.wantReason, d.Reason)
		})
	}
}
