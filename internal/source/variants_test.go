package source

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const masterPlaylist = `#EXTM3U
#EXT-X-VERSION:6
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=360x640,CODECS="avc1.64001e,mp4a.40.2"
low/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2400000,RESOLUTION=720x1280,CODECS="avc1.64001f,mp4a.40.2"
mid/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=5200000,RESOLUTION=1080x1920
high/index.m3u8
`

func TestExtractVariants(t *testing.T) {
	variants, err := ExtractVariants(masterPlaylist)
	require.NoError(t, err)
	require.Len(t, variants, 3)

	assert.Equal(t, int64(800000), variants[0].Bandwidth)
	assert.Equal(t, "360x640", variants[0].Resolution)
	assert.Equal(t, "avc1.64001e,mp4a.40.2", variants[0].Codecs)
	assert.Equal(t, "low/index.m3u8", variants[0].URI)

	assert.Equal(t, int64(5200000), variants[2].Bandwidth)
	assert.Empty(t, variants[2].Codecs)
}

func TestExtractVariantsMissingBandwidth(t *testing.T) {
	_, err := ExtractVariants("#EXTM3U\n#EXT-X-STREAM-INF:RESOLUTION=720x1280\nmid/index.m3u8\n")
	assert.Error(t, err)
}

func TestExtractVariantsDanglingStreamInf(t *testing.T) {
	_, err := ExtractVariants("#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=800000\n")
	assert.Error(t, err)
}

func TestExtractVariantsInvalidBandwidth(t *testing.T) {
	_, err := ExtractVariants("#EXTM3U\n#EXT-X-STREAM-INF:BANDWIDTH=abc\nlow/index.m3u8\n")
	assert.Error(t, err)
}

func TestSelectVariant(t *testing.T) {
	variants, err := ExtractVariants(masterPlaylist)
	require.NoError(t, err)

	t.Run("unconstrained picks highest", func(t *testing.T) {
		v, ok := SelectVariant(variants, 0)
		require.True(t, ok)
		assert.Equal(t, int64(5200000), v.Bandwidth)
	})

	t.Run("cap picks highest under cap", func(t *testing.T) {
		v, ok := SelectVariant(variants, 3000000)
		require.True(t, ok)
		assert.Equal(t, int64(2400000), v.Bandwidth)
	})

	t.Run("cap below all picks lowest", func(t *testing.T) {
		v, ok := SelectVariant(variants, 100000)
		require.True(t, ok)
		assert.Equal(t, int64(800000), v.Bandwidth)
	})

	t.Run("empty set", func(t *testing.T) {
		_, ok := SelectVariant(nil, 0)
		assert.False(t, ok)
	})
}

func TestResolveVariantURI(t *testing.T) {
	resolved, err := ResolveVariantURI("https://cdn.example.com/reels/r1/master.m3u8", "mid/index.m3u8")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example.com/reels/r1/mid/index.m3u8", resolved)

	resolved, err = ResolveVariantURI("https://cdn.example.com/reels/r1/master.m3u8", "https://other.example.com/abs.m3u8")
	require.NoError(t, err)
	assert.Equal(t, "https://other.example.com/abs.m3u8", resolved)
}
