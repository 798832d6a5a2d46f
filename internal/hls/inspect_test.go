// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package hls

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const mediaPlaylist = `#EXTM3U
#EXT-X-VERSION:3
#EXT-X-TARGETDURATION:10
#EXT-X-MEDIA-SEQUENCE:0
#EXT-X-PLAYLIST-TYPE:VOD
#EXT-X-KEY:METHOD=AES-128,URI="https://keys.example/k1"
#EXTINF:10.000,
https://d.1024tera.com/seg0.ts
#EXTINF:10.000,
https://d.1024tera.com/seg1.ts
#EXTINF:4.500,
seg2.ts
#EXT-X-ENDLIST
`

const masterPlaylist = `#EXTM3U
#EXT-X-STREAM-INF:BANDWIDTH=800000,RESOLUTION=640x360
low/index.m3u8
#EXT-X-STREAM-INF:BANDWIDTH=2800000,RESOLUTION=1280x720
hi/index.m3u8
`

func TestInspect_Media(t *testing.T) {
	info, err := Inspect(mediaPlaylist)
	require.NoError(t, err)

	assert.False(t, info.Master)
	assert.True(t, info.IsVOD)
	require.Len(t, info.Segments, 3)
	assert.Equal(t, "https://d.1024tera.com/seg0.ts", info.Segments[0].URI)
	assert.Equal(t, "seg2.ts", info.Segments[2].URI)
	assert.Equal(t, 24500*time.Millisecond, info.TotalDuration)
	assert.Equal(t, 10*time.Second, info.TargetDuration)
	assert.Equal(t, []string{"https://keys.example/k1"}, info.KeyURIs)
}

func TestInspect_Master(t *testing.T) {
	info, err := Inspect(masterPlaylist)
	require.NoError(t, err)

	assert.True(t, info.Master)
	require.Len(t, info.Variants, 2)
	best, ok := info.Best()
	require.True(t, ok)
	assert.Equal(t, "hi/index.m3u8", best.URI)
	assert.Equal(t, "1280x720", best.Resolution)
}

func TestInspect_Errors(t *testing.T) {
	_, err := Inspect("not a playlist")
	require.Error(t, err)

	_, err = Inspect("#EXTM3U\n#EXT-X-TARGETDURATION:10\n#EXT-X-ENDLIST\n")
	require.ErrorIs(t, err, ErrEmptyPlaylist)
}

func TestResolveURI(t *testing.T) {
	tests := []struct {
		base, ref, want string
	}{
		{"https://cdn.example/v/index.m3u8", "seg1.ts", "https://cdn.example/v/seg1.ts"},
		{"https://cdn.example/v/index.m3u8", "/abs/seg1.ts", "https://cdn.example/abs/seg1.ts"},
		{"https://cdn.example/v/index.m3u8", "https://other.example/s.ts", "https://other.example/s.ts"},
		{"blob:relayplay/123", "seg1.ts", "seg1.ts"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ResolveURI(tt.base, tt.ref))
	}
}
