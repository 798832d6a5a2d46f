// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package manifest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasHeader(t *testing.T) {
	assert.True(t, HasHeader("#EXTM3U\n#EXT-X-VERSION:3\n"))
	assert.True(t, HasHeader("\n  #EXTM3U\n"))
	assert.True(t, HasHeader("\ufeff#EXTM3U\n"))
	assert.False(t, HasHeader(`{"errno":-9,"errmsg":"file not found"}`))
	assert.False(t, HasHeader(""))
	assert.False(t, HasHeader("#EXT-X-VERSION:3\n#EXTM3U"))
}

func TestRegistry_CreateOpenRelease(t *testing.T) {
	r := NewRegistry()
	b := r.Create([]byte("#EXTM3U\n"))
	require.True(t, IsBlobURL(b.URL()))

	content, ok := r.Open(b.URL())
	require.True(t, ok)
	assert.Equal(t, "#EXTM3U\n", string(content))
	assert.Equal(t, 1, r.Len())

	assert.True(t, b.Release())
	assert.False(t, b.Release(), "second release must be a no-op")
	_, ok = r.Open(b.URL())
	assert.False(t, ok)
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_HandlesAreUnique(t *testing.T) {
	r := NewRegistry()
	a := r.Create([]byte("a"))
	b := r.Create([]byte("b"))
	assert.NotEqual(t, a.URL(), b.URL())
}

func TestSource_Transient(t *testing.T) {
	assert.Nil(t, FromURL("https://cdn/video.m3u8").Transient())

	r := NewRegistry()
	src := FromBlob(r.Create([]byte("#EXTM3U")))
	require.NotNil(t, src.Transient())
	assert.Equal(t, KindBlob, src.Kind)
	assert.True(t, Source{}.IsZero())
	assert.False(t, src.IsZero())
}
