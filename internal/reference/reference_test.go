// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package reference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const base = "https://www.terabox.com/s/"

func TestSelect_Precedence(t *testing.T) {
	tests := []struct {
		name string
		src  Sources
		want Reference
	}{
		{"share wins", Sources{Share: "abc123", Start: "xyz", Launch: "l"}, Share{URL: "abc123"}},
		{"start over launch", Sources{Start: "xyz", Launch: "l"}, Start{Token: "xyz"}},
		{"launch prefixed", Sources{Launch: "1AbCd"}, Start{Token: base + "1AbCd"}},
		{"launch absolute kept", Sources{Launch: "https://terabox.com/s/1q"}, Start{Token: "https://terabox.com/s/1q"}},
		{"whitespace share ignored", Sources{Share: "  ", Start: "xyz"}, Start{Token: "xyz"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Select(tt.src, base)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSelect_NoReference(t *testing.T) {
	_, err := Select(Sources{}, base)
	require.ErrorIs(t, err, ErrNoReference)
}

func TestKinds(t *testing.T) {
	assert.Equal(t, KindShare, Share{URL: "u"}.Kind())
	assert.Equal(t, KindStart, Start{Token: "t"}.Kind())
	assert.Equal(t, "u", Share{URL: "u"}.Value())
	assert.Equal(t, "t", Start{Token: "t"}.Value())
}

func TestNormalizeStartToken(t *testing.T) {
	assert.Equal(t, base+"xyz", NormalizeStartToken("xyz", base))
	assert.Equal(t, base+"xyz", NormalizeStartToken("/xyz", base))
	assert.Equal(t, "http://host/s/1x", NormalizeStartToken("http://host/s/1x", base))
	assert.Equal(t, base+"1AbC", NormalizeStartToken("/s/1AbC", base))
	assert.Equal(t, base+"1AbC", NormalizeStartToken("sharing/link?surl=AbC", base))
	assert.Equal(t, base+"1AbC", NormalizeStartToken("sharing/link?surl=1AbC", base))
	// Scheme without host is not absolute.
	assert.Equal(t, base+"https:", NormalizeStartToken("https:", base))
}

func TestExtractShareCode(t *testing.T) {
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"https://www.1024tera.com/sharing/link?surl=AbC_d", "AbC_d", true},
		{"https://terabox.com/s/1AbC-d", "AbC-d", true},
		{"https://www.terabox.app/sharing/link?surl=1xyz", "xyz", true},
		{"1AbC", "AbC", true},
		{"AbC", "AbC", true},
		{"not a code!", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ExtractShareCode(tt.in)
		assert.Equal(t, tt.wantOK, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
