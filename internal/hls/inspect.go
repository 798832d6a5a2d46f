// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package hls inspects HLS playlists so the engine knows what to fetch next.
package hls

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/grafov/m3u8"
)

// ErrEmptyPlaylist is returned for a media playlist without segments or a master without variants.
var ErrEmptyPlaylist = errors.New("playlist has no entries")

// Variant is one rendition listed by a master playlist.
type Variant struct {
	URI        string
	Bandwidth  uint32
	Resolution string
}

// Segment is one media chunk of a media playlist.
type Segment struct {
	Seq      uint64
	URI      string
	Duration time.Duration
}

// Info summarises a playlist.
type Info struct {
	Master         bool
	Variants       []Variant
	Segments       []Segment
	KeyURIs        []string // encryption keys and init maps, deduplicated
	TargetDuration time.Duration
	TotalDuration  time.Duration
	IsVOD          bool // #EXT-X-PLAYLIST-TYPE:VOD or #EXT-X-ENDLIST
}

// Inspect decodes a playlist. Decoding is lenient; structural problems that
// leave nothing playable are reported as errors.
func Inspect(text string) (*Info, error) {
	pl, listType, err := m3u8.DecodeFrom(strings.NewReader(text), false)
	if err != nil {
		return nil, fmt.Errorf("decode playlist: %w", err)
	}

	switch listType {
	case m3u8.MASTER:
		master, ok := pl.(*m3u8.MasterPlaylist)
		if !ok {
			return nil, fmt.Errorf("unexpected master playlist type %T", pl)
		}
		return inspectMaster(master)
	case m3u8.MEDIA:
		media, ok := pl.(*m3u8.MediaPlaylist)
		if !ok {
			return nil, fmt.Errorf("unexpected media playlist type %T", pl)
		}
		return inspectMedia(media)
	default:
		return nil, fmt.Errorf("unknown playlist type %v", listType)
	}
}

func inspectMaster(p *m3u8.MasterPlaylist) (*Info, error) {
	info := &Info{Master: true}
	for _, v := range p.Variants {
		if v == nil || v.URI == "" {
			continue
		}
		info.Variants = append(info.Variants, Variant{
			URI:        v.URI,
			Bandwidth:  v.Bandwidth,
			Resolution: v.Resolution,
		})
	}
	if len(info.Variants) == 0 {
		return nil, ErrEmptyPlaylist
	}
	return info, nil
}

func inspectMedia(p *m3u8.MediaPlaylist) (*Info, error) {
	info := &Info{
		TargetDuration: seconds(p.TargetDuration),
		IsVOD:          p.Closed || p.MediaType == m3u8.VOD,
	}
	seen := make(map[string]struct{})
	addKey := func(uri string) {
		if uri == "" {
			return
		}
		if _, dup := seen[uri]; dup {
			return
		}
		seen[uri] = struct{}{}
		info.KeyURIs = append(info.KeyURIs, uri)
	}
	if p.Key != nil {
		addKey(p.Key.URI)
	}
	if p.Map != nil {
		addKey(p.Map.URI)
	}

	// The decoder pre-allocates the segment ring; unused slots are nil.
	for _, s := range p.Segments {
		if s == nil {
			continue
		}
		if s.Key != nil {
			addKey(s.Key.URI)
		}
		if s.Map != nil {
			addKey(s.Map.URI)
		}
		d := seconds(s.Duration)
		info.Segments = append(info.Segments, Segment{Seq: s.SeqId, URI: s.URI, Duration: d})
		info.TotalDuration += d
	}
	if len(info.Segments) == 0 {
		return nil, ErrEmptyPlaylist
	}
	return info, nil
}

// Best returns the variant with the highest bandwidth. The upstream already
// picked the tier, so masters normally carry a single rendition.
func (i *Info) Best() (Variant, bool) {
	if len(i.Variants) == 0 {
		return Variant{}, false
	}
	best := i.Variants[0]
	for _, v := range i.Variants[1:] {
		if v.Bandwidth > best.Bandwidth {
			best = v
		}
	}
	return best, true
}

// ResolveURI resolves ref against the playlist location. Absolute references
// and playlists without a usable base (blob handles) return ref unchanged.
func ResolveURI(base, ref string) string {
	r, err := url.Parse(ref)
	if err != nil || r.IsAbs() {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return ref
	}
	return b.ResolveReference(r).String()
}

func seconds(f float64) time.Duration {
	return time.Duration(f * float64(time.Second))
}
