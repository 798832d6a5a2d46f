// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package engine

import (
	"errors"
	"sync"
	"time"
)

// ErrAutoplayBlocked is returned by Play when playback needs a user gesture.
var ErrAutoplayBlocked = errors.New("autoplay blocked: user must press play")

// Player is the media sink a session restores position and intent on.
type Player interface {
	CurrentTime() time.Duration
	Paused() bool
	Seek(offset time.Duration) error
	// Play starts playback. byUser marks a direct user gesture.
	Play(byUser bool) error
	Pause()
}

// VirtualPlayer is a headless sink whose clock advances while playing.
type VirtualPlayer struct {
	mu              sync.Mutex
	now             func() time.Time
	position        time.Duration
	playing         bool
	since           time.Time
	autoplayBlocked bool
}

// PlayerOption configures a VirtualPlayer.
type PlayerOption func(*VirtualPlayer)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) PlayerOption {
	return func(p *VirtualPlayer) { p.now = now }
}

// WithAutoplayBlocked makes Play fail until a user gesture arrives.
func WithAutoplayBlocked() PlayerOption {
	return func(p *VirtualPlayer) { p.autoplayBlocked = true }
}

// NewVirtualPlayer returns a paused player at offset zero.
func NewVirtualPlayer(opts ...PlayerOption) *VirtualPlayer {
	p := &VirtualPlayer{now: time.Now}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *VirtualPlayer) CurrentTime() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.currentLocked()
}

func (p *VirtualPlayer) currentLocked() time.Duration {
	if !p.playing {
		return p.position
	}
	return p.position + p.now().Sub(p.since)
}

func (p *VirtualPlayer) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return !p.playing
}

func (p *VirtualPlayer) Seek(offset time.Duration) error {
	if offset < 0 {
		offset = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.position = offset
	p.since = p.now()
	return nil
}

func (p *VirtualPlayer) Play(byUser bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.autoplayBlocked && !byUser {
		return ErrAutoplayBlocked
	}
	// A gesture unlocks playback for the lifetime of the sink.
	p.autoplayBlocked = false
	if !p.playing {
		p.playing = true
		p.since = p.now()
	}
	return nil
}

func (p *VirtualPlayer) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.playing {
		p.position = p.currentLocked()
		p.playing = false
	}
}
