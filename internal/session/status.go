// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"time"

	"github.com/ManuGH/relayplay/internal/quality"
)

// StatusKind is what the UI renders.
type StatusKind string

const (
	StatusInitializing StatusKind = "initializing"
	StatusResolving    StatusKind = "resolving"
	StatusLoading      StatusKind = "loading"
	StatusReady        StatusKind = "ready"
	StatusClickToPlay  StatusKind = "click-to-play"
	StatusError        StatusKind = "error"
)

// Status is one entry of the status stream.
type Status struct {
	Kind       StatusKind   `json:"kind"`
	Message    string       `json:"message,omitempty"`
	Warning    string       `json:"warning,omitempty"`
	State      State        `json:"state"`
	Quality    quality.Tier `json:"quality,omitempty"`
	Generation uint64       `json:"generation"`
	At         time.Time    `json:"at"`
}

// Text renders the status line, e.g. "error:upstream is unreachable".
func (s Status) Text() string {
	if s.Kind == StatusError {
		return string(s.Kind) + ":" + s.Message
	}
	return string(s.Kind)
}

const subscriberBuffer = 16

// publishLocked fans s out to every subscriber. When a subscriber lags, its
// oldest entry is dropped so the latest status always arrives.
func (c *Controller) publishLocked(s Status) {
	s.At = c.now()
	s.State = c.state
	s.Generation = c.gen
	if s.Quality == "" {
		s.Quality = c.quality
	}
	c.status = s
	for _, ch := range c.subs {
		select {
		case ch <- s:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- s:
		default:
		}
	}
}

// Subscribe returns a channel that first receives the current status and then
// every update. The channel is closed on Teardown or when cancel is called.
func (c *Controller) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, subscriberBuffer)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tornDown {
		ch <- c.status
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subs[id] = ch
	ch <- c.status

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}
