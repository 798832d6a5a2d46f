// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package session

import (
	"context"
	"slices"
	"time"

	"github.com/ManuGH/relayplay/internal/capability"
	"github.com/ManuGH/relayplay/internal/manifest"
	"github.com/ManuGH/relayplay/internal/quality"
)

// Snapshot is a read-only view of the controller.
type Snapshot struct {
	ID         string         `json:"id"`
	State      State          `json:"state"`
	Reference  string         `json:"reference,omitempty"`
	Quality    quality.Tier   `json:"quality,omitempty"`
	Selectable []quality.Tier `json:"selectable"`
	Source     manifest.Kind  `json:"source,omitempty"`
	Status     Status         `json:"status"`
	Position   time.Duration  `json:"-"`
	Seconds    float64        `json:"positionSeconds"`
	Playing    bool           `json:"playing"`
	Generation uint64         `json:"generation"`
	TornDown   bool           `json:"tornDown"`
}

// Snapshot returns the current view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		ID:         c.id,
		State:      c.state,
		Quality:    c.quality,
		Source:     c.source.Kind,
		Status:     c.status,
		Generation: c.gen,
		TornDown:   c.tornDown,
		Selectable: []quality.Tier{},
	}
	if c.ref != nil {
		s.Reference = string(c.ref.Kind())
		s.Selectable = capability.Selectable(c.ref)
	}
	if c.attached {
		s.Position = c.cfg.Player.CurrentTime()
		s.Seconds = s.Position.Seconds()
		s.Playing = !c.cfg.Player.Paused()
	}
	return s
}

// Selectable lists the tiers the UI may offer for the active reference.
func (c *Controller) Selectable() []quality.Tier {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ref == nil {
		return quality.All()
	}
	return capability.Selectable(c.ref)
}

// WaitFor blocks until the session reaches one of states or ctx ends.
func (c *Controller) WaitFor(ctx context.Context, states ...State) (Snapshot, error) {
	ch, cancel := c.Subscribe()
	defer cancel()
	for {
		select {
		case <-ctx.Done():
			return c.Snapshot(), ctx.Err()
		case st, ok := <-ch:
			if !ok {
				return c.Snapshot(), ErrTornDown
			}
			if slices.Contains(states, st.State) {
				return c.Snapshot(), nil
			}
		}
	}
}
