// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package health

import (
	"context"
	"fmt"
)

// Pinger is implemented by the reference resolver.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker marks a remote dependency unhealthy when it does not answer.
type PingChecker struct {
	name   string
	pinger Pinger
}

// NewPingChecker wraps p.
func NewPingChecker(name string, p Pinger) *PingChecker {
	return &PingChecker{name: name, pinger: p}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	if err := c.pinger.Ping(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Message: "unreachable", Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}

// PoolSizer is implemented by the relay pool.
type PoolSizer interface {
	Len() int
}

// RelayPoolChecker reports the configured relay pool. A single relay is a
// degraded setup: every pooled request then shares one third party.
type RelayPoolChecker struct {
	pool PoolSizer
}

func NewRelayPoolChecker(pool PoolSizer) *RelayPoolChecker {
	return &RelayPoolChecker{pool: pool}
}

func (c *RelayPoolChecker) Name() string { return "relay_pool" }

func (c *RelayPoolChecker) Check(context.Context) CheckResult {
	n := 0
	if c.pool != nil {
		n = c.pool.Len()
	}
	switch {
	case n == 0:
		return CheckResult{Status: StatusUnhealthy, Message: "no relays configured"}
	case n == 1:
		return CheckResult{Status: StatusDegraded, Message: "1 relay configured"}
	default:
		return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("%d relays configured", n)}
	}
}

// FuncChecker adapts a function.
type FuncChecker struct {
	name string
	fn   func(ctx context.Context) CheckResult
}

func NewFuncChecker(name string, fn func(ctx context.Context) CheckResult) *FuncChecker {
	return &FuncChecker{name: name, fn: fn}
}

func (c *FuncChecker) Name() string { return c.name }

func (c *FuncChecker) Check(ctx context.Context) CheckResult { return c.fn(ctx) }
