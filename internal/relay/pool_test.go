// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package relay

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPool_Empty(t *testing.T) {
	_, err := NewPool(nil)
	require.ErrorIs(t, err, ErrEmptyPool)
}

func TestNewPool_RejectsRelativeEndpoint(t *testing.T) {
	_, err := NewPool([]string{"https://r1.example", "relay.example"})
	require.Error(t, err)
}

func TestPool_RoundRobinCycle(t *testing.T) {
	p, err := NewPool([]string{"https://r1.example/", "https://r2.example", "https://r3.example"})
	require.NoError(t, err)

	var got []Endpoint
	for i := 0; i < 7; i++ {
		got = append(got, p.Next())
	}
	assert.Equal(t, []Endpoint{
		"https://r1.example", "https://r2.example", "https://r3.example",
		"https://r1.example", "https://r2.example", "https://r3.example",
		"https://r1.example",
	}, got)
}

func TestPool_ConcurrentEvenDistribution(t *testing.T) {
	p, err := NewPool([]string{"https://a.example", "https://b.example"})
	require.NoError(t, err)

	var mu sync.Mutex
	counts := map[Endpoint]int{}
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ep := p.Next()
			mu.Lock()
			counts[ep]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counts["https://a.example"])
	assert.Equal(t, 50, counts["https://b.example"])
}

func TestPool_PeekDoesNotAdvance(t *testing.T) {
	p, err := NewPool([]string{"https://r1.example", "https://r2.example"})
	require.NoError(t, err)

	assert.Equal(t, Endpoint("https://r1.example"), p.Peek())
	assert.Equal(t, Endpoint("https://r1.example"), p.Peek())
	assert.Equal(t, Endpoint("https://r1.example"), p.Next())
	assert.Equal(t, Endpoint("https://r2.example"), p.Peek())
}

func TestEndpoint_Wrap(t *testing.T) {
	ep := Endpoint("https://relay.example/")
	assert.Equal(t,
		"https://relay.example/?url=https%3A%2F%2Fcdn.example%2Fseg+1.ts%3Fa%3D1%26b%3D2",
		ep.Wrap("https://cdn.example/seg 1.ts?a=1&b=2"))
}
