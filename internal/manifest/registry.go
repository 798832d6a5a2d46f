// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package manifest

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

const blobScheme = "blob:"

// IsBlobURL reports whether u is a local in-memory handle.
func IsBlobURL(u string) bool {
	return strings.HasPrefix(u, blobScheme)
}

// Registry stores in-memory manifests under blob: handles until they are released.
type Registry struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{blobs: make(map[string][]byte)}
}

// Create stores content and returns its handle.
func (r *Registry) Create(content []byte) *Blob {
	u := blobScheme + "relayplay/" + uuid.NewString()
	buf := make([]byte, len(content))
	copy(buf, content)

	r.mu.Lock()
	r.blobs[u] = buf
	r.mu.Unlock()

	return &Blob{url: u, registry: r}
}

// Open returns the content stored under u.
func (r *Registry) Open(u string) ([]byte, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.blobs[u]
	return b, ok
}

// Len is the number of live handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.blobs)
}

func (r *Registry) revoke(u string) {
	r.mu.Lock()
	delete(r.blobs, u)
	r.mu.Unlock()
}

// Blob is a handle to an in-memory manifest.
type Blob struct {
	url      string
	registry *Registry
	once     sync.Once
}

// URL is the blob: handle the engine loads.
func (b *Blob) URL() string {
	return b.url
}

// Release revokes the handle. Only the first call has an effect.
func (b *Blob) Release() bool {
	released := false
	b.once.Do(func() {
		b.registry.revoke(b.url)
		released = true
	})
	return released
}
