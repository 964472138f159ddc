// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package provider produces the shared text textures consumed by the pipe.
//
// Textures are content-addressed: requests carrying equal keys resolve to
// the same texture, produced once and shared under a per-key reference
// count. Concurrent requests for a key still being produced wait for the
// first producer instead of rasterizing again.
package provider

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/textpipe"
	"github.com/gogpu/textpipe/texture"
)

// Provider errors.
var (
	// ErrEmptyKey is returned when a request carries no key.
	ErrEmptyKey = errors.New("provider: empty texture key")

	// ErrClosed is returned when requesting textures from a closed manager.
	ErrClosed = errors.New("provider: manager is closed")
)

// Config holds manager configuration.
type Config struct {
	// Creator uploads produced textures to the GPU. When nil, textures
	// stay CPU-side; they can still be uploaded later through
	// Texture.UploadTo.
	Creator gpucontext.TextureCreator
}

// DefaultConfig returns the default (CPU-side) configuration.
func DefaultConfig() Config {
	return Config{}
}

// entry is one reference-counted cached texture.
type entry struct {
	tex  *texture.Texture
	refs int
}

// Stats contains manager statistics for monitoring.
type Stats struct {
	// Entries is the number of live textures.
	Entries int
	// Hits is the number of requests served from cache.
	Hits uint64
	// Misses is the number of requests that produced a new texture.
	Misses uint64
	// Evictions is the number of textures reclaimed at zero references.
	Evictions uint64
}

// Manager is a content-addressed, reference-counted text texture cache.
//
// Manager is safe for concurrent use: the pipe calls GetManagedTexture from
// regeneration goroutines while DecreaseReferenceCount arrives from the
// render thread.
type Manager struct {
	creator gpucontext.TextureCreator

	mu      sync.Mutex
	cond    *sync.Cond
	entries map[string]*entry
	pending map[string]struct{}
	closed  bool

	// Statistics (atomic for zero-allocation reads).
	hits      atomic.Uint64
	misses    atomic.Uint64
	evictions atomic.Uint64
}

// NewManager creates a texture manager.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		creator: cfg.Creator,
		entries: make(map[string]*entry),
		pending: make(map[string]struct{}),
	}
	m.cond = sync.NewCond(&m.mu)
	return m
}

// Ensure Manager satisfies the pipe's provider contract.
var _ textpipe.TextureProvider = (*Manager)(nil)

// GetManagedTexture returns the texture for the request, rasterizing it if
// no cached one exists. Every successful call increments the reference count
// of the request's key by exactly one; the caller owns that reference until
// it calls DecreaseReferenceCount.
//
// If another goroutine is already producing the same key, the call waits for
// it and shares the result. Cancellation is checked between waits; an
// in-progress rasterization itself is not interrupted.
func (m *Manager) GetManagedTexture(ctx context.Context, req textpipe.TextureRequest) (*texture.Texture, error) {
	if req.Key == "" {
		return nil, ErrEmptyKey
	}

	m.mu.Lock()
	for {
		if m.closed {
			m.mu.Unlock()
			return nil, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			m.mu.Unlock()
			return nil, err
		}

		if e, ok := m.entries[req.Key]; ok {
			e.refs++
			m.mu.Unlock()
			m.hits.Add(1)
			return e.tex, nil
		}

		if _, busy := m.pending[req.Key]; !busy {
			break
		}
		m.cond.Wait()
	}

	// This goroutine produces the texture.
	m.pending[req.Key] = struct{}{}
	m.mu.Unlock()

	tex, err := m.rasterize(req)

	m.mu.Lock()
	delete(m.pending, req.Key)
	m.cond.Broadcast()
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	if m.closed {
		m.mu.Unlock()
		tex.Destroy()
		return nil, ErrClosed
	}
	m.entries[req.Key] = &entry{tex: tex, refs: 1}
	m.mu.Unlock()

	m.misses.Add(1)
	return tex, nil
}

// DecreaseReferenceCount releases one reference to a key. The texture is
// destroyed and evicted when its count reaches zero. Unknown keys, including
// the pipe's sentinel and keys already evicted at teardown, are ignored.
func (m *Manager) DecreaseReferenceCount(key string) {
	m.mu.Lock()
	e, ok := m.entries[key]
	if !ok {
		m.mu.Unlock()
		textpipe.Logger().Debug("reference release for unknown key", "key", key)
		return
	}
	e.refs--
	if e.refs > 0 {
		m.mu.Unlock()
		return
	}
	delete(m.entries, key)
	m.mu.Unlock()

	m.evictions.Add(1)
	e.tex.Destroy()
}

// ReferenceCount returns the current reference count for a key, zero for
// unknown keys.
func (m *Manager) ReferenceCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.entries[key]; ok {
		return e.refs
	}
	return 0
}

// Len returns the number of live textures.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Stats returns current manager statistics.
func (m *Manager) Stats() Stats {
	m.mu.Lock()
	entries := len(m.entries)
	m.mu.Unlock()

	return Stats{
		Entries:   entries,
		Hits:      m.hits.Load(),
		Misses:    m.misses.Load(),
		Evictions: m.evictions.Load(),
	}
}

// Close destroys all cached textures and rejects further requests.
// Reference releases arriving after Close are ignored. Close is idempotent.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	entries := m.entries
	m.entries = make(map[string]*entry)
	m.cond.Broadcast()
	m.mu.Unlock()

	for _, e := range entries {
		e.tex.Destroy()
	}
}
