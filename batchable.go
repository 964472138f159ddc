// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package textpipe

import "github.com/gogpu/textpipe/texture"

// BatchableText is the pooled record handed to the batch submission service.
// It pairs the quad geometry of one renderable with the texture to sample.
//
// Each BatchableText is exclusively owned by one renderable's record for
// that record's lifetime; it is acquired from the pipe's pool on first touch
// and released when the renderable is destroyed.
type BatchableText struct {
	// Renderable is the scene entity this entry draws.
	Renderable Renderable

	// Texture is the texture currently displayed. It always matches the
	// Bounds: both are updated together during the synchronous update step.
	Texture *texture.Texture

	// Bounds is the quad geometry in the renderable's local coordinates.
	Bounds Bounds
}

// reset prepares a recycled entry for reuse.
func (b *BatchableText) reset() {
	b.Renderable = nil
	b.Texture = texture.Empty()
	b.Bounds = Bounds{}
}

// Batcher is the batch submission service consumed by the pipe.
// Implementations collect entries during the frame's instruction pass and
// turn them into draw calls; the batch package provides a quad batcher.
type Batcher interface {
	// AddToBatch registers a new drawable entry.
	AddToBatch(entry *BatchableText)

	// UpdateElement notifies that an already-registered entry's geometry
	// or texture changed in place.
	UpdateElement(entry *BatchableText)
}
