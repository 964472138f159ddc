// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package batch provides a quad batcher consuming the pipe's text entries.
//
// It collects BatchableText entries into a stable element list and flattens
// them into interleaved triangle-list vertex data ready for a single draw
// submission per texture page. Hosts with their own sprite batcher can skip
// this package and implement textpipe.Batcher directly.
package batch

import (
	"github.com/gogpu/textpipe"
)

// floatsPerVertex is the interleaved layout: position x, y and uv u, v.
const floatsPerVertex = 4

// vertsPerQuad is two triangles per quad.
const vertsPerQuad = 6

// Batch accumulates text entries and produces vertex data.
//
// Batch is not safe for concurrent use; like the pipe, it belongs to the
// render thread.
type Batch struct {
	elements []*textpipe.BatchableText
	index    map[*textpipe.BatchableText]int

	// dirty is set whenever an element is added or updated, and cleared
	// by Vertices.
	dirty bool

	adds    uint64
	updates uint64
}

// New creates an empty batch.
func New() *Batch {
	return &Batch{
		index: make(map[*textpipe.BatchableText]int),
	}
}

// Ensure Batch satisfies the pipe's batcher contract.
var _ textpipe.Batcher = (*Batch)(nil)

// AddToBatch registers a new drawable entry. Registering an entry that is
// already batched degrades to an in-place update.
func (b *Batch) AddToBatch(e *textpipe.BatchableText) {
	if e == nil {
		return
	}
	if _, ok := b.index[e]; ok {
		b.UpdateElement(e)
		return
	}
	b.index[e] = len(b.elements)
	b.elements = append(b.elements, e)
	b.dirty = true
	b.adds++
}

// UpdateElement notifies that an already-batched entry changed in place.
// Unknown entries are registered instead, so Add/Update ordering mistakes
// by the host degrade gracefully.
func (b *Batch) UpdateElement(e *textpipe.BatchableText) {
	if e == nil {
		return
	}
	if _, ok := b.index[e]; !ok {
		b.AddToBatch(e)
		return
	}
	b.dirty = true
	b.updates++
}

// Remove drops an entry from the batch. The remaining element order is
// preserved.
func (b *Batch) Remove(e *textpipe.BatchableText) {
	i, ok := b.index[e]
	if !ok {
		return
	}
	b.elements = append(b.elements[:i], b.elements[i+1:]...)
	delete(b.index, e)
	for j := i; j < len(b.elements); j++ {
		b.index[b.elements[j]] = j
	}
	b.dirty = true
}

// Len returns the number of batched elements.
func (b *Batch) Len() int {
	return len(b.elements)
}

// Elements returns the batched entries in submission order.
// The returned slice is owned by the batch; callers must not modify it.
func (b *Batch) Elements() []*textpipe.BatchableText {
	return b.elements
}

// Dirty reports whether vertex data changed since the last Vertices call.
func (b *Batch) Dirty() bool {
	return b.dirty
}

// Adds returns the number of AddToBatch registrations.
func (b *Batch) Adds() uint64 { return b.adds }

// Updates returns the number of in-place element updates.
func (b *Batch) Updates() uint64 { return b.updates }

// Vertices flattens the batch into interleaved triangle-list vertex data,
// four floats per vertex (x, y, u, v), six vertices per quad. Each quad
// samples its entry's full texture. Clears the dirty flag.
func (b *Batch) Vertices() []float32 {
	out := make([]float32, 0, len(b.elements)*vertsPerQuad*floatsPerVertex)
	for _, e := range b.elements {
		bounds := e.Bounds
		x0, y0 := float32(bounds.MinX), float32(bounds.MinY)
		x1, y1 := float32(bounds.MaxX), float32(bounds.MaxY)

		out = append(out,
			x0, y0, 0, 0,
			x1, y0, 1, 0,
			x1, y1, 1, 1,

			x0, y0, 0, 0,
			x1, y1, 1, 1,
			x0, y1, 0, 1,
		)
	}
	b.dirty = false
	return out
}

// Clear drops all elements.
func (b *Batch) Clear() {
	b.elements = b.elements[:0]
	clear(b.index)
	b.dirty = true
}
