// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

// Package texture provides the CPU/GPU texture pair handed between the text
// texture provider and the batching pipeline.
//
// A Texture always carries its CPU-side pixel source (a gg.Pixmap). The GPU
// handle is created lazily through a gpucontext.TextureCreator, following the
// same integration boundary gg's canvas integration uses: this package never
// talks to wgpu directly, only to gpucontext interfaces.
package texture

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/gg"
	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
)

// Texture errors.
var (
	// ErrDestroyed is returned when operating on a destroyed texture.
	ErrDestroyed = errors.New("texture: texture has been destroyed")

	// ErrNilCreator is returned when uploading without a texture creator.
	ErrNilCreator = errors.New("texture: nil texture creator")

	// ErrNoPixels is returned when uploading a texture without pixel data.
	ErrNoPixels = errors.New("texture: no pixel data")
)

// Descriptor describes a texture.
type Descriptor struct {
	// Label is an optional debug label.
	Label string

	// Width is the texture width in pixels.
	Width int

	// Height is the texture height in pixels.
	Height int

	// Format is the texture pixel format.
	Format gputypes.TextureFormat
}

// DefaultDescriptor returns a Descriptor with the RGBA8 format used by
// gg pixmaps. Only Width and Height need to be set.
func DefaultDescriptor(width, height int) Descriptor {
	return Descriptor{
		Width:  width,
		Height: height,
		Format: gputypes.TextureFormatRGBA8Unorm,
	}
}

// destroyer matches the Destroy method of GPU texture handles.
type destroyer interface {
	Destroy()
}

// Texture pairs a CPU pixel source with a lazily-created GPU handle.
//
// Texture is safe for concurrent use: the provider's rasterization goroutine
// and the render thread may both hold references.
type Texture struct {
	mu sync.RWMutex

	desc   Descriptor
	pixmap *gg.Pixmap

	// gpu is the handle returned by gpucontext.TextureCreator, nil until
	// the first successful UploadTo.
	gpu any

	destroyed bool

	// shared marks the package-level placeholder, which must survive
	// Destroy calls from individual consumers.
	shared bool
}

// New creates a texture from a descriptor and its pixel source.
// The pixmap may be nil for a zero-area texture.
func New(desc Descriptor, pm *gg.Pixmap) *Texture {
	return &Texture{desc: desc, pixmap: pm}
}

// FromPixmap creates a texture whose descriptor is derived from the pixmap.
func FromPixmap(pm *gg.Pixmap, label string) *Texture {
	desc := DefaultDescriptor(pm.Width(), pm.Height())
	desc.Label = label
	return New(desc, pm)
}

// empty is the shared zero-area placeholder texture.
var empty = &Texture{
	desc:   Descriptor{Label: "empty", Format: gputypes.TextureFormatRGBA8Unorm},
	shared: true,
}

// Empty returns the shared zero-area placeholder texture.
// It is assigned to records before their first real texture arrives and is
// never destroyed.
func Empty() *Texture {
	return empty
}

// Label returns the texture's debug label.
func (t *Texture) Label() string { return t.desc.Label }

// Width returns the texture width in pixels.
func (t *Texture) Width() int { return t.desc.Width }

// Height returns the texture height in pixels.
func (t *Texture) Height() int { return t.desc.Height }

// Format returns the texture pixel format.
func (t *Texture) Format() gputypes.TextureFormat { return t.desc.Format }

// Descriptor returns a copy of the texture descriptor.
func (t *Texture) Descriptor() Descriptor { return t.desc }

// Pixmap returns the CPU pixel source, nil for zero-area textures.
func (t *Texture) Pixmap() *gg.Pixmap {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pixmap
}

// Data returns the raw RGBA pixel data, nil for zero-area textures.
func (t *Texture) Data() []byte {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.pixmap == nil {
		return nil
	}
	return t.pixmap.Data()
}

// GPU returns the GPU handle created by UploadTo, or nil if the texture has
// not been uploaded. The handle implements gpucontext.Texture.
func (t *Texture) GPU() any {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.gpu
}

// IsDestroyed reports whether the texture has been destroyed.
func (t *Texture) IsDestroyed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.destroyed
}

// UploadTo creates the GPU texture from the CPU pixel data.
//
// If the texture already has a GPU handle, the pixel data is refreshed in
// place through gpucontext.TextureUpdater instead of recreating the handle.
// gg pixmap data is premultiplied alpha, so the handle is marked accordingly
// when it supports it.
func (t *Texture) UploadTo(creator gpucontext.TextureCreator) error {
	if creator == nil {
		return ErrNilCreator
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.destroyed {
		return ErrDestroyed
	}
	if t.pixmap == nil {
		return ErrNoPixels
	}

	data := t.pixmap.Data()

	if t.gpu != nil {
		if updater, ok := t.gpu.(gpucontext.TextureUpdater); ok {
			if err := updater.UpdateData(data); err != nil {
				return fmt.Errorf("texture: update failed: %w", err)
			}
			return nil
		}
		// Handle cannot be updated in place; recreate it below.
		if d, ok := t.gpu.(destroyer); ok {
			d.Destroy()
		}
		t.gpu = nil
	}

	handle, err := creator.NewTextureFromRGBA(t.desc.Width, t.desc.Height, data)
	if err != nil {
		return fmt.Errorf("texture: NewTextureFromRGBA failed: %w", err)
	}

	if pt, ok := handle.(interface{ SetPremultiplied(bool) }); ok {
		pt.SetPremultiplied(true)
	}

	t.gpu = handle
	return nil
}

// Destroy releases the GPU handle and drops the pixel source.
// Destroy is idempotent and a no-op for the shared placeholder.
func (t *Texture) Destroy() {
	t.mu.Lock()
	if t.shared || t.destroyed {
		t.mu.Unlock()
		return
	}
	t.destroyed = true
	gpu := t.gpu
	t.gpu = nil
	t.pixmap = nil
	t.mu.Unlock()

	if d, ok := gpu.(destroyer); ok {
		d.Destroy()
	}
}
