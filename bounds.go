// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package textpipe

import "github.com/gogpu/textpipe/texture"

// Bounds is an axis-aligned quad in the renderable's local coordinates.
type Bounds struct {
	MinX, MinY float64
	MaxX, MaxY float64
}

// Width returns the horizontal extent.
func (b Bounds) Width() float64 { return b.MaxX - b.MinX }

// Height returns the vertical extent.
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

// TextBounds computes the quad bounds for a text texture in local
// coordinates.
//
// The texture holds pixels at the given resolution, so its logical size is
// the pixel size divided by resolution. The anchor (normalized 0..1) places
// the local origin inside the quad, and the style padding baked into the
// texture is shifted back out so the glyphs land at their logical position.
//
// TextBounds is a pure function of its inputs: it always reflects the
// texture passed in, which is whatever texture the record displays at that
// instant.
func TextBounds(tex *texture.Texture, resolution, anchorX, anchorY, padding float64) Bounds {
	if tex == nil {
		return Bounds{}
	}
	if resolution <= 0 {
		resolution = 1
	}

	w := float64(tex.Width()) / resolution
	h := float64(tex.Height()) / resolution

	minX := -anchorX*w - padding
	minY := -anchorY*h - padding
	return Bounds{
		MinX: minX,
		MinY: minY,
		MaxX: minX + w,
		MaxY: minY + h,
	}
}
