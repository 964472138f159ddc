// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package textpipe

import (
	"testing"

	"github.com/gogpu/textpipe/texture"
)

func TestTextBounds(t *testing.T) {
	tex := texture.New(texture.DefaultDescriptor(200, 100), nil)

	tests := []struct {
		name               string
		resolution         float64
		anchorX, anchorY   float64
		padding            float64
		want               Bounds
	}{
		{
			name:       "top left anchor",
			resolution: 1,
			want:       Bounds{MinX: 0, MinY: 0, MaxX: 200, MaxY: 100},
		},
		{
			name:       "center anchor",
			resolution: 1,
			anchorX:    0.5, anchorY: 0.5,
			want: Bounds{MinX: -100, MinY: -50, MaxX: 100, MaxY: 50},
		},
		{
			name:       "bottom right anchor",
			resolution: 1,
			anchorX:    1, anchorY: 1,
			want: Bounds{MinX: -200, MinY: -100, MaxX: 0, MaxY: 0},
		},
		{
			name:       "high resolution halves logical size",
			resolution: 2,
			want:       Bounds{MinX: 0, MinY: 0, MaxX: 100, MaxY: 50},
		},
		{
			name:       "padding shifts the quad back",
			resolution: 1,
			padding:    4,
			want:       Bounds{MinX: -4, MinY: -4, MaxX: 196, MaxY: 96},
		},
		{
			name:       "non-positive resolution treated as 1",
			resolution: 0,
			want:       Bounds{MinX: 0, MinY: 0, MaxX: 200, MaxY: 100},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TextBounds(tex, tt.resolution, tt.anchorX, tt.anchorY, tt.padding)
			if got != tt.want {
				t.Errorf("TextBounds = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestTextBoundsNilTexture(t *testing.T) {
	if got := TextBounds(nil, 1, 0, 0, 0); got != (Bounds{}) {
		t.Errorf("TextBounds(nil) = %+v, want zero", got)
	}
}

func TestTextBoundsPlaceholder(t *testing.T) {
	got := TextBounds(texture.Empty(), 1, 0.5, 0.5, 0)
	if got.Width() != 0 || got.Height() != 0 {
		t.Errorf("placeholder bounds %+v, want zero area", got)
	}
}

func TestBoundsExtent(t *testing.T) {
	b := Bounds{MinX: -3, MinY: 2, MaxX: 7, MaxY: 12}
	if b.Width() != 10 {
		t.Errorf("Width = %v, want 10", b.Width())
	}
	if b.Height() != 10 {
		t.Errorf("Height = %v, want 10", b.Height())
	}
}
