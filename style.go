// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package textpipe

import (
	"errors"
	"fmt"
	"hash/fnv"
	"image/color"
	"strconv"
	"strings"
	"sync"

	ggtext "github.com/gogpu/gg/text"
	"golang.org/x/image/font/gofont/goregular"
)

// Style errors.
var (
	// ErrBadFontData is returned when the style's font data cannot be parsed.
	ErrBadFontData = errors.New("textpipe: invalid font data")
)

// Alignment controls horizontal placement of wrapped lines inside the
// generated texture.
type Alignment int

const (
	// AlignLeft aligns lines to the left edge.
	AlignLeft Alignment = iota
	// AlignCenter centers lines.
	AlignCenter
	// AlignRight aligns lines to the right edge.
	AlignRight
)

// Default style values.
const (
	// DefaultFontSize is the font size used when none is set.
	DefaultFontSize = 16

	// DefaultLineSpacing is the multiplier applied to the font's natural
	// line height between wrapped lines.
	DefaultLineSpacing = 1.0
)

// Style describes how text is rasterized into a texture.
//
// A Style starts unresolved: parsing the font data is deferred until the
// first renderable using the style is touched by the pipe (or Resolve is
// called explicitly). Styles may be shared across renderables; two
// renderables with equal text, resolution and style key share one texture.
//
// Style is safe for concurrent use. Mutation happens on the render thread
// while rasterization goroutines read it.
type Style struct {
	mu sync.Mutex

	fontData    []byte
	fontSize    float64
	fill        color.RGBA
	padding     float64
	wrapWidth   float64
	lineSpacing float64
	align       Alignment

	// source is the parsed font, nil until resolved.
	source *ggtext.FontSource

	// key caches the fingerprint fragment, invalidated by setters.
	key string
}

// NewStyle returns a style with defaults: built-in Go Regular font,
// DefaultFontSize, opaque black fill, no padding, no wrapping.
func NewStyle() *Style {
	return &Style{
		fontSize:    DefaultFontSize,
		fill:        color.RGBA{A: 255},
		lineSpacing: DefaultLineSpacing,
	}
}

// SetFontData sets the TTF/OTF font data. Pass nil to use the built-in
// Go Regular font. The previously resolved font is discarded.
func (s *Style) SetFontData(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fontData = data
	s.source = nil
	s.key = ""
}

// SetFontSize sets the font size in pixels.
func (s *Style) SetFontSize(size float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if size <= 0 {
		size = DefaultFontSize
	}
	s.fontSize = size
	s.key = ""
}

// FontSize returns the font size in pixels.
func (s *Style) FontSize() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fontSize
}

// SetFill sets the text fill color.
func (s *Style) SetFill(c color.Color) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fill = color.RGBAModel.Convert(c).(color.RGBA)
	s.key = ""
}

// Fill returns the text fill color.
func (s *Style) Fill() color.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fill
}

// SetPadding sets extra transparent pixels baked around the rasterized text.
// Padding keeps effects such as drop shadows from being clipped; geometry
// computed from the texture is shifted back by the same amount.
func (s *Style) SetPadding(p float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p < 0 {
		p = 0
	}
	s.padding = p
	s.key = ""
}

// Padding returns the padding in pixels.
func (s *Style) Padding() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.padding
}

// SetWrapWidth enables word wrapping at the given width in pixels.
// Zero disables wrapping.
func (s *Style) SetWrapWidth(w float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w < 0 {
		w = 0
	}
	s.wrapWidth = w
	s.key = ""
}

// WrapWidth returns the wrap width, zero when wrapping is disabled.
func (s *Style) WrapWidth() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wrapWidth
}

// SetLineSpacing sets the line height multiplier for wrapped text.
func (s *Style) SetLineSpacing(m float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m <= 0 {
		m = DefaultLineSpacing
	}
	s.lineSpacing = m
	s.key = ""
}

// LineSpacing returns the line height multiplier.
func (s *Style) LineSpacing() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lineSpacing
}

// SetAlign sets the alignment of wrapped lines.
func (s *Style) SetAlign(a Alignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.align = a
	s.key = ""
}

// Align returns the alignment of wrapped lines.
func (s *Style) Align() Alignment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.align
}

// Resolve forces the style into a resolved state by parsing the font data.
// It is called by the pipe on first touch of a renderable; styles without
// explicit font data resolve to the built-in Go Regular font.
// Resolve is idempotent.
func (s *Style) Resolve() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveLocked()
}

func (s *Style) resolveLocked() error {
	if s.source != nil {
		return nil
	}
	data := s.fontData
	if data == nil {
		data = goregular.TTF
	}
	source, err := ggtext.NewFontSource(data)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBadFontData, err)
	}
	s.source = source
	return nil
}

// Face resolves the style and returns a font face at the style's size.
// Faces are cheap per-call views onto the shared parsed font; callers must
// not share one face across goroutines.
func (s *Style) Face() (ggtext.Face, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.resolveLocked(); err != nil {
		return nil, err
	}
	return s.source.Face(s.fontSize), nil
}

// Key returns the style's stable fingerprint fragment. Styles with equal
// keys produce identical rasterizations for the same text and resolution.
func (s *Style) Key() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.key != "" {
		return s.key
	}

	h := fnv.New64a()
	_, _ = h.Write(s.fontDataLocked())

	var b strings.Builder
	b.WriteString("fs")
	b.WriteString(strconv.FormatFloat(s.fontSize, 'g', -1, 64))
	b.WriteString(":fd")
	b.WriteString(strconv.FormatUint(h.Sum64(), 16))
	b.WriteString(":c")
	b.WriteString(strconv.FormatUint(uint64(s.fill.R)<<24|uint64(s.fill.G)<<16|uint64(s.fill.B)<<8|uint64(s.fill.A), 16))
	b.WriteString(":p")
	b.WriteString(strconv.FormatFloat(s.padding, 'g', -1, 64))
	b.WriteString(":w")
	b.WriteString(strconv.FormatFloat(s.wrapWidth, 'g', -1, 64))
	b.WriteString(":ls")
	b.WriteString(strconv.FormatFloat(s.lineSpacing, 'g', -1, 64))
	b.WriteString(":a")
	b.WriteString(strconv.Itoa(int(s.align)))

	s.key = b.String()
	return s.key
}

// fontDataLocked returns the effective font data. Must be called with s.mu
// held.
func (s *Style) fontDataLocked() []byte {
	if s.fontData == nil {
		return goregular.TTF
	}
	return s.fontData
}
