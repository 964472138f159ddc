// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package provider

import (
	"fmt"
	"math"
	"strings"

	"github.com/gogpu/gg"

	"github.com/gogpu/textpipe"
	"github.com/gogpu/textpipe/texture"
)

// labelRunes caps the debug label derived from the text content.
const labelRunes = 24

// rasterize turns one request into a CPU-side texture, uploading it to the
// GPU when a creator is configured. Runs without the manager lock held; the
// font face is created per call because faces are not safe for concurrent
// use, while the parsed font source behind them is shared.
func (m *Manager) rasterize(req textpipe.TextureRequest) (*texture.Texture, error) {
	st := req.Style
	if st == nil {
		st = textpipe.NewStyle()
	}

	face, err := st.Face()
	if err != nil {
		return nil, fmt.Errorf("provider: resolve style: %w", err)
	}

	res := req.Resolution
	if res <= 0 {
		res = 1
	}
	pad := st.Padding()

	// Layout pass: wrap and measure with a throwaway 1x1 context.
	mc := gg.NewContext(1, 1)
	mc.SetFont(face)

	var lines []string
	if w := st.WrapWidth(); w > 0 {
		lines = mc.WordWrap(req.Text, w)
	} else {
		lines = strings.Split(req.Text, "\n")
	}
	if len(lines) == 0 {
		lines = []string{""}
	}

	metrics := face.Metrics()
	lineHeight := metrics.LineHeight() * st.LineSpacing()

	widths := make([]float64, len(lines))
	contentW := 0.0
	for i, ln := range lines {
		w, _ := mc.MeasureString(ln)
		widths[i] = w
		if w > contentW {
			contentW = w
		}
	}
	contentH := float64(len(lines)-1)*lineHeight + metrics.Ascent + metrics.Descent

	texW := int(math.Ceil((contentW + 2*pad) * res))
	texH := int(math.Ceil((contentH + 2*pad) * res))
	if texW < 1 {
		texW = 1
	}
	if texH < 1 {
		texH = 1
	}

	// Draw pass at the requested pixel density.
	dc := gg.NewContext(texW, texH)
	dc.Scale(res, res)
	dc.SetFont(face)
	dc.SetColor(st.Fill())

	align := st.Align()
	y := pad + metrics.Ascent
	for i, ln := range lines {
		x := pad
		switch align {
		case textpipe.AlignCenter:
			x += (contentW - widths[i]) / 2
		case textpipe.AlignRight:
			x += contentW - widths[i]
		}
		dc.DrawString(ln, x, y)
		y += lineHeight
	}

	tex := texture.FromPixmap(dc.ResizeTarget(), textLabel(req.Text))

	if m.creator != nil {
		// A failed upload degrades to a CPU-side texture; the pipeline
		// keeps working and the host can retry the upload later.
		if err := tex.UploadTo(m.creator); err != nil {
			textpipe.Logger().Warn("texture upload failed", "key", req.Key, "err", err)
		}
	}

	return tex, nil
}

// textLabel derives a short debug label from the text content.
func textLabel(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		text = text[:i]
	}
	runes := []rune(text)
	if len(runes) > labelRunes {
		return string(runes[:labelRunes]) + "…"
	}
	return text
}
