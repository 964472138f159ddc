// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package textpipe

import (
	"strconv"
	"strings"
)

// sentinelKey is the key assigned to freshly created records. It never
// matches a built key (built keys always contain NUL separators), which
// forces first-time texture generation.
const sentinelKey = "--"

// buildKey collapses text content, resolution and style fingerprint into the
// stable identity of the required texture. Equal keys imply interchangeable
// textures.
func buildKey(text string, resolution float64, styleKey string) string {
	var b strings.Builder
	b.Grow(len(text) + len(styleKey) + 16)
	b.WriteString(text)
	b.WriteByte(0)
	b.WriteString(strconv.FormatFloat(resolution, 'g', -1, 64))
	b.WriteByte(0)
	b.WriteString(styleKey)
	return b.String()
}
