// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package textpipe

import (
	"sync"
	"sync/atomic"
)

// View carries the text content and presentation state of a renderable.
// The pipe reads the view each frame to decide whether the renderable's
// texture is still valid.
//
// Mutating the view sets its change flag; the pipe consumes the flag during
// its synchronous update step. All View methods must be called from the
// render thread.
type View struct {
	text       string
	style      *Style
	anchorX    float64
	anchorY    float64
	resolution float64 // 0 means inherit the pipe's default

	// didChange is set by mutation and consumed by the pipe.
	didChange bool

	// onUpdate, when set, is invoked every time the view is marked changed.
	// Hosts use it to schedule a re-render of the owning scene.
	onUpdate func()
}

// NewView creates a view with the given content and style.
// A nil style is replaced with NewStyle(). The view starts marked as
// changed so the first frame generates a texture.
func NewView(text string, style *Style) *View {
	if style == nil {
		style = NewStyle()
	}
	return &View{
		text:      text,
		style:     style,
		didChange: true,
	}
}

// Text returns the text content.
func (v *View) Text() string { return v.text }

// SetText replaces the text content and marks the view changed.
func (v *View) SetText(text string) {
	if v.text == text {
		return
	}
	v.text = text
	v.MarkChanged()
}

// Style returns the view's style.
func (v *View) Style() *Style { return v.style }

// SetStyle replaces the view's style and marks the view changed.
// A nil style is replaced with NewStyle().
func (v *View) SetStyle(style *Style) {
	if style == nil {
		style = NewStyle()
	}
	v.style = style
	v.MarkChanged()
}

// Anchor returns the normalized anchor point, (0,0) top-left to (1,1)
// bottom-right.
func (v *View) Anchor() (ax, ay float64) { return v.anchorX, v.anchorY }

// SetAnchor sets the normalized anchor point. Anchor affects geometry only,
// not the rasterized texture, so it does not mark the view changed.
func (v *View) SetAnchor(ax, ay float64) {
	v.anchorX = ax
	v.anchorY = ay
}

// Resolution returns the per-view resolution override, zero when the view
// inherits the pipe's default resolution.
func (v *View) Resolution() float64 { return v.resolution }

// SetResolution sets the per-view resolution override and marks the view
// changed. Pass zero to inherit the pipe's default.
func (v *View) SetResolution(res float64) {
	if res < 0 {
		res = 0
	}
	v.resolution = res
	v.MarkChanged()
}

// MarkChanged flags the view as mutated and notifies the host through the
// OnUpdate callback. The pipe also calls this when a regenerated texture
// becomes ready, so the next validation pass picks it up.
func (v *View) MarkChanged() {
	v.didChange = true
	if v.onUpdate != nil {
		v.onUpdate()
	}
}

// DidChange reports whether the view has an unconsumed mutation.
func (v *View) DidChange() bool { return v.didChange }

// OnUpdate registers a callback invoked whenever the view is marked changed.
// Only one callback is kept; passing nil clears it.
func (v *View) OnUpdate(fn func()) { v.onUpdate = fn }

// clearChange consumes the mutation flag.
func (v *View) clearChange() { v.didChange = false }

// Renderable is a drawable scene entity with styled text content.
// It is owned by the host's render graph, not by the pipe; the pipe only
// attaches a destruction listener to it.
type Renderable interface {
	// UID returns the renderable's unique identity. It must be stable for
	// the renderable's lifetime and never reused while the renderable is
	// known to a pipe.
	UID() uint64

	// TextView returns the renderable's text view.
	TextView() *View

	// OnDestroy registers a listener fired at most once when the
	// renderable is destroyed.
	OnDestroy(fn func())
}

// nextUID issues process-wide unique renderable identities.
var nextUID atomic.Uint64

// Text is a minimal concrete Renderable for hosts without their own scene
// graph, and for tests. Destruction listeners fire at most once.
type Text struct {
	uid  uint64
	view *View

	mu        sync.Mutex
	listeners []func()
	destroyOnce sync.Once
}

// NewText creates a renderable text entity. A nil style uses NewStyle().
func NewText(content string, style *Style) *Text {
	return &Text{
		uid:  nextUID.Add(1),
		view: NewView(content, style),
	}
}

// UID returns the renderable's unique identity.
func (t *Text) UID() uint64 { return t.uid }

// TextView returns the renderable's text view.
func (t *Text) TextView() *View { return t.view }

// OnDestroy registers a destruction listener.
// Listeners registered after destruction are never fired.
func (t *Text) OnDestroy(fn func()) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	t.listeners = append(t.listeners, fn)
	t.mu.Unlock()
}

// Destroy fires the destruction listeners exactly once.
// Further calls are no-ops.
func (t *Text) Destroy() {
	t.destroyOnce.Do(func() {
		t.mu.Lock()
		listeners := t.listeners
		t.listeners = nil
		t.mu.Unlock()
		for _, fn := range listeners {
			fn()
		}
	})
}
