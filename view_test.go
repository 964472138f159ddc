// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package textpipe

import "testing"

func TestViewStartsChanged(t *testing.T) {
	v := NewView("hi", nil)
	if !v.DidChange() {
		t.Error("expected a fresh view to be marked changed")
	}
	if v.Style() == nil {
		t.Error("expected nil style to be replaced with a default")
	}
}

func TestViewChangeTracking(t *testing.T) {
	v := NewView("hi", nil)
	v.clearChange()

	v.SetText("hi") // same content, no change
	if v.DidChange() {
		t.Error("expected setting equal text to be a no-op")
	}

	v.SetText("bye")
	if !v.DidChange() {
		t.Error("expected SetText to mark the view changed")
	}
	v.clearChange()

	v.SetStyle(NewStyle())
	if !v.DidChange() {
		t.Error("expected SetStyle to mark the view changed")
	}
	v.clearChange()

	v.SetResolution(2)
	if !v.DidChange() {
		t.Error("expected SetResolution to mark the view changed")
	}
}

func TestViewAnchorDoesNotInvalidate(t *testing.T) {
	v := NewView("hi", nil)
	v.clearChange()

	v.SetAnchor(0.5, 1)
	if v.DidChange() {
		t.Error("anchor affects geometry only and must not mark the view changed")
	}
	ax, ay := v.Anchor()
	if ax != 0.5 || ay != 1 {
		t.Errorf("Anchor = (%v, %v), want (0.5, 1)", ax, ay)
	}
}

func TestViewOnUpdate(t *testing.T) {
	v := NewView("hi", nil)
	calls := 0
	v.OnUpdate(func() { calls++ })

	v.SetText("a")
	v.MarkChanged()
	if calls != 2 {
		t.Errorf("onUpdate fired %d times, want 2", calls)
	}

	v.OnUpdate(nil)
	v.SetText("b")
	if calls != 2 {
		t.Errorf("onUpdate fired after being cleared, calls = %d", calls)
	}
}

func TestTextUIDsUnique(t *testing.T) {
	a := NewText("a", nil)
	b := NewText("b", nil)
	if a.UID() == b.UID() {
		t.Error("expected distinct UIDs")
	}
	if a.UID() == 0 {
		t.Error("expected non-zero UID")
	}
}

func TestTextDestroyFiresOnce(t *testing.T) {
	txt := NewText("a", nil)
	calls := 0
	txt.OnDestroy(func() { calls++ })
	txt.OnDestroy(nil) // ignored

	txt.Destroy()
	txt.Destroy()
	if calls != 1 {
		t.Errorf("destroy listener fired %d times, want 1", calls)
	}

	// Listeners registered after destruction never fire.
	txt.OnDestroy(func() { calls++ })
	txt.Destroy()
	if calls != 1 {
		t.Errorf("late listener fired, calls = %d", calls)
	}
}
