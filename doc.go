// Package textpipe manages the lifecycle of GPU-backed text textures inside
// a batched 2D rendering pipeline.
//
// # Overview
//
// Rasterizing styled text is slow and happens outside the frame loop, while
// draw submission is synchronous and runs every frame. textpipe sits between
// the two: it keeps one record per visible text renderable, decides from a
// content+style+resolution fingerprint whether the cached texture is still
// valid, kicks off asynchronous regeneration when it is not, and hands ready
// textures to a sprite batcher, without ever blocking a frame, leaking a
// texture reference, or showing mismatched geometry.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/textpipe"
//	    "github.com/gogpu/textpipe/batch"
//	    "github.com/gogpu/textpipe/provider"
//	)
//
//	man := provider.NewManager(provider.DefaultConfig())
//	b := batch.New()
//	pipe := textpipe.MustNewPipe(man, b)
//
//	label := textpipe.NewText("hello", nil)
//
//	// Per frame, from the render-instruction pass:
//	if pipe.Validate(label) {
//	    pipe.Add(label) // or pipe.Update for already-batched entries
//	}
//
//	// When the scene entity goes away:
//	label.Destroy()
//
// # Architecture
//
// The module is organized into:
//   - textpipe: the per-renderable record cache and regeneration pipeline
//   - provider: content-addressed, reference-counted texture production
//   - batch: a quad batcher consuming the pipe's entries
//   - texture: the CPU/GPU texture pair handed between the layers
//   - pool: the generic object pool recycling batch entries
//
// # Concurrency
//
// The frame operations (Validate, Add, Update, DestroyRenderable, Destroy)
// are single-threaded: call them from the render thread. Texture
// regeneration is the only asynchronous step; its completion is queued and
// applied on the render thread at the start of the next frame operation, so
// record state never needs a lock.
//
// # Failure
//
// A failed regeneration is logged and swallowed: the renderable keeps its
// last good texture and a later content or style change retries naturally.
// Nothing on the frame path returns an error.
package textpipe
