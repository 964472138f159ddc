// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package textpipe

import (
	"context"
	"errors"
	"sync"

	"github.com/gogpu/textpipe/pool"
	"github.com/gogpu/textpipe/texture"
)

// Pipe errors.
var (
	// ErrNilProvider is returned when constructing a pipe without a
	// texture provider.
	ErrNilProvider = errors.New("textpipe: nil texture provider")

	// ErrNilBatcher is returned when constructing a pipe without a
	// batcher.
	ErrNilBatcher = errors.New("textpipe: nil batcher")
)

// TextureRequest describes one texture for the provider to produce.
type TextureRequest struct {
	// Text is the content to rasterize.
	Text string

	// Resolution is the pixel density multiplier.
	Resolution float64

	// Style controls rasterization.
	Style *Style

	// Key is the content-addressed identity of the texture. The provider
	// reference-counts textures by this key.
	Key string
}

// TextureProvider produces shared, reference-counted text textures.
// The provider package implements it; hosts with their own texture manager
// can supply theirs.
type TextureProvider interface {
	// GetManagedTexture returns the texture for the request, producing it
	// if no cached one exists. Every successful call increments the
	// reference count of the request's key by exactly one.
	//
	// The call may block; the pipe invokes it from a regeneration
	// goroutine, never from the frame loop.
	GetManagedTexture(ctx context.Context, req TextureRequest) (*texture.Texture, error)

	// DecreaseReferenceCount releases one reference to a key. When the
	// count reaches zero the texture may be reclaimed. Keys the provider
	// never handed out must be ignored.
	DecreaseReferenceCount(key string)
}

// gpuTextRecord is the pipe's per-renderable state.
type gpuTextRecord struct {
	// texture is the currently displayed texture, borrowed from the
	// provider.
	texture *texture.Texture

	// currentKey is the key the displayed texture was generated for,
	// except during regeneration, when it optimistically holds the
	// requested key while the old texture is still displayed.
	currentKey string

	// heldKey is the key whose provider reference this record owns.
	// It equals currentKey outside the regeneration window and the
	// sentinel inside it, so teardown never releases a reference the
	// record does not hold.
	heldKey string

	// batchable is the pooled entry submitted to the batcher.
	batchable *BatchableText

	// textureNeedsUploading is set when a regenerated texture arrives and
	// cleared by the next Validate.
	textureNeedsUploading bool

	// generatingTexture is the single-flight gate: true while a
	// regeneration request is outstanding.
	generatingTexture bool

	// gen identifies this record instance. Regeneration completions carry
	// the gen they were started under and are dropped when it no longer
	// matches, which guards against writes into destroyed or recycled
	// records.
	gen uint64
}

// completion carries the outcome of one regeneration request back to the
// frame thread.
type completion struct {
	uid  uint64
	gen  uint64
	key  string
	tex  *texture.Texture
	err  error
}

// PipeOption configures a Pipe during creation.
type PipeOption func(*Pipe)

// WithResolution sets the default resolution (pixel density) for renderables
// without a per-view override. Values <= 0 are ignored.
func WithResolution(res float64) PipeOption {
	return func(p *Pipe) {
		if res > 0 {
			p.resolution = res
		}
	}
}

// WithWarmup pre-allocates count batch entries so first-touch initialization
// does not allocate on the frame path.
func WithWarmup(count int) PipeOption {
	return func(p *Pipe) {
		p.entries.Warmup(count)
	}
}

// Pipe owns the mapping from renderable identity to GPU text record. It
// decides each frame whether a renderable's texture is still valid,
// orchestrates asynchronous regeneration without blocking the frame, and
// feeds ready entries to the batcher.
//
// Validate, Add, Update, DestroyRenderable and Destroy must all be called
// from the render thread. Regeneration completions are queued internally and
// applied on that same thread at the start of the next frame operation, so
// no record state is ever mutated concurrently.
type Pipe struct {
	provider   TextureProvider
	batcher    Batcher
	resolution float64

	// records maps renderable uid to its record. nil after Destroy.
	records map[uint64]*gpuTextRecord

	// entries recycles BatchableText records.
	entries *pool.Pool[*BatchableText]

	// gens issues record instance identities.
	gens uint64

	// mu guards completions and closed; everything else is render-thread
	// only.
	mu          sync.Mutex
	completions []completion
	closed      bool
}

// NewPipe creates a pipe backed by the given provider and batcher.
func NewPipe(provider TextureProvider, batcher Batcher, opts ...PipeOption) (*Pipe, error) {
	if provider == nil {
		return nil, ErrNilProvider
	}
	if batcher == nil {
		return nil, ErrNilBatcher
	}

	p := &Pipe{
		provider:   provider,
		batcher:    batcher,
		resolution: 1,
		records:    make(map[uint64]*gpuTextRecord),
	}
	p.entries = pool.New(
		func() *BatchableText { return &BatchableText{Texture: texture.Empty()} },
		(*BatchableText).reset,
	)
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// MustNewPipe is like NewPipe but panics on error.
// Use only when the collaborators are known non-nil.
func MustNewPipe(provider TextureProvider, batcher Batcher, opts ...PipeOption) *Pipe {
	p, err := NewPipe(provider, batcher, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// Validate reports whether the renderable's batch entry must be refreshed
// this frame: either a completed regeneration has not been consumed yet, or
// the renderable's content/style no longer matches the displayed texture.
//
// Validate consumes the pending-upload flag but never mutates geometry; it
// is safe to call any number of times before Add or Update.
func (p *Pipe) Validate(r Renderable) bool {
	p.drainCompletions()

	rec := p.record(r)
	if rec == nil {
		return false
	}

	if rec.textureNeedsUploading {
		rec.textureNeedsUploading = false
		return true
	}

	v := r.TextView()
	return rec.currentKey != buildKey(v.Text(), p.resolutionFor(v), v.Style().Key())
}

// Add submits the renderable to the batcher as a newly-added element,
// running the synchronous update step first if the view has an unconsumed
// mutation. The record is created on first touch.
func (p *Pipe) Add(r Renderable) {
	p.drainCompletions()

	rec := p.record(r)
	if rec == nil {
		return
	}
	if r.TextView().DidChange() {
		p.updateText(r, rec)
	}
	p.batcher.AddToBatch(rec.batchable)
}

// Update is like Add but submits the entry as a modification of an
// already-batched element, triggering the batcher's in-place update path.
func (p *Pipe) Update(r Renderable) {
	p.drainCompletions()

	rec := p.record(r)
	if rec == nil {
		return
	}
	if r.TextView().DidChange() {
		p.updateText(r, rec)
	}
	p.batcher.UpdateElement(rec.batchable)
}

// DestroyRenderable releases the renderable's record: its texture reference
// is returned to the provider, its batch entry to the pool, and the mapping
// entry removed. Safe to call for unknown renderables and after the record
// has already been destroyed.
func (p *Pipe) DestroyRenderable(r Renderable) {
	rec, ok := p.records[r.UID()]
	if !ok {
		return
	}
	p.destroyRecord(r.UID(), rec)
}

// Destroy tears down the whole pipe: every live record is destroyed, then
// internal state is released. Pending regeneration completions are discarded
// with their texture references returned to the provider. Destroy tolerates
// zero live records and repeated calls.
func (p *Pipe) Destroy() {
	for uid, rec := range p.records {
		p.destroyRecord(uid, rec)
	}
	p.records = nil

	p.mu.Lock()
	p.closed = true
	pending := p.completions
	p.completions = nil
	p.mu.Unlock()

	// Balance the reference counts of completions that will never be
	// applied.
	for _, c := range pending {
		if c.err == nil {
			p.provider.DecreaseReferenceCount(c.key)
		}
	}
}

// record returns the renderable's record, creating it on first touch.
// Returns nil after the pipe has been destroyed.
func (p *Pipe) record(r Renderable) *gpuTextRecord {
	if p.records == nil {
		return nil
	}

	uid := r.UID()
	if rec, ok := p.records[uid]; ok {
		return rec
	}

	v := r.TextView()

	// Styles defer font parsing until first use; force it now so the
	// regeneration goroutine never pays for it.
	if err := v.Style().Resolve(); err != nil {
		Logger().Warn("style resolution failed", "uid", uid, "err", err)
	}

	entry := p.entries.Get()
	entry.Renderable = r
	entry.Texture = texture.Empty()
	entry.Bounds = Bounds{}

	p.gens++
	rec := &gpuTextRecord{
		texture:    texture.Empty(),
		currentKey: sentinelKey,
		heldKey:    sentinelKey,
		batchable:  entry,
		gen:        p.gens,
	}
	p.records[uid] = rec

	// The destruction signal fires at most once; destroyRecord tolerates
	// the record being gone already.
	r.OnDestroy(func() {
		p.DestroyRenderable(r)
	})

	Logger().Debug("text record created", "uid", uid)
	return rec
}

// updateText is the synchronous update step shared by Add and Update: key
// diff, async regeneration kickoff, and unconditional geometry refresh
// against whatever texture is currently displayed.
func (p *Pipe) updateText(r Renderable, rec *gpuTextRecord) {
	v := r.TextView()
	newKey := buildKey(v.Text(), p.resolutionFor(v), v.Style().Key())

	if rec.currentKey != newKey {
		p.regenerate(r, rec, newKey)
	}

	v.clearChange()
	p.updateBounds(rec, v)
}

// regenerate initiates asynchronous texture regeneration for the record.
// The frame does not wait: the provider call runs on its own goroutine and
// its outcome is applied by a later frame operation.
func (p *Pipe) regenerate(r Renderable, rec *gpuTextRecord, newKey string) {
	v := r.TextView()
	v.clearChange()

	// Single flight: the outstanding request will reconcile with the
	// latest key once a later validation pass re-detects the mismatch.
	if rec.generatingTexture {
		return
	}

	// Release the old texture's reference now, not when the new texture
	// arrives, so the provider can reclaim it as soon as no other
	// renderable displays it.
	if rec.heldKey != sentinelKey {
		p.provider.DecreaseReferenceCount(rec.heldKey)
		rec.heldKey = sentinelKey
	}

	rec.generatingTexture = true
	rec.currentKey = newKey

	req := TextureRequest{
		Text:       v.Text(),
		Resolution: p.resolutionFor(v),
		Style:      v.Style(),
		Key:        newKey,
	}
	uid := r.UID()
	gen := rec.gen

	go func() {
		tex, err := p.provider.GetManagedTexture(context.Background(), req)
		p.deliver(completion{uid: uid, gen: gen, key: req.Key, tex: tex, err: err})
	}()
}

// deliver queues a regeneration outcome for the frame thread. If the pipe
// was destroyed in the meantime, the texture reference is returned to the
// provider immediately.
func (p *Pipe) deliver(c completion) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		if c.err == nil {
			p.provider.DecreaseReferenceCount(c.key)
		}
		return
	}
	p.completions = append(p.completions, c)
	p.mu.Unlock()
}

// drainCompletions applies queued regeneration outcomes on the frame thread.
// Called at the start of every frame operation; never blocks.
func (p *Pipe) drainCompletions() {
	p.mu.Lock()
	if len(p.completions) == 0 {
		p.mu.Unlock()
		return
	}
	pending := p.completions
	p.completions = nil
	p.mu.Unlock()

	for _, c := range pending {
		p.finishRegeneration(c)
	}
}

// finishRegeneration applies one regeneration outcome. Completions for
// records that no longer exist (renderable destroyed while the request was
// in flight) are treated as benign no-ops, with the orphaned texture
// reference returned to the provider.
func (p *Pipe) finishRegeneration(c completion) {
	rec, ok := p.records[c.uid]
	if !ok || rec.gen != c.gen {
		if c.err == nil {
			p.provider.DecreaseReferenceCount(c.key)
		}
		return
	}

	rec.generatingTexture = false

	if c.err != nil {
		// Non-fatal: the record keeps displaying its last good texture.
		// A later content or style change naturally retries.
		Logger().Warn("text texture generation failed", "key", c.key, "err", c.err)
		return
	}

	rec.heldKey = c.key
	rec.texture = c.tex
	rec.batchable.Texture = c.tex
	rec.textureNeedsUploading = true

	v := rec.batchable.Renderable.TextView()
	p.updateBounds(rec, v)

	// Let the next validation pass pick the new texture up.
	v.MarkChanged()
}

// destroyRecord releases one record exactly once.
func (p *Pipe) destroyRecord(uid uint64, rec *gpuTextRecord) {
	if rec.heldKey != sentinelKey {
		p.provider.DecreaseReferenceCount(rec.heldKey)
		rec.heldKey = sentinelKey
	}
	rec.texture = nil
	p.entries.Put(rec.batchable)
	rec.batchable = nil
	delete(p.records, uid)
	Logger().Debug("text record destroyed", "uid", uid)
}

// updateBounds recomputes the batch entry's quad geometry from the texture
// it currently references.
func (p *Pipe) updateBounds(rec *gpuTextRecord, v *View) {
	ax, ay := v.Anchor()
	rec.batchable.Bounds = TextBounds(
		rec.batchable.Texture,
		p.resolutionFor(v),
		ax, ay,
		v.Style().Padding(),
	)
}

// resolutionFor returns the view's resolution override or the pipe default.
func (p *Pipe) resolutionFor(v *View) float64 {
	if res := v.Resolution(); res > 0 {
		return res
	}
	return p.resolution
}
