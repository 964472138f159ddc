package textpipe

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gogpu/textpipe/texture"
)

// fakeProvider is an in-memory TextureProvider that tracks reference counts
// and every request it receives.
type fakeProvider struct {
	mu    sync.Mutex
	calls []TextureRequest
	refs  map[string]int
	texs  map[string]*texture.Texture
	fail  map[string]bool

	// negative is set if any key's reference count ever dropped below
	// zero, which would mean an over-release.
	negative bool

	// gate, when non-nil, blocks every GetManagedTexture call until a
	// value is sent on it.
	gate chan struct{}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		refs: make(map[string]int),
		texs: make(map[string]*texture.Texture),
		fail: make(map[string]bool),
	}
}

func (f *fakeProvider) GetManagedTexture(_ context.Context, req TextureRequest) (*texture.Texture, error) {
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, req)
	if f.fail[req.Key] {
		return nil, errors.New("rasterization failed")
	}

	tex, ok := f.texs[req.Key]
	if !ok {
		tex = texture.New(texture.DefaultDescriptor(100, 50), nil)
		f.texs[req.Key] = tex
	}
	f.refs[req.Key]++
	return tex, nil
}

func (f *fakeProvider) DecreaseReferenceCount(key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refs[key]--
	if f.refs[key] < 0 {
		f.negative = true
	}
	if f.refs[key] <= 0 {
		delete(f.refs, key)
	}
}

func (f *fakeProvider) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeProvider) callKey(i int) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i].Key
}

func (f *fakeProvider) refCount(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refs[key]
}

func (f *fakeProvider) liveKeys() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.refs)
}

// fakeBatcher records batch submissions.
type fakeBatcher struct {
	adds    []*BatchableText
	updates []*BatchableText
}

func (b *fakeBatcher) AddToBatch(e *BatchableText)   { b.adds = append(b.adds, e) }
func (b *fakeBatcher) UpdateElement(e *BatchableText) { b.updates = append(b.updates, e) }

// waitCompletions blocks until the pipe has at least n queued regeneration
// outcomes, then returns so the test can drain them with a frame operation.
func waitCompletions(t *testing.T, p *Pipe, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p.mu.Lock()
		got := len(p.completions)
		p.mu.Unlock()
		if got >= n {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("timed out waiting for regeneration completion")
}

func waitCompletion(t *testing.T, p *Pipe) {
	t.Helper()
	waitCompletions(t, p, 1)
}

func newTestPipe(t *testing.T) (*Pipe, *fakeProvider, *fakeBatcher) {
	t.Helper()
	prov := newFakeProvider()
	b := &fakeBatcher{}
	p, err := NewPipe(prov, b)
	if err != nil {
		t.Fatalf("NewPipe() = %v", err)
	}
	return p, prov, b
}

func TestNewPipeNilCollaborators(t *testing.T) {
	if _, err := NewPipe(nil, &fakeBatcher{}); !errors.Is(err, ErrNilProvider) {
		t.Errorf("expected ErrNilProvider, got %v", err)
	}
	if _, err := NewPipe(newFakeProvider(), nil); !errors.Is(err, ErrNilBatcher) {
		t.Errorf("expected ErrNilBatcher, got %v", err)
	}
}

func TestAddGeneratesTexture(t *testing.T) {
	p, prov, b := newTestPipe(t)
	r := NewText("A", nil)

	// First touch: the sentinel key never matches a real key.
	if !p.Validate(r) {
		t.Error("expected Validate to report a refresh for a fresh renderable")
	}

	p.Add(r)

	if len(b.adds) != 1 {
		t.Fatalf("expected 1 batch add, got %d", len(b.adds))
	}
	entry := b.adds[0]

	// The frame does not wait for regeneration: the entry still shows the
	// placeholder with zero-area bounds.
	if entry.Texture != texture.Empty() {
		t.Error("expected placeholder texture while regeneration is in flight")
	}
	if entry.Bounds.Width() != 0 || entry.Bounds.Height() != 0 {
		t.Errorf("expected zero-area bounds, got %vx%v", entry.Bounds.Width(), entry.Bounds.Height())
	}

	waitCompletion(t, p)

	if prov.callCount() != 1 {
		t.Fatalf("expected 1 provider request, got %d", prov.callCount())
	}

	// Next frame: validate consumes the pending-upload flag exactly once.
	if !p.Validate(r) {
		t.Error("expected Validate to report the completed regeneration")
	}
	if p.Validate(r) {
		t.Error("expected second Validate to return false")
	}

	p.Update(r)
	if len(b.updates) != 1 {
		t.Fatalf("expected 1 batch update, got %d", len(b.updates))
	}
	if entry.Texture == texture.Empty() {
		t.Error("expected the regenerated texture after update")
	}
	if entry.Bounds.Width() != 100 || entry.Bounds.Height() != 50 {
		t.Errorf("expected 100x50 bounds, got %vx%v", entry.Bounds.Width(), entry.Bounds.Height())
	}
}

func TestValidateReflectsKeyMismatch(t *testing.T) {
	p, _, _ := newTestPipe(t)
	r := NewText("A", nil)

	p.Add(r)
	waitCompletion(t, p)
	p.Validate(r) // consume the upload flag
	p.Update(r)

	if p.Validate(r) {
		t.Error("expected stable renderable to need no refresh")
	}

	r.TextView().SetText("B")
	if !p.Validate(r) {
		t.Error("expected Validate to detect the key mismatch")
	}
}

func TestSingleFlight(t *testing.T) {
	p, prov, _ := newTestPipe(t)
	prov.gate = make(chan struct{})
	r := NewText("A", nil)

	p.Add(r) // regeneration for key(A) now in flight

	// A second change while the request is outstanding must not spawn a
	// second request.
	r.TextView().SetText("B")
	p.Update(r)
	if got := prov.callCount(); got != 0 {
		// The first call is still blocked on the gate; no call has
		// finished, and none beyond the first was started.
		t.Fatalf("expected no completed provider calls yet, got %d", got)
	}

	prov.gate <- struct{}{} // release the in-flight request
	waitCompletion(t, p)

	if prov.callCount() != 1 {
		t.Fatalf("expected exactly 1 request while in flight, got %d", prov.callCount())
	}

	// The next frame re-detects the mismatch against the optimistic key
	// and issues the follow-up regeneration for key(B).
	if !p.Validate(r) {
		t.Fatal("expected Validate to report a refresh after completion")
	}
	p.Update(r)

	prov.gate <- struct{}{}
	waitCompletion(t, p)
	p.Validate(r)

	if prov.callCount() != 2 {
		t.Fatalf("expected follow-up request for the new key, got %d calls", prov.callCount())
	}
	if key := prov.callKey(1); !strings.HasPrefix(key, "B\x00") {
		t.Errorf("expected follow-up request for key(B), got %q", key)
	}
	if prov.negative {
		t.Error("reference count went negative")
	}
}

func TestTwoChangesOneFrame(t *testing.T) {
	p, prov, _ := newTestPipe(t)
	r := NewText("A", nil)

	// Both mutations land before the frame's update step runs: the single
	// regeneration targets the key of the second change.
	r.TextView().SetText("B")
	r.TextView().SetText("C")
	p.Add(r)
	waitCompletion(t, p)

	if prov.callCount() != 1 {
		t.Fatalf("expected 1 request, got %d", prov.callCount())
	}
	if key := prov.callKey(0); !strings.HasPrefix(key, "C\x00") {
		t.Errorf("expected request for the final text, got key %q", key)
	}
}

func TestReferenceCountsBalance(t *testing.T) {
	p, prov, _ := newTestPipe(t)
	r := NewText("A", nil)

	p.Add(r)
	waitCompletion(t, p)
	p.Validate(r)
	p.Update(r)

	// Change the key a few times, completing each regeneration.
	for _, text := range []string{"B", "C", "D"} {
		r.TextView().SetText(text)
		p.Update(r)
		waitCompletion(t, p)
		p.Validate(r)
		p.Update(r)
	}

	// Only the newest key holds a reference.
	if got := prov.liveKeys(); got != 1 {
		t.Errorf("expected 1 live key, got %d", got)
	}

	p.DestroyRenderable(r)

	if got := prov.liveKeys(); got != 0 {
		t.Errorf("expected all references released after destroy, got %d live keys", got)
	}
	if prov.negative {
		t.Error("reference count went negative")
	}
}

func TestSharedTextureSurvivesPeerDestroy(t *testing.T) {
	p, prov, _ := newTestPipe(t)
	style := NewStyle()
	a := NewText("shared", style)
	b := NewText("shared", style)

	p.Add(a)
	p.Add(b)
	waitCompletions(t, p, 2)
	p.Validate(a)
	p.Validate(b)

	key := prov.callKey(0)
	if got := prov.refCount(key); got != 2 {
		t.Fatalf("expected 2 references to the shared key, got %d", got)
	}

	a.Destroy()

	if got := prov.refCount(key); got != 1 {
		t.Errorf("expected the peer's reference to survive, got %d", got)
	}
	if prov.negative {
		t.Error("reference count went negative")
	}
}

func TestDestroyRenderableReleasesOnce(t *testing.T) {
	p, prov, _ := newTestPipe(t)
	r := NewText("A", nil)

	p.Add(r)
	waitCompletion(t, p)
	p.Validate(r)

	// The destruction listener fires once; direct and duplicate calls
	// must not double-release.
	r.Destroy()
	r.Destroy()
	p.DestroyRenderable(r)

	if got := prov.liveKeys(); got != 0 {
		t.Errorf("expected zero live keys, got %d", got)
	}
	if prov.negative {
		t.Error("reference count went negative (double release)")
	}
}

func TestDestroyMidFlight(t *testing.T) {
	p, prov, _ := newTestPipe(t)
	prov.gate = make(chan struct{})
	r := NewText("A", nil)

	p.Add(r)
	r.Destroy() // record gone while the request is outstanding

	prov.gate <- struct{}{}
	waitCompletion(t, p)

	// Pump a frame operation so the stale completion is applied; it must
	// be a benign no-op that returns the orphaned reference. Validate never
	// regenerates, so the gate stays untouched.
	other := NewText("other", nil)
	p.Validate(other)

	if got := prov.refCount(prov.callKey(0)); got != 0 {
		t.Errorf("expected orphaned reference to be released, got %d", got)
	}
	if prov.negative {
		t.Error("reference count went negative")
	}
}

func TestFailedRegeneration(t *testing.T) {
	p, prov, b := newTestPipe(t)
	r := NewText("A", nil)
	prov.fail[buildKey("A", 1, r.TextView().Style().Key())] = true

	p.Add(r)
	waitCompletion(t, p)

	// Applying the failure must not disturb the record: it keeps the
	// placeholder and is not retried automatically.
	if p.Validate(r) {
		// Key still mismatches the optimistic key? It must not: the
		// optimistic key was kept, so validation stays quiet.
		t.Error("expected no refresh signal after a failed regeneration")
	}
	entry := b.adds[0]
	if entry.Texture != texture.Empty() {
		t.Error("expected record to keep its placeholder after failure")
	}
	if prov.callCount() != 1 {
		t.Errorf("expected no automatic retry, got %d calls", prov.callCount())
	}

	// A subsequent content change naturally retries.
	r.TextView().SetText("B")
	p.Update(r)
	waitCompletion(t, p)
	p.Validate(r)

	if prov.callCount() != 2 {
		t.Errorf("expected retry via new key, got %d calls", prov.callCount())
	}
	if entry.Texture == texture.Empty() {
		t.Error("expected the retried texture to be installed")
	}
	if prov.negative {
		t.Error("reference count went negative")
	}
}

func TestBoundsFollowAnchorAndPadding(t *testing.T) {
	p, prov, b := newTestPipe(t)
	style := NewStyle()
	style.SetPadding(2)
	r := NewText("A", style)
	r.TextView().SetAnchor(0.5, 0.5)

	p.Add(r)
	waitCompletion(t, p)
	p.Validate(r)
	p.Update(r)

	if prov.callCount() != 1 {
		t.Fatalf("expected 1 request, got %d", prov.callCount())
	}

	entry := b.adds[0]
	// Texture is 100x50 at resolution 1; anchored at the center and
	// shifted back by the padding.
	want := Bounds{MinX: -52, MinY: -27, MaxX: 48, MaxY: 23}
	if entry.Bounds != want {
		t.Errorf("bounds = %+v, want %+v", entry.Bounds, want)
	}
}

func TestPipeDestroy(t *testing.T) {
	p, prov, _ := newTestPipe(t)
	a := NewText("A", nil)
	b := NewText("B", nil)

	p.Add(a)
	p.Add(b)
	waitCompletions(t, p, 2)
	p.Validate(a)
	p.Validate(b)

	p.Destroy()

	if got := prov.liveKeys(); got != 0 {
		t.Errorf("expected all references released on teardown, got %d live keys", got)
	}

	// Repeated teardown and late frame operations must be harmless.
	p.Destroy()
	if p.Validate(a) {
		t.Error("expected Validate on a destroyed pipe to return false")
	}
	p.Add(a)
	p.Update(a)
	if prov.negative {
		t.Error("reference count went negative")
	}
}

func TestPipeDestroyEmpty(t *testing.T) {
	p, _, _ := newTestPipe(t)
	p.Destroy() // must tolerate zero live records
	p.Destroy()
}

func TestPipeDestroyWithPendingCompletion(t *testing.T) {
	p, prov, _ := newTestPipe(t)
	prov.gate = make(chan struct{})
	r := NewText("A", nil)

	p.Add(r)
	prov.gate <- struct{}{}
	waitCompletion(t, p)

	// Destroy before any frame operation drains the completion: the
	// queued texture reference must still be returned.
	p.Destroy()

	if got := prov.liveKeys(); got != 0 {
		t.Errorf("expected pending completion's reference released, got %d live keys", got)
	}
	if prov.negative {
		t.Error("reference count went negative")
	}
}

func TestDestroyedRenderableNotRecreatedByListener(t *testing.T) {
	p, _, _ := newTestPipe(t)
	r := NewText("A", nil)

	p.Add(r)
	p.DestroyRenderable(r)

	if _, ok := p.records[r.UID()]; ok {
		t.Error("expected record to be removed")
	}

	// The renderable's own destroy signal now fires against a record that
	// is already gone.
	r.Destroy()
}
