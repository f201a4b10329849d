package tree

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/usbtree/snapshot"
)

var usbGUID = uuid.MustParse("36fc9e60-c465-11cf-8056-444553540000")

// rec builds a resolvable record with a fixed vendor and product.
func rec(h int, id string, kids ...*snapshot.Record) *snapshot.Record {
	r := snapshot.NewRecord(snapshot.Handle(h), id)
	r.VendorID, r.ProductID = 0x1234, 0x5678
	return r.AddChild(kids...)
}

func ifaceRec(h int, id string, mi int) *snapshot.Record {
	r := rec(h, id)
	r.IsInterface = true
	r.InterfaceNumber = mi
	return r
}

// ids returns the instance ids of ds.
func ids(ds []*Device) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, d.InstanceID())
	}
	return out
}

// find returns the listed device with the given instance id.
func find(tr *Tree, id string) *Device {
	for _, d := range tr.List().Items() {
		if d.InstanceID() == id {
			return d
		}
	}
	return nil
}

// =============================================================================
// Fake Source
// =============================================================================

type nodeProps struct {
	description string
	hardwareIDs []string
}

// fakeSource serves snapshots built by a replaceable function, so every
// Enumerate returns fresh records.
type fakeSource struct {
	mu         sync.Mutex
	build      func() *snapshot.Tree
	props      map[snapshot.Handle]nodeProps
	enumErr    error
	resolveErr error
	onResolve  func()
	enumerates int
	resolves   int
}

func newFakeSource(build func() *snapshot.Tree) *fakeSource {
	return &fakeSource{build: build, props: make(map[snapshot.Handle]nodeProps)}
}

func (f *fakeSource) set(build func() *snapshot.Tree) {
	f.mu.Lock()
	f.build = build
	f.mu.Unlock()
}

func (f *fakeSource) setProps(h int, p nodeProps) {
	f.mu.Lock()
	f.props[snapshot.Handle(h)] = p
	f.mu.Unlock()
}

func (f *fakeSource) counts() (enumerates, resolves int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.enumerates, f.resolves
}

func (f *fakeSource) Enumerate(context.Context) (*snapshot.Tree, error) {
	f.mu.Lock()
	f.enumerates++
	build, err := f.build, f.enumErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return build(), nil
}

func (f *fakeSource) ResolveDetails(ctx context.Context, t *snapshot.Tree) error {
	f.mu.Lock()
	f.resolves++
	hook, err := f.onResolve, f.resolveErr
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	if err != nil {
		return err
	}
	return snapshot.Resolve(ctx, t, f)
}

func (f *fakeSource) QueryString(h snapshot.Handle, key snapshot.PropertyKey) (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch key {
	case snapshot.PropDescription:
		p, ok := f.props[h]
		if !ok || p.description == "" {
			return "", false
		}
		return p.description, true
	case snapshot.PropClass:
		return "USB", true
	}
	return "", false
}

func (f *fakeSource) QueryStrings(h snapshot.Handle, key snapshot.PropertyKey) ([]string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if key != snapshot.PropHardwareIDs {
		return nil, false
	}
	p, ok := f.props[h]
	if !ok || p.hardwareIDs == nil {
		return nil, false
	}
	return p.hardwareIDs, true
}

func (f *fakeSource) QueryGUID(snapshot.Handle, snapshot.PropertyKey) (uuid.UUID, bool) {
	return usbGUID, true
}

// =============================================================================
// Fake Clock
// =============================================================================

type fakeTicker struct {
	ch     chan time.Time
	mu     sync.Mutex
	stops  int
	resets int
}

func (t *fakeTicker) Chan() <-chan time.Time { return t.ch }

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	t.stops++
	t.mu.Unlock()
}

func (t *fakeTicker) Reset(time.Duration) {
	t.mu.Lock()
	t.resets++
	t.mu.Unlock()
}

func (t *fakeTicker) calls() (stops, resets int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stops, t.resets
}

// fakeClock hands out a single ticker driven by the test through an
// unbuffered channel: a send returns once the poll loop received the tick.
type fakeClock struct {
	ticker *fakeTicker
}

func newFakeClock() *fakeClock {
	return &fakeClock{ticker: &fakeTicker{ch: make(chan time.Time)}}
}

func (c *fakeClock) Now() time.Time { return time.Now() }

func (c *fakeClock) Ticker(time.Duration) Ticker { return c.ticker }

// newTestTree starts a tree on a fake clock. Cycles are driven with poll.
func newTestTree(t *testing.T, src snapshot.Source, opts ...Option) (*Tree, *fakeClock) {
	t.Helper()
	clk := newFakeClock()
	tr, err := New(context.Background(), src, append([]Option{WithClock(clk)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = tr.Close()
		<-tr.Done()
	})
	return tr, clk
}

// poll runs one cycle on the calling goroutine.
func poll(tr *Tree) { tr.tick() }
