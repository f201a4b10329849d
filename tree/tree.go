package tree

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ardnew/usbtree/pkg"
	"github.com/ardnew/usbtree/snapshot"
)

// Tree keeps a live Device hierarchy in sync with a snapshot.Source.
//
// A background loop polls the source on a fixed interval. Each cycle
// enumerates a fresh snapshot and compares it with the previous one; only
// when they differ are details resolved, the live tree reconciled and the
// flat list refreshed. At most one cycle runs at a time: the ticker is
// stopped for the duration of a cycle and ticks that still arrive are
// dropped.
type Tree struct {
	src     snapshot.Source
	opts    options
	log     *slog.Logger
	matcher *Matcher
	root    *Device
	list    *List

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	busy     atomic.Bool
	timerMu  sync.Mutex
	ticker   Ticker
	started  bool
	closed   bool
	baseline *snapshot.Tree

	cycles     atomic.Uint64
	skipped    atomic.Uint64
	suppressed atomic.Uint64
	errors     atomic.Uint64
	lastDur    atomic.Int64
}

// Stats summarizes the poller's activity.
type Stats struct {
	Cycles       uint64        // cycles started
	Skipped      uint64        // cycles that found an unchanged snapshot
	Suppressed   uint64        // ticks dropped because a cycle was running
	Errors       uint64        // cycles aborted by a source error
	LastDuration time.Duration // duration of the most recent cycle
}

// New creates a Tree polling src and runs the first cycle before returning,
// so Root and List reflect the current topology. The tree stops when ctx is
// cancelled or Close is called.
func New(ctx context.Context, src snapshot.Source, opts ...Option) (*Tree, error) {
	if ctx == nil {
		return nil, fmt.Errorf("new tree: nil context: %w", pkg.ErrInvalidParameter)
	}
	if src == nil {
		return nil, fmt.Errorf("new tree: nil source: %w", pkg.ErrInvalidParameter)
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.interval <= 0 {
		return nil, fmt.Errorf("new tree: interval %v: %w", o.interval, pkg.ErrInvalidParameter)
	}

	log := o.logger
	if log == nil {
		log = pkg.Logger(pkg.ComponentPoller)
	} else {
		log = log.With("component", string(pkg.ComponentPoller))
	}

	t := &Tree{
		src:     src,
		opts:    o,
		log:     log,
		matcher: NewMatcher(o.factory, src),
		root:    NewDevice(),
		list:    &List{},
		done:    make(chan struct{}),
	}
	if o.logger != nil {
		t.matcher.setLogger(o.logger)
	}
	t.ctx, t.cancel = context.WithCancel(ctx)

	t.busy.Store(true)
	t.checkForChanges()
	t.busy.Store(false)

	if !o.deferStart {
		t.Start()
	}
	return t, nil
}

// Start begins polling. New calls it unless WithDeferredStart was given.
// Start does nothing once polling runs or the tree is closed.
func (t *Tree) Start() {
	t.timerMu.Lock()
	defer t.timerMu.Unlock()
	if t.started || t.closed {
		return
	}
	t.started = true
	t.ticker = t.opts.clock.Ticker(t.opts.interval)
	go t.loop()
}

// Root returns the placeholder device owning the top-level devices.
func (t *Tree) Root() *Device { return t.root }

// List returns the flattened device list.
func (t *Tree) List() *List { return t.list }

// Close stops polling. A cycle that is already running completes. Close
// is idempotent and never blocks; use Done to wait for the loop to exit.
func (t *Tree) Close() error {
	t.cancel()

	t.timerMu.Lock()
	defer t.timerMu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	if t.started {
		t.ticker.Stop()
	} else {
		close(t.done)
	}
	t.log.Debug("tree closed")
	return nil
}

// Done is closed once the poll loop has exited.
func (t *Tree) Done() <-chan struct{} { return t.done }

// Stats returns a snapshot of the poller counters.
func (t *Tree) Stats() Stats {
	return Stats{
		Cycles:       t.cycles.Load(),
		Skipped:      t.skipped.Load(),
		Suppressed:   t.suppressed.Load(),
		Errors:       t.errors.Load(),
		LastDuration: time.Duration(t.lastDur.Load()),
	}
}

// =============================================================================
// Poll Loop
// =============================================================================

func (t *Tree) loop() {
	defer close(t.done)

	trigger := t.opts.trigger
	for {
		select {
		case <-t.ctx.Done():
			_ = t.Close()
			return
		case <-t.ticker.Chan():
			t.tick()
		case _, ok := <-trigger:
			if !ok {
				trigger = nil
				continue
			}
			t.tick()
		}
	}
}

// tick starts a cycle unless one is already running.
func (t *Tree) tick() {
	if !t.busy.CompareAndSwap(false, true) {
		t.suppressed.Add(1)
		return
	}

	t.timerMu.Lock()
	if !t.closed && t.ticker != nil {
		t.ticker.Stop()
	}
	t.timerMu.Unlock()

	t.opts.dispatcher(func() {
		defer t.endCycle()
		t.checkForChanges()
	})
}

func (t *Tree) endCycle() {
	t.timerMu.Lock()
	if !t.closed && t.ticker != nil {
		t.ticker.Reset(t.opts.interval)
	}
	t.timerMu.Unlock()
	t.busy.Store(false)
}

// checkForChanges runs one snapshot, compare, reconcile and publish cycle.
func (t *Tree) checkForChanges() {
	start := t.opts.clock.Now()
	t.cycles.Add(1)
	defer func() {
		t.lastDur.Store(int64(t.opts.clock.Now().Sub(start)))
	}()

	// An in-flight cycle is never cancelled halfway.
	ctx := context.WithoutCancel(t.ctx)

	next, err := t.src.Enumerate(ctx)
	if err == nil && next == nil {
		err = pkg.ErrNoSource
	}
	if err != nil {
		t.errors.Add(1)
		t.log.Warn("enumerate failed", "error", err)
		return
	}

	if next.Equal(t.baseline) {
		t.skipped.Add(1)
		t.baseline = next
		return
	}

	if err := t.src.ResolveDetails(ctx, next); err != nil {
		t.errors.Add(1)
		t.log.Warn("resolve details failed", "error", err)
		return
	}

	c := t.matcher.newCycle()
	t.root.update(next.Root, c)
	c.finish()

	added, removed := t.list.refresh(t.root)
	t.baseline = next

	t.log.Debug("tree updated",
		"devices", t.list.Len(),
		"added", added,
		"removed", removed,
		"created", c.created,
		"detached", c.dropped,
		"elapsed", t.opts.clock.Now().Sub(start))
}
