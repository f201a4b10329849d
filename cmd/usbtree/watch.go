package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/ardnew/usbtree/tree"
)

// watcher prints list changes and the attribute changes of listed devices.
type watcher struct {
	w  io.Writer
	st styles

	mu sync.Mutex
}

func newWatcher(w io.Writer, st styles) *watcher {
	return &watcher{w: w, st: st}
}

// attach follows t until the returned function is called.
func (w *watcher) attach(t *tree.Tree) (detach func()) {
	unfollow := t.List().Follow(w.onChange)
	unsubscribe := t.List().Subscribe(w.onList)
	return func() {
		unsubscribe()
		unfollow()
	}
}

func (w *watcher) onList(ev tree.ListEvent) {
	w.println(formatListEvent(w.st, ev))
}

func (w *watcher) onChange(d *tree.Device, attr tree.Attribute) {
	// Connectivity is already reported through the list.
	if attr == tree.AttrConnected {
		return
	}
	w.println(formatChange(w.st, d, attr))
}

func (w *watcher) println(s string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	fmt.Fprintln(w.w, s)
}
