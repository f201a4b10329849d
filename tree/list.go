package tree

import (
	"slices"
	"sync"
)

// ListAction tells whether a device entered or left the flat list.
type ListAction int

// List actions.
const (
	ListAdded ListAction = iota
	ListRemoved
)

func (a ListAction) String() string {
	switch a {
	case ListAdded:
		return "added"
	case ListRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// ListEvent reports a single change of the flat list.
type ListEvent struct {
	Action ListAction
	Device *Device
}

// ListFunc observes changes of the flat list.
type ListFunc func(ev ListEvent)

// List is the flattened view of every device reachable from the root
// through the children relation. It is rebuilt once per cycle and publishes
// all additions of that cycle before all removals.
type List struct {
	mu    sync.RWMutex
	items []*Device

	obsMu     sync.Mutex
	observers []listObserver
	nextObsID int
}

type listObserver struct {
	id int
	fn ListFunc
}

// Items returns a copy of the list in its current order.
func (l *List) Items() []*Device {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.items)
}

// Len returns the number of listed devices.
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

// Contains reports whether d is listed.
func (l *List) Contains(d *Device) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Contains(l.items, d)
}

// Subscribe registers fn for list events and returns a function that
// removes it.
func (l *List) Subscribe(fn ListFunc) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	l.obsMu.Lock()
	id := l.nextObsID
	l.nextObsID++
	l.observers = append(l.observers, listObserver{id: id, fn: fn})
	l.obsMu.Unlock()

	return func() {
		l.obsMu.Lock()
		defer l.obsMu.Unlock()
		l.observers = slices.DeleteFunc(l.observers, func(o listObserver) bool {
			return o.id == id
		})
	}
}

// Follow subscribes fn to the attribute changes of every listed device,
// including devices listed later, until the returned function is called.
// A device is followed from the moment it is listed until it is removed.
func (l *List) Follow(fn AttributeFunc) (unfollow func()) {
	if fn == nil {
		return func() {}
	}
	f := &follower{fn: fn, devices: make(map[*Device]func())}
	unsubscribe := l.Subscribe(f.onList)
	for _, d := range l.Items() {
		f.follow(d)
	}
	return func() {
		unsubscribe()
		f.stop()
	}
}

type follower struct {
	fn AttributeFunc

	mu      sync.Mutex
	devices map[*Device]func()
	stopped bool
}

func (f *follower) onList(ev ListEvent) {
	switch ev.Action {
	case ListAdded:
		f.follow(ev.Device)
	case ListRemoved:
		f.unfollow(ev.Device)
	}
}

func (f *follower) follow(d *Device) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopped {
		return
	}
	if _, ok := f.devices[d]; !ok {
		f.devices[d] = d.Subscribe(f.fn)
	}
}

func (f *follower) unfollow(d *Device) {
	f.mu.Lock()
	unsubscribe, ok := f.devices[d]
	delete(f.devices, d)
	f.mu.Unlock()
	if ok {
		unsubscribe()
	}
}

func (f *follower) stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	for d, unsubscribe := range f.devices {
		unsubscribe()
		delete(f.devices, d)
	}
}

func (l *List) publish(ev ListEvent) {
	l.obsMu.Lock()
	observers := slices.Clone(l.observers)
	l.obsMu.Unlock()

	for _, o := range observers {
		o.fn(ev)
	}
}

// refresh recomputes the list from root and publishes the difference.
func (l *List) refresh(root *Device) (added, removed int) {
	flat := Flatten(root)

	l.mu.Lock()
	prev := l.items
	var add, del []*Device
	for _, d := range flat {
		if !slices.Contains(prev, d) {
			add = append(add, d)
		}
	}
	for _, d := range prev {
		if !slices.Contains(flat, d) {
			del = append(del, d)
		}
	}
	items := append(slices.Clone(prev), add...)
	items = slices.DeleteFunc(items, func(d *Device) bool {
		return slices.Contains(del, d)
	})
	l.items = items
	l.mu.Unlock()

	for _, d := range add {
		l.publish(ListEvent{Action: ListAdded, Device: d})
	}
	for _, d := range del {
		l.publish(ListEvent{Action: ListRemoved, Device: d})
	}
	return len(add), len(del)
}

// Flatten returns every device below root in pre-order of the children
// relation. Interfaces and root itself are not included. A device reachable
// through more than one parent is listed once, at its first position.
func Flatten(root *Device) []*Device {
	if root == nil {
		return nil
	}
	var out []*Device
	seen := make(map[*Device]bool)
	var visit func(d *Device)
	visit = func(d *Device) {
		for _, c := range d.Children() {
			if seen[c] {
				continue
			}
			seen[c] = true
			out = append(out, c)
			visit(c)
		}
	}
	visit(root)
	return out
}
