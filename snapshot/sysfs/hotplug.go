//go:build linux

package sysfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/ardnew/usbtree/pkg"
)

// UEventBufferSize is the receive buffer size for one netlink uevent.
const UEventBufferSize = 4096

// hotplugPollTimeout bounds how long Run waits before checking its context.
const hotplugPollTimeout = 250 // ms

// =============================================================================
// UEvent Types
// =============================================================================

// ueventAction represents a kernel uevent action.
type ueventAction uint8

const (
	ueventUnknown ueventAction = iota
	ueventAdd
	ueventRemove
	ueventChange
	ueventBind
	ueventUnbind
)

var ueventActions = map[string]ueventAction{
	"add":    ueventAdd,
	"remove": ueventRemove,
	"change": ueventChange,
	"bind":   ueventBind,
	"unbind": ueventUnbind,
}

func (a ueventAction) String() string {
	for name, v := range ueventActions {
		if v == a {
			return name
		}
	}
	return "unknown"
}

// uevent represents a parsed netlink uevent.
type uevent struct {
	action    ueventAction
	devpath   string // DEVPATH value
	subsystem string // SUBSYSTEM value
	devtype   string // DEVTYPE value
}

// topologyChange reports whether evt may alter the USB device tree.
func (evt uevent) topologyChange() bool {
	if evt.subsystem != "usb" {
		return false
	}
	switch evt.action {
	case ueventAdd, ueventRemove, ueventBind, ueventUnbind:
		return true
	default:
		return false
	}
}

// parseUEvent parses a netlink uevent message: a header "action@devpath"
// followed by NUL-separated KEY=value pairs.
func parseUEvent(data []byte) uevent {
	evt := uevent{}

	for _, line := range bytes.Split(data, []byte{0}) {
		if len(line) == 0 {
			continue
		}
		s := string(line)

		key, value, ok := strings.Cut(s, "=")
		if !ok {
			if action, devpath, ok := strings.Cut(s, "@"); ok {
				evt.action = ueventActions[action]
				evt.devpath = devpath
			}
			continue
		}

		switch key {
		case "ACTION":
			evt.action = ueventActions[value]
		case "DEVPATH":
			evt.devpath = value
		case "SUBSYSTEM":
			evt.subsystem = value
		case "DEVTYPE":
			evt.devtype = value
		}
	}

	return evt
}

// =============================================================================
// Hotplug Monitor
// =============================================================================

// Hotplug monitors kernel uevents for USB topology changes. Bursts of
// events coalesce into a single pending signal on Trigger.
type Hotplug struct {
	fd      int
	buf     [UEventBufferSize]byte
	trigger chan struct{}
	log     *slog.Logger

	events  atomic.Uint64
	once    sync.Once
	closed  atomic.Bool
	running atomic.Bool
	done    chan struct{} // closed when Run returns
}

// NewHotplug opens a netlink socket bound to the kernel uevent group.
func NewHotplug(l *slog.Logger) (*Hotplug, error) {
	fd, err := unix.Socket(
		unix.AF_NETLINK,
		unix.SOCK_DGRAM|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK,
		unix.NETLINK_KOBJECT_UEVENT,
	)
	if err != nil {
		return nil, fmt.Errorf("netlink socket: %w", err)
	}

	addr := &unix.SockaddrNetlink{
		Family: unix.AF_NETLINK,
		Groups: 1, // Kernel broadcast group
	}
	if err := unix.Bind(fd, addr); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("netlink bind: %w", err)
	}

	return newHotplug(fd, l), nil
}

// newHotplug wraps a non-blocking datagram socket delivering uevents.
func newHotplug(fd int, l *slog.Logger) *Hotplug {
	if l == nil {
		l = pkg.Logger(pkg.ComponentHotplug)
	} else {
		l = l.With("component", string(pkg.ComponentHotplug))
	}
	return &Hotplug{
		fd:      fd,
		trigger: make(chan struct{}, 1),
		log:     l,
		done:    make(chan struct{}),
	}
}

// Trigger receives a value after one or more USB topology changes.
func (h *Hotplug) Trigger() <-chan struct{} { return h.trigger }

// Events returns the number of USB topology events seen.
func (h *Hotplug) Events() uint64 { return h.events.Load() }

// Run reads uevents until ctx is cancelled or the monitor is closed. Only
// one Run may be active.
func (h *Hotplug) Run(ctx context.Context) error {
	if !h.running.CompareAndSwap(false, true) {
		return fmt.Errorf("hotplug monitor already running: %w", pkg.ErrInvalidParameter)
	}
	defer close(h.done)

	fds := []unix.PollFd{{Fd: int32(h.fd), Events: unix.POLLIN}}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if h.closed.Load() {
			return pkg.ErrClosed
		}

		n, err := unix.Poll(fds, hotplugPollTimeout)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			if h.closed.Load() {
				return pkg.ErrClosed
			}
			return fmt.Errorf("netlink poll: %w", err)
		}
		if n == 0 {
			continue
		}

		if err := h.drain(); err != nil {
			if h.closed.Load() {
				return pkg.ErrClosed
			}
			return err
		}
	}
}

// drain reads every queued uevent.
func (h *Hotplug) drain() error {
	for {
		n, err := unix.Read(h.fd, h.buf[:])
		if err != nil {
			if errors.Is(err, unix.EAGAIN) {
				return nil
			}
			return fmt.Errorf("netlink read: %w", err)
		}
		if n <= 0 {
			return nil
		}
		h.handle(parseUEvent(h.buf[:n]))
	}
}

func (h *Hotplug) handle(evt uevent) {
	if !evt.topologyChange() {
		return
	}
	h.events.Add(1)
	h.log.Debug("uevent", "action", evt.action, "devpath", evt.devpath, "devtype", evt.devtype)
	h.signal()
}

// signal marks a pending change without blocking.
func (h *Hotplug) signal() {
	select {
	case h.trigger <- struct{}{}:
	default:
	}
}

// Close stops Run, waits for it to return and then releases the netlink
// socket, so the descriptor is never read after it was closed. Close is
// idempotent.
func (h *Hotplug) Close() error {
	var err error
	h.once.Do(func() {
		h.closed.Store(true)
		if h.running.Load() {
			<-h.done
		}
		err = unix.Close(h.fd)
	})
	return err
}
