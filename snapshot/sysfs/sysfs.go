//go:build linux

package sysfs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ardnew/usbtree/pkg"
	"github.com/ardnew/usbtree/pkg/linux/usbid"
	"github.com/ardnew/usbtree/snapshot"
)

// DefaultRoot is the sysfs directory listing every USB device and interface.
const DefaultRoot = "/sys/bus/usb/devices"

// =============================================================================
// Source
// =============================================================================

// Source enumerates USB devices from sysfs. Handles are interned per real
// device path and stay valid for the life of the Source.
type Source struct {
	root string
	db   *usbid.Database
	log  *slog.Logger

	mu      sync.Mutex
	handles map[string]snapshot.Handle
	paths   []string
	shared  map[string]bool // paths whose serial is not unique
}

// Option configures a Source.
type Option func(*Source)

// WithRoot sets the directory to enumerate instead of DefaultRoot.
func WithRoot(path string) Option {
	return func(s *Source) { s.root = path }
}

// WithDatabase sets the usb.ids database used for names that devices do
// not report themselves.
func WithDatabase(db *usbid.Database) Option {
	return func(s *Source) { s.db = db }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Source) {
		if l != nil {
			s.log = l.With("component", string(pkg.ComponentSysfs))
		}
	}
}

// New returns a Source reading DefaultRoot.
func New(opts ...Option) *Source {
	s := &Source{
		root:    DefaultRoot,
		log:     pkg.Logger(pkg.ComponentSysfs),
		handles: make(map[string]snapshot.Handle),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ snapshot.Source = (*Source)(nil)

// intern returns the handle of a real device path.
func (s *Source) intern(path string) snapshot.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h, ok := s.handles[path]; ok {
		return h
	}
	h := snapshot.Handle(len(s.paths))
	s.handles[path] = h
	s.paths = append(s.paths, path)
	return h
}

// path returns the real device path of h.
func (s *Source) path(h snapshot.Handle) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if h < 0 || int(h) >= len(s.paths) {
		return "", false
	}
	return s.paths[h], true
}

// =============================================================================
// Enumeration
// =============================================================================

// entry holds the raw attributes of one sysfs device or interface.
type entry struct {
	name    string // sysfs name, e.g. "1-1.2" or "1-1.2:1.0"
	path    string // real path below /sys/devices
	iface   bool
	rootHub bool
	version string

	vid, pid, rev int
	ifnum         int
	class         int
	serial        string
	sharedSerial  bool // another device reports the same vid, pid and serial

	parent *entry
	kids   []*entry
}

// Enumerate lists the sysfs USB directory and links every entry to its
// nearest USB ancestor. Entries without one are top-level devices.
func (s *Source) Enumerate(ctx context.Context) (*snapshot.Tree, error) {
	dirents, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pkg.ErrNoSource, err)
	}

	byPath := make(map[string]*entry, len(dirents))
	all := make([]*entry, 0, len(dirents))
	for _, de := range dirents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		target, err := filepath.EvalSymlinks(filepath.Join(s.root, de.Name()))
		if err != nil {
			// Unplugged while scanning.
			s.log.Debug("skip entry", "name", de.Name(), "error", err)
			continue
		}
		e := readEntry(target)
		byPath[target] = e
		all = append(all, e)
	}

	s.markSharedSerials(all)

	var roots []*entry
	for _, e := range all {
		if p := nearestAncestor(byPath, e.path); p != nil {
			e.parent = p
			p.kids = append(p.kids, e)
		} else if !e.iface {
			roots = append(roots, e)
		}
	}

	t := snapshot.NewTree()
	for _, e := range roots {
		t.Root.AddChild(s.record(e))
	}
	return t, nil
}

// markSharedSerials flags devices whose vendor, product and serial collide
// with another device. Their instance ids fall back to the port path.
func (s *Source) markSharedSerials(all []*entry) {
	type key struct {
		vid, pid int
		serial   string
	}
	count := make(map[key]int)
	for _, e := range all {
		if !e.iface && !e.rootHub && validSerial(e.serial) {
			count[key{e.vid, e.pid, e.serial}]++
		}
	}

	shared := make(map[string]bool)
	for _, e := range all {
		if !e.iface && !e.rootHub && count[key{e.vid, e.pid, e.serial}] > 1 {
			e.sharedSerial = true
			shared[e.path] = true
			s.log.Debug("serial not unique", "name", e.name, "serial", e.serial)
		}
	}

	s.mu.Lock()
	s.shared = shared
	s.mu.Unlock()
}

// ResolveDetails queries description, class and hardware ids of every
// record in t.
func (s *Source) ResolveDetails(ctx context.Context, t *snapshot.Tree) error {
	return snapshot.Resolve(ctx, t, s)
}

// record converts e and its subtree to snapshot records. Interfaces are
// only reported for composite devices.
func (s *Source) record(e *entry) *snapshot.Record {
	r := snapshot.NewRecord(s.intern(e.path), instanceID(e))
	r.VendorID, r.ProductID, r.Revision = e.vid, e.pid, e.rev
	r.IsInterface = e.iface
	if e.iface {
		r.InterfaceNumber = e.ifnum
	} else {
		r.Serial = e.serial
	}

	composite := e.interfaceCount() > 1
	for _, k := range e.kids {
		if k.iface && !composite {
			continue
		}
		r.AddChild(s.record(k))
	}
	return r
}

func (e *entry) interfaceCount() int {
	n := 0
	for _, k := range e.kids {
		if k.iface {
			n++
		}
	}
	return n
}

// nearestAncestor walks up from path until it finds an enumerated entry.
func nearestAncestor(byPath map[string]*entry, path string) *entry {
	for dir := filepath.Dir(path); dir != path; path, dir = dir, filepath.Dir(dir) {
		if e, ok := byPath[dir]; ok {
			return e
		}
	}
	return nil
}

// readEntry reads the raw attributes of the device or interface at path.
// Interfaces take vendor, product and revision from their device.
func readEntry(path string) *entry {
	e := &entry{
		name:  filepath.Base(path),
		path:  path,
		vid:   snapshot.Unset,
		pid:   snapshot.Unset,
		rev:   snapshot.Unset,
		ifnum: snapshot.Unset,
		class: snapshot.Unset,
	}
	e.iface = strings.Contains(e.name, ":")
	e.rootHub = strings.HasPrefix(e.name, "usb")

	dev := path
	if e.iface {
		dev = filepath.Dir(path)
		e.ifnum = readSysfsHex(filepath.Join(path, "bInterfaceNumber"), 8)
		e.class = readSysfsHex(filepath.Join(path, "bInterfaceClass"), 8)
	} else {
		e.class = readSysfsHex(filepath.Join(path, "bDeviceClass"), 8)
		e.serial, _ = readSysfsString(filepath.Join(path, "serial"))
		if e.rootHub {
			e.version, _ = readSysfsString(filepath.Join(path, "version"))
		}
	}
	e.vid = readSysfsHex(filepath.Join(dev, "idVendor"), 16)
	e.pid = readSysfsHex(filepath.Join(dev, "idProduct"), 16)
	e.rev = readSysfsHex(filepath.Join(dev, "bcdDevice"), 16)
	return e
}

func instanceID(e *entry) string {
	if e.iface {
		return interfaceInstanceID(e)
	}
	return deviceInstanceID(e)
}

// =============================================================================
// Property Queries
// =============================================================================

// entryFor re-reads the entry behind h. A device unplugged since it was
// enumerated yields pkg.ErrNoDevice.
func (s *Source) entryFor(h snapshot.Handle) (*entry, error) {
	path, ok := s.path(h)
	if !ok {
		return nil, fmt.Errorf("handle %d: %w", h, pkg.ErrInvalidParameter)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%s: %w", path, pkg.ErrNoDevice)
	}
	e := readEntry(path)
	s.mu.Lock()
	e.sharedSerial = s.shared[path]
	s.mu.Unlock()
	return e, nil
}

// lookup is entryFor for the Querier methods, which report failures
// in-band.
func (s *Source) lookup(h snapshot.Handle, key snapshot.PropertyKey) (*entry, bool) {
	e, err := s.entryFor(h)
	if err != nil {
		s.log.Debug("query failed", "handle", h, "key", key, "error", err)
		return nil, false
	}
	return e, true
}

// QueryString implements snapshot.Querier.
func (s *Source) QueryString(h snapshot.Handle, key snapshot.PropertyKey) (string, bool) {
	e, ok := s.lookup(h, key)
	if !ok {
		return "", false
	}

	var v string
	switch key {
	case snapshot.PropInstanceID:
		v = instanceID(e)
	case snapshot.PropSerial:
		v = e.serial
	case snapshot.PropDescription:
		v = s.description(e)
	case snapshot.PropClass:
		if c, ok := setupClass(e); ok {
			v = c.Name
		} else if s.db != nil && e.class >= 0 {
			v = s.db.LookupClass(uint8(e.class))
		}
	}
	return v, v != ""
}

// QueryStrings implements snapshot.Querier.
func (s *Source) QueryStrings(h snapshot.Handle, key snapshot.PropertyKey) ([]string, bool) {
	if key != snapshot.PropHardwareIDs {
		return nil, false
	}
	e, ok := s.lookup(h, key)
	if !ok {
		return nil, false
	}
	ids := hardwareIDs(e)
	return ids, len(ids) > 0
}

// QueryGUID implements snapshot.Querier.
func (s *Source) QueryGUID(h snapshot.Handle, key snapshot.PropertyKey) (uuid.UUID, bool) {
	if key != snapshot.PropClassGUID {
		return uuid.Nil, false
	}
	e, ok := s.lookup(h, key)
	if !ok {
		return uuid.Nil, false
	}
	c, ok := setupClass(e)
	return c.GUID, ok
}

// description returns the product or interface string, falling back to
// the usb.ids names.
func (s *Source) description(e *entry) string {
	attr := "product"
	if e.iface {
		attr = "interface"
	}
	if v, err := readSysfsString(filepath.Join(e.path, attr)); err == nil && v != "" {
		return v
	}
	if s.db == nil {
		return ""
	}
	if e.iface {
		if e.class >= 0 {
			return s.db.LookupClass(uint8(e.class))
		}
		return ""
	}
	if e.vid >= 0 && e.pid >= 0 {
		return s.db.Describe(uint16(e.vid), uint16(e.pid))
	}
	return ""
}

// setupClass maps e to a setup class. Devices deferring their class to
// their interfaces are USB composite devices when they have several
// interfaces and take the class of their only interface otherwise.
func setupClass(e *entry) (SetupClass, bool) {
	code := e.class
	if !e.iface && (code == USBClassPerInterface || code == USBClassMisc) {
		classes := interfaceClasses(e.path)
		switch {
		case len(classes) > 1:
			return ClassUSB, true
		case len(classes) == 1:
			code = classes[0]
		}
	}
	if code < 0 {
		return SetupClass{}, false
	}
	return LookupSetupClass(uint8(code))
}

// interfaceClasses returns bInterfaceClass of every interface of the
// device at path.
func interfaceClasses(path string) []int {
	dirents, err := os.ReadDir(path)
	if err != nil {
		return nil
	}
	prefix := filepath.Base(path) + ":"
	var classes []int
	for _, de := range dirents {
		if !strings.HasPrefix(de.Name(), prefix) {
			continue
		}
		classes = append(classes, readSysfsHex(filepath.Join(path, de.Name(), "bInterfaceClass"), 8))
	}
	return classes
}

// =============================================================================
// Sysfs Read Helpers
// =============================================================================

// readSysfsString reads a string from a sysfs attribute file.
func readSysfsString(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// readSysfsHex reads a hexadecimal attribute, returning snapshot.Unset if
// it is missing or malformed.
func readSysfsHex(path string, bitSize int) int {
	s, err := readSysfsString(path)
	if err != nil {
		return snapshot.Unset
	}
	v, err := strconv.ParseUint(strings.TrimPrefix(s, "0x"), 16, bitSize)
	if err != nil {
		return snapshot.Unset
	}
	return int(v)
}
