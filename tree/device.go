package tree

import (
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/ardnew/usbtree/snapshot"
)

// Device is the live, identity-stable representation of one USB device or
// one interface of a composite device.
//
// Devices are created by the Matcher and mutated only by the poll cycle.
// All getters are safe for concurrent use.
type Device struct {
	mu sync.RWMutex

	instanceID       string
	description      string
	classGUID        uuid.UUID
	classDescription string
	hardwareIDs      []string
	vendorID         int
	productID        int
	revision         int
	interfaceNumber  int
	serial           string
	isInterface      bool
	connected        bool

	children   []*Device
	interfaces []*Device
	parent     *Device
	detached   bool

	data any

	obsMu     sync.Mutex
	observers []attributeObserver
	nextObsID int
}

type attributeObserver struct {
	id int
	fn AttributeFunc
}

// NewDevice returns an empty device with all integer attributes unset.
// Custom factories use it as the starting point of their own devices.
func NewDevice() *Device {
	return &Device{
		vendorID:        snapshot.Unset,
		productID:       snapshot.Unset,
		revision:        snapshot.Unset,
		interfaceNumber: snapshot.Unset,
	}
}

// =============================================================================
// Accessors
// =============================================================================

// InstanceID returns the device instance id, the identity key of the device.
func (d *Device) InstanceID() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.instanceID
}

// Description returns the friendly name reported by the OS.
func (d *Device) Description() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.description
}

// ClassGUID returns the setup class GUID of the device.
func (d *Device) ClassGUID() uuid.UUID {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.classGUID
}

// ClassDescription returns the name of the device's setup class.
func (d *Device) ClassDescription() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.classDescription
}

// HardwareIDs returns a copy of the hardware id list.
func (d *Device) HardwareIDs() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.hardwareIDs)
}

// VendorID returns the USB vendor id, or -1 if unknown.
func (d *Device) VendorID() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.vendorID
}

// ProductID returns the USB product id, or -1 if unknown.
func (d *Device) ProductID() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.productID
}

// Revision returns the device release number (bcdDevice), or -1 if unknown.
func (d *Device) Revision() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.revision
}

// InterfaceNumber returns the multi-interface index (MI), or -1 for
// devices that are not interfaces.
func (d *Device) InterfaceNumber() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.interfaceNumber
}

// Serial returns the serial number string.
func (d *Device) Serial() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.serial
}

// IsInterface reports whether the device is a function of a composite device.
func (d *Device) IsInterface() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.isInterface
}

// IsConnected reports whether the device is attached to the live tree.
func (d *Device) IsConnected() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.connected
}

// Detached reports whether the device was removed from the tree. Detached
// devices are never reused.
func (d *Device) Detached() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.detached
}

// Children returns a copy of the sub-device list.
func (d *Device) Children() []*Device {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.children)
}

// Interfaces returns a copy of the interface list.
func (d *Device) Interfaces() []*Device {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.interfaces)
}

// Parent returns the device owning d, or nil for the root and for detached
// devices.
func (d *Device) Parent() *Device {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.parent
}

// Data returns the value stored with SetData.
func (d *Device) Data() any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.data
}

// SetData attaches an arbitrary value to the device. Factories use it to
// extend devices with their own representation.
func (d *Device) SetData(v any) {
	d.mu.Lock()
	d.data = v
	d.mu.Unlock()
}

func (d *Device) String() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return fmt.Sprintf("%s (%s/%s) #%s",
		d.description, hex4(d.vendorID), hex4(d.productID), d.serial)
}

func hex4(v int) string {
	if v < 0 {
		return "----"
	}
	return fmt.Sprintf("%04X", v)
}

// =============================================================================
// Notifications
// =============================================================================

// Subscribe registers fn for attribute changes of d and returns a function
// that removes it. Observers run on the poll goroutine.
func (d *Device) Subscribe(fn AttributeFunc) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	d.obsMu.Lock()
	id := d.nextObsID
	d.nextObsID++
	d.observers = append(d.observers, attributeObserver{id: id, fn: fn})
	d.obsMu.Unlock()

	return func() {
		d.obsMu.Lock()
		defer d.obsMu.Unlock()
		d.observers = slices.DeleteFunc(d.observers, func(o attributeObserver) bool {
			return o.id == id
		})
	}
}

func (d *Device) notify(attr Attribute) {
	d.obsMu.Lock()
	observers := slices.Clone(d.observers)
	d.obsMu.Unlock()

	for _, o := range observers {
		o.fn(d, attr)
	}
}

// set writes v into field and publishes attr if the value changed.
func set[T comparable](d *Device, field *T, v T, attr Attribute) {
	d.mu.Lock()
	changed := *field != v
	if changed {
		*field = v
	}
	d.mu.Unlock()

	if changed {
		d.notify(attr)
	}
}

func (d *Device) setHardwareIDs(ids []string) {
	d.mu.Lock()
	changed := !slices.Equal(d.hardwareIDs, ids)
	if changed {
		d.hardwareIDs = slices.Clone(ids)
	}
	d.mu.Unlock()

	if changed {
		d.notify(AttrHardwareIDs)
	}
}

// =============================================================================
// Update Protocol
// =============================================================================

// update absorbs rec into d in place and reconciles d's children and
// interfaces against rec's children.
func (d *Device) update(rec *snapshot.Record, c *cycle) {
	if rec == nil {
		return
	}

	if rec.Resolvable() {
		if rec.InstanceID != "" {
			d.absorb(rec, c.details(rec))
		} else {
			// Driver not bound yet, or the id query failed.
			set(d, &d.instanceID, snapshot.NoInstanceID, AttrInstanceID)
			set(d, &d.description, snapshot.NoDescription, AttrDescription)
		}
	}

	var kids, ifaces []*Device
	for _, cr := range rec.Children {
		if cr == nil {
			continue
		}
		child := c.matcher.match(cr, c)
		if cr.IsInterface {
			d.attach(&d.interfaces, child)
			ifaces = append(ifaces, child)
		} else {
			d.attach(&d.children, child)
			kids = append(kids, child)
		}
	}

	d.prune(&d.children, kids, c)
	d.prune(&d.interfaces, ifaces, c)
}

func (d *Device) absorb(rec *snapshot.Record, det *snapshot.Details) {
	set(d, &d.instanceID, rec.InstanceID, AttrInstanceID)
	set(d, &d.vendorID, rec.VendorID, AttrVendorID)
	set(d, &d.productID, rec.ProductID, AttrProductID)
	set(d, &d.interfaceNumber, rec.InterfaceNumber, AttrInterfaceNumber)
	set(d, &d.isInterface, rec.IsInterface, AttrIsInterface)
	set(d, &d.serial, rec.Serial, AttrSerial)

	set(d, &d.description, det.Description, AttrDescription)
	set(d, &d.classGUID, det.ClassGUID, AttrClassGUID)
	set(d, &d.classDescription, det.ClassDescription, AttrClassDescription)
	d.setHardwareIDs(det.HardwareIDs)

	rev := rec.Revision
	if len(det.HardwareIDs) > 0 {
		if v, ok := ParseRevision(det.HardwareIDs[0]); ok {
			rev = v
		}
	}
	set(d, &d.revision, rev, AttrRevision)
}

// attach appends child to list unless it is already present.
func (d *Device) attach(list *[]*Device, child *Device) {
	d.mu.Lock()
	if !slices.Contains(*list, child) {
		*list = append(*list, child)
	}
	d.mu.Unlock()

	child.mu.Lock()
	child.parent = d
	child.mu.Unlock()
	set(child, &child.connected, true, AttrConnected)
}

// prune removes every device from list that was not matched against one of
// the current record's children. Matching is by identity key, so this drops
// exactly the devices whose key vanished from the snapshot. Devices that
// still name d as their parent are queued for teardown at the end of the
// cycle; devices already attached elsewhere moved and are left alone.
func (d *Device) prune(list *[]*Device, matched []*Device, c *cycle) {
	d.mu.Lock()
	var gone []*Device
	kept := make([]*Device, 0, len(*list))
	for _, n := range *list {
		if slices.Contains(matched, n) {
			kept = append(kept, n)
		} else {
			gone = append(gone, n)
		}
	}
	if len(gone) > 0 {
		*list = kept
	}
	d.mu.Unlock()

	for _, n := range gone {
		n.mu.Lock()
		orphaned := n.parent == d
		if orphaned {
			n.parent = nil
		}
		n.mu.Unlock()
		if orphaned {
			c.removed = append(c.removed, n)
		}
	}
}

// detach tears down d and its whole subtree.
func (d *Device) detach() {
	d.mu.Lock()
	subtree := append(slices.Clone(d.interfaces), d.children...)
	d.interfaces = nil
	d.children = nil
	d.parent = nil
	d.detached = true
	d.mu.Unlock()

	set(d, &d.connected, false, AttrConnected)

	for _, n := range subtree {
		n.mu.Lock()
		owned := n.parent == d
		if owned {
			n.parent = nil
		}
		n.mu.Unlock()
		if owned {
			n.detach()
		}
	}
}
