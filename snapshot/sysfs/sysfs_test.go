//go:build linux

package sysfs

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/usbtree/pkg"
	"github.com/ardnew/usbtree/pkg/linux/usbid"
	"github.com/ardnew/usbtree/snapshot"
	"github.com/ardnew/usbtree/tree"
)

const testDatabase = `046d  Logitech, Inc.
	c077  M105 Optical Mouse
16c0  Van Ooijen Technische Informatica
C 0a  CDC Data
`

// fixture lays out a fake sysfs below a temp dir:
//
//	usb1 (root hub)
//	└── 1-1 (hub)
//	    ├── 1-1.2 (mouse, single interface)
//	    └── 1-1.3 (composite: CDC ACM + CDC data)
//	└── 1-4 (no vendor id)
type fixture struct {
	t       *testing.T
	devices string // real device tree
	bus     string // bus/usb/devices symlink dir
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		t:       t,
		devices: filepath.Join(dir, "devices", "pci0000:00", "0000:00:14.0"),
		bus:     filepath.Join(dir, "bus", "usb", "devices"),
	}
	require.NoError(t, os.MkdirAll(f.bus, 0o755))

	f.add("usb1", map[string]string{
		"idVendor": "1d6b", "idProduct": "0002", "bcdDevice": "0608",
		"bDeviceClass": "09", "version": " 2.00", "product": "xHCI Host Controller",
	})
	f.add("usb1/1-0:1.0", map[string]string{"bInterfaceNumber": "00", "bInterfaceClass": "09"})
	f.add("usb1/1-1", map[string]string{
		"idVendor": "05e3", "idProduct": "0610", "bcdDevice": "9226",
		"bDeviceClass": "09", "product": "USB2.1 Hub",
	})
	f.add("usb1/1-1/1-1:1.0", map[string]string{"bInterfaceNumber": "00", "bInterfaceClass": "09"})
	f.add("usb1/1-1/1-1.2", map[string]string{
		"idVendor": "046d", "idProduct": "c077", "bcdDevice": "7200", "bDeviceClass": "00",
	})
	f.add("usb1/1-1/1-1.2/1-1.2:1.0", map[string]string{"bInterfaceNumber": "00", "bInterfaceClass": "03"})
	f.add("usb1/1-1/1-1.3", map[string]string{
		"idVendor": "16c0", "idProduct": "0483", "bcdDevice": "0280",
		"bDeviceClass": "ef", "serial": "12345", "product": "Teensy",
	})
	f.add("usb1/1-1/1-1.3/1-1.3:1.0", map[string]string{
		"bInterfaceNumber": "00", "bInterfaceClass": "02", "interface": "CDC ACM",
	})
	f.add("usb1/1-1/1-1.3/1-1.3:1.1", map[string]string{"bInterfaceNumber": "01", "bInterfaceClass": "0a"})
	f.add("usb1/1-4", map[string]string{"bDeviceClass": "00"})
	return f
}

// add creates a device directory with attribute files and links it into
// the bus directory.
func (f *fixture) add(rel string, attrs map[string]string) {
	f.t.Helper()
	dir := filepath.Join(f.devices, rel)
	require.NoError(f.t, os.MkdirAll(dir, 0o755))
	for name, value := range attrs {
		require.NoError(f.t, os.WriteFile(filepath.Join(dir, name), []byte(value+"\n"), 0o644))
	}
	require.NoError(f.t, os.Symlink(dir, filepath.Join(f.bus, filepath.Base(rel))))
}

// remove unplugs a device and everything below it.
func (f *fixture) remove(rel string) {
	f.t.Helper()
	require.NoError(f.t, os.RemoveAll(filepath.Join(f.devices, rel)))
	entries, err := os.ReadDir(f.bus)
	require.NoError(f.t, err)
	prefix := filepath.Base(rel)
	for _, e := range entries {
		if e.Name() == prefix || strings.HasPrefix(e.Name(), prefix+".") || strings.HasPrefix(e.Name(), prefix+":") {
			require.NoError(f.t, os.Remove(filepath.Join(f.bus, e.Name())))
		}
	}
}

func (f *fixture) source(t *testing.T) *Source {
	db := usbid.NewWithPaths(nil)
	require.NoError(t, db.LoadFrom(strings.NewReader(testDatabase)))
	return New(WithRoot(f.bus), WithDatabase(db))
}

// byID indexes the resolvable records of tr by instance id.
func byID(tr *snapshot.Tree) map[string]*snapshot.Record {
	m := map[string]*snapshot.Record{}
	tr.Walk(func(r *snapshot.Record) bool {
		m[r.InstanceID] = r
		return true
	})
	return m
}

// =============================================================================
// Enumeration Tests
// =============================================================================

func TestEnumerate_Topology(t *testing.T) {
	src := newFixture(t).source(t)

	tr, err := src.Enumerate(context.Background())
	require.NoError(t, err)

	require.Len(t, tr.Root.Children, 1)
	hub := tr.Root.Children[0]
	assert.Equal(t, `USB\ROOT_HUB20\usb1`, hub.InstanceID)
	assert.Equal(t, 0x1d6b, hub.VendorID)

	// The root hub's single interface is not reported.
	require.Len(t, hub.Children, 2)
	assert.Equal(t, `USB\VID_05E3&PID_0610\1-1`, hub.Children[0].InstanceID)
	assert.Empty(t, hub.Children[1].InstanceID, "device without vendor id")

	ext := hub.Children[0]
	require.Len(t, ext.Children, 2)
	mouse, teensy := ext.Children[0], ext.Children[1]

	assert.Equal(t, `USB\VID_046D&PID_C077\1-1.2`, mouse.InstanceID)
	assert.Equal(t, 0x7200, mouse.Revision)
	assert.Empty(t, mouse.Children)

	assert.Equal(t, `USB\VID_16C0&PID_0483\12345`, teensy.InstanceID)
	assert.Equal(t, "12345", teensy.Serial)
	require.Len(t, teensy.Children, 2)
	acm := teensy.Children[0]
	assert.True(t, acm.IsInterface)
	assert.Equal(t, 0, acm.InterfaceNumber)
	assert.Equal(t, `USB\VID_16C0&PID_0483&MI_00\1-1.3:1.0`, acm.InstanceID)
	assert.Equal(t, 1, teensy.Children[1].InterfaceNumber)

	assert.Equal(t, 7, tr.Len())
}

func TestEnumerate_StableHandles(t *testing.T) {
	f := newFixture(t)
	src := f.source(t)

	first, err := src.Enumerate(context.Background())
	require.NoError(t, err)
	second, err := src.Enumerate(context.Background())
	require.NoError(t, err)
	assert.True(t, first.Equal(second))

	before := byID(first)
	f.remove("usb1/1-1/1-1.2")

	third, err := src.Enumerate(context.Background())
	require.NoError(t, err)
	assert.False(t, first.Equal(third))

	after := byID(third)
	assert.NotContains(t, after, `USB\VID_046D&PID_C077\1-1.2`)
	for id, r := range after {
		if b, ok := before[id]; ok {
			assert.Equal(t, b.Node, r.Node, "handle of %s changed", id)
		}
	}
}

func TestEnumerate_MissingRoot(t *testing.T) {
	src := New(WithRoot(filepath.Join(t.TempDir(), "absent")))
	_, err := src.Enumerate(context.Background())
	assert.ErrorIs(t, err, pkg.ErrNoSource)
}

func TestEnumerate_Cancelled(t *testing.T) {
	src := newFixture(t).source(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := src.Enumerate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

// addTwins plugs two adapters reporting the same vendor, product and serial.
func (f *fixture) addTwins() {
	f.t.Helper()
	for _, rel := range []string{"usb1/1-1/1-1.4", "usb1/1-5"} {
		f.add(rel, map[string]string{
			"idVendor": "0403", "idProduct": "6001", "bcdDevice": "0600",
			"bDeviceClass": "00", "serial": "A50285BI", "product": "FT232R USB UART",
		})
		f.add(rel+"/"+filepath.Base(rel)+":1.0", map[string]string{"bInterfaceNumber": "00", "bInterfaceClass": "ff"})
	}
}

func TestEnumerate_SharedSerial(t *testing.T) {
	f := newFixture(t)
	f.addTwins()
	src := f.source(t)

	tr, err := src.Enumerate(context.Background())
	require.NoError(t, err)

	recs := byID(tr)
	a, b := recs[`USB\VID_0403&PID_6001\1-1.4`], recs[`USB\VID_0403&PID_6001\1-5`]
	require.NotNil(t, a, "shared serial falls back to the port path")
	require.NotNil(t, b)
	assert.NotContains(t, recs, `USB\VID_0403&PID_6001\A50285BI`)
	assert.Equal(t, "A50285BI", a.Serial)
	assert.Contains(t, recs, `USB\VID_16C0&PID_0483\12345`, "unique serials are unaffected")

	id, ok := src.QueryString(a.Node, snapshot.PropInstanceID)
	require.True(t, ok)
	assert.Equal(t, a.InstanceID, id)

	f.remove("usb1/1-5")
	tr, err = src.Enumerate(context.Background())
	require.NoError(t, err)
	assert.Contains(t, byID(tr), `USB\VID_0403&PID_6001\A50285BI`, "serial is unique again")
}

// =============================================================================
// Query Tests
// =============================================================================

func TestResolveDetails(t *testing.T) {
	src := newFixture(t).source(t)
	tr, err := src.Enumerate(context.Background())
	require.NoError(t, err)
	require.NoError(t, src.ResolveDetails(context.Background(), tr))

	recs := byID(tr)
	tests := []struct {
		id          string
		description string
		class       SetupClass
		hardwareIDs []string
	}{
		{`USB\ROOT_HUB20\usb1`, "xHCI Host Controller", ClassUSB, []string{
			`USB\ROOT_HUB20&VID_1D6B&PID_0002&REV_0608`, `USB\ROOT_HUB20&VID_1D6B&PID_0002`,
		}},
		{`USB\VID_046D&PID_C077\1-1.2`, "M105 Optical Mouse", ClassHID, []string{
			`USB\VID_046D&PID_C077&REV_7200`, `USB\VID_046D&PID_C077`,
		}},
		{`USB\VID_16C0&PID_0483\12345`, "Teensy", ClassUSB, []string{
			`USB\VID_16C0&PID_0483&REV_0280`, `USB\VID_16C0&PID_0483`,
		}},
		{`USB\VID_16C0&PID_0483&MI_00\1-1.3:1.0`, "CDC ACM", ClassPorts, []string{
			`USB\VID_16C0&PID_0483&REV_0280&MI_00`, `USB\VID_16C0&PID_0483&MI_00`,
		}},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			r := recs[tt.id]
			require.NotNil(t, r)
			require.True(t, r.Resolved())
			assert.Equal(t, tt.description, r.Details.Description)
			assert.Equal(t, tt.class.GUID, r.Details.ClassGUID)
			assert.Equal(t, tt.class.Name, r.Details.ClassDescription)
			assert.Equal(t, tt.hardwareIDs, r.Details.HardwareIDs)
		})
	}

	data := recs[`USB\VID_16C0&PID_0483&MI_01\1-1.3:1.1`]
	require.NotNil(t, data)
	assert.Equal(t, "CDC Data", data.Details.Description)
	assert.Equal(t, "CDC Data", data.Details.ClassDescription)
	assert.Equal(t, snapshot.NoValue, recs[""].Details.Description)
}

func TestQuery_UnknownHandle(t *testing.T) {
	src := New(WithRoot(t.TempDir()))

	_, ok := src.QueryString(42, snapshot.PropDescription)
	assert.False(t, ok)
	_, ok = src.QueryStrings(-1, snapshot.PropHardwareIDs)
	assert.False(t, ok)
	_, ok = src.QueryGUID(0, snapshot.PropClassGUID)
	assert.False(t, ok)
}

func TestEntryFor_Vanished(t *testing.T) {
	f := newFixture(t)
	src := f.source(t)
	tr, err := src.Enumerate(context.Background())
	require.NoError(t, err)
	mouse := byID(tr)[`USB\VID_046D&PID_C077\1-1.2`]
	require.NotNil(t, mouse)

	f.remove("usb1/1-1/1-1.2")

	_, err = src.entryFor(mouse.Node)
	assert.ErrorIs(t, err, pkg.ErrNoDevice)
	_, ok := src.QueryString(mouse.Node, snapshot.PropDescription)
	assert.False(t, ok)

	_, err = src.entryFor(99)
	assert.ErrorIs(t, err, pkg.ErrInvalidParameter)
}

func TestQuery_RawProperties(t *testing.T) {
	src := newFixture(t).source(t)
	tr, err := src.Enumerate(context.Background())
	require.NoError(t, err)

	teensy := byID(tr)[`USB\VID_16C0&PID_0483\12345`]
	id, ok := src.QueryString(teensy.Node, snapshot.PropInstanceID)
	assert.True(t, ok)
	assert.Equal(t, teensy.InstanceID, id)

	serial, ok := src.QueryString(teensy.Node, snapshot.PropSerial)
	assert.True(t, ok)
	assert.Equal(t, "12345", serial)

	_, ok = src.QueryGUID(teensy.Node, snapshot.PropDescription)
	assert.False(t, ok, "GUID query of a string property")
}

// =============================================================================
// Identifier Tests
// =============================================================================

func TestRootHubTag(t *testing.T) {
	tests := map[string]string{
		" 2.00": "ROOT_HUB20",
		"1.10":  "ROOT_HUB20",
		"3.00":  "ROOT_HUB30",
		"3.20":  "ROOT_HUB30",
		"":      "ROOT_HUB",
	}
	for in, want := range tests {
		assert.Equal(t, want, rootHubTag(in), "version %q", in)
	}
}

func TestDeviceInstanceID_Serial(t *testing.T) {
	e := &entry{name: "1-2", vid: 0x1234, pid: 0x5678, serial: "has space"}
	assert.Equal(t, `USB\VID_1234&PID_5678\1-2`, deviceInstanceID(e))

	e.serial = "ABC"
	assert.Equal(t, `USB\VID_1234&PID_5678\ABC`, deviceInstanceID(e))

	e.sharedSerial = true
	assert.Equal(t, `USB\VID_1234&PID_5678\1-2`, deviceInstanceID(e))
}

func TestLookupSetupClass(t *testing.T) {
	c, ok := LookupSetupClass(USBClassCDC)
	require.True(t, ok)
	assert.Equal(t, "Ports", c.Name)

	_, ok = LookupSetupClass(0xFF)
	assert.False(t, ok)
}

// =============================================================================
// Tree Integration
// =============================================================================

func TestTreeOverSysfs(t *testing.T) {
	f := newFixture(t)
	tr, err := tree.New(context.Background(), f.source(t), tree.WithInterval(time.Hour))
	require.NoError(t, err)
	defer tr.Close()

	var descriptions []string
	for _, d := range tr.List().Items() {
		descriptions = append(descriptions, d.Description())
	}
	assert.Equal(t, []string{
		"xHCI Host Controller", "USB2.1 Hub", "M105 Optical Mouse", "Teensy", snapshot.NoDescription,
	}, descriptions)

	var teensy *tree.Device
	for _, d := range tr.List().Items() {
		if d.Serial() == "12345" {
			teensy = d
		}
	}
	require.NotNil(t, teensy)
	assert.Equal(t, 0x0280, teensy.Revision())
	require.Len(t, teensy.Interfaces(), 2)
	assert.Equal(t, "Ports", teensy.Interfaces()[0].ClassDescription())
}

func TestTreeOverSysfs_SharedSerial(t *testing.T) {
	f := newFixture(t)
	f.addTwins()
	tr, err := tree.New(context.Background(), f.source(t), tree.WithInterval(time.Hour))
	require.NoError(t, err)
	defer tr.Close()

	var twins []*tree.Device
	for _, d := range tr.List().Items() {
		if d.Serial() == "A50285BI" {
			twins = append(twins, d)
		}
	}
	require.Len(t, twins, 2)
	assert.NotSame(t, twins[0], twins[1], "adapters sharing a serial stay distinct devices")
	assert.NotEqual(t, twins[0].Parent(), twins[1].Parent())
}
