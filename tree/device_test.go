package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ardnew/usbtree/snapshot"
)

func TestParseRevision(t *testing.T) {
	tests := []struct {
		id   string
		want int
		ok   bool
	}{
		{`USB\VID_1234&PID_5678&REV_0102`, 0x0102, true},
		{`USB\VID_1234&PID_5678&REV_0102&MI_00`, 0x0102, true},
		{`usb\vid_1234&pid_5678&rev_00ff`, 0x00ff, true},
		{`USB\VID_1234&PID_5678&REVABCD`, 0xabcd, true},
		{`USB\VID_1234&PID_5678`, 0, false},
		{`USB\VID_1234&PID_5678&REV_01`, 0, false},
		{`USB\VID_1234&PID_5678&REV_01020`, 0, false},
		{`USB\VID_1234&PID_5678&REV_XY12`, 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			got, ok := ParseRevision(tt.id)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewDevice_Unset(t *testing.T) {
	d := NewDevice()
	assert.Equal(t, snapshot.Unset, d.VendorID())
	assert.Equal(t, snapshot.Unset, d.ProductID())
	assert.Equal(t, snapshot.Unset, d.Revision())
	assert.Equal(t, snapshot.Unset, d.InterfaceNumber())
	assert.False(t, d.IsConnected())
	assert.Nil(t, d.Parent())
}

func TestDevice_String(t *testing.T) {
	m := NewMatcher(nil, nil)

	r := snapshot.NewRecord(1, `USB\VID_046D&PID_C077\5&1`)
	r.VendorID, r.ProductID, r.Serial = 0x046d, 0xc077, "ABC123"
	r.Details = &snapshot.Details{Description: "USB Optical Mouse"}

	d, err := m.MatchOrCreate(r)
	require.NoError(t, err)
	assert.Equal(t, "USB Optical Mouse (046D/C077) #ABC123", d.String())

	assert.Equal(t, " (----/----) #", NewDevice().String())
}

func TestDevice_Subscribe(t *testing.T) {
	m := NewMatcher(nil, nil)
	d, err := m.MatchOrCreate(rec(1, "A"))
	require.NoError(t, err)

	var first, second []Attribute
	unsubscribe := d.Subscribe(func(_ *Device, a Attribute) { first = append(first, a) })
	d.Subscribe(func(_ *Device, a Attribute) { second = append(second, a) })
	d.Subscribe(nil)()

	r := rec(1, "A")
	r.Serial = "1"
	_, err = m.MatchOrCreate(r)
	require.NoError(t, err)

	unsubscribe()
	r = rec(1, "A")
	r.Serial = "2"
	_, err = m.MatchOrCreate(r)
	require.NoError(t, err)

	assert.Equal(t, []Attribute{AttrSerial}, first)
	assert.Equal(t, []Attribute{AttrSerial, AttrSerial}, second)
}

func TestDevice_HardwareIDsCopied(t *testing.T) {
	m := NewMatcher(nil, nil)
	r := rec(1, "A")
	r.Details = &snapshot.Details{HardwareIDs: []string{`USB\VID_1234&PID_5678&REV_0200`}}

	d, err := m.MatchOrCreate(r)
	require.NoError(t, err)
	assert.Equal(t, 0x0200, d.Revision())

	got := d.HardwareIDs()
	got[0] = "mutated"
	assert.Equal(t, `USB\VID_1234&PID_5678&REV_0200`, d.HardwareIDs()[0])
	r.Details.HardwareIDs[0] = "mutated"
	assert.Equal(t, `USB\VID_1234&PID_5678&REV_0200`, d.HardwareIDs()[0])
}

func TestAttribute_String(t *testing.T) {
	assert.Equal(t, "instance-id", AttrInstanceID.String())
	assert.Equal(t, "connected", AttrConnected.String())
	assert.Equal(t, "unknown", Attribute(99).String())
	assert.Equal(t, "added", ListAdded.String())
	assert.Equal(t, "removed", ListRemoved.String())
}
