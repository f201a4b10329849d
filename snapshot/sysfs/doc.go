// Package sysfs implements snapshot.Source on top of the Linux sysfs USB
// device directory.
//
// Each entry of /sys/bus/usb/devices is resolved to its real device path and
// attached below the nearest USB ancestor, so the snapshot mirrors the
// physical topology: root hubs, then hubs and devices behind their ports.
// The functions of a composite device are reported as interface records.
//
// Devices are identified by Windows-style instance ids built from the
// vendor id, product id and serial number or port path:
//
//	USB\VID_046D&PID_C077\5&2AB6A55&0&2
//	USB\VID_16C0&PID_0483\12345
//	USB\VID_16C0&PID_0483&MI_00\1-1.2:1.0
//
// Class GUIDs and class names follow the Windows setup classes, so code
// filtering on "Ports" or the USB hub class behaves the same on every
// platform.
//
// Hotplug listens for kernel uevents on a netlink socket and signals a
// channel suitable for tree.WithTrigger, letting the tree react to plug
// events without waiting for the next poll.
package sysfs
