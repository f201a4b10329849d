package sysfs

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// =============================================================================
// USB Class Codes
// =============================================================================

// USB class codes as reported by bDeviceClass and bInterfaceClass.
const (
	USBClassPerInterface = 0x00
	USBClassAudio        = 0x01
	USBClassCDC          = 0x02
	USBClassHID          = 0x03
	USBClassImage        = 0x06
	USBClassPrinter      = 0x07
	USBClassMassStorage  = 0x08
	USBClassHub          = 0x09
	USBClassVideo        = 0x0E
	USBClassWireless     = 0xE0
	USBClassMisc         = 0xEF
)

// =============================================================================
// Setup Classes
// =============================================================================

// SetupClass is a device setup class: a GUID and its name.
type SetupClass struct {
	GUID uuid.UUID
	Name string
}

// Well-known setup classes.
var (
	ClassUSB       = SetupClass{uuid.MustParse("36fc9e60-c465-11cf-8056-444553540000"), "USB"}
	ClassHID       = SetupClass{uuid.MustParse("745a17a0-74d3-11d0-b6fe-00a0c90f57da"), "HIDClass"}
	ClassPorts     = SetupClass{uuid.MustParse("4d36e978-e325-11ce-bfc1-08002be10318"), "Ports"}
	ClassDiskDrive = SetupClass{uuid.MustParse("4d36e967-e325-11ce-bfc1-08002be10318"), "DiskDrive"}
	ClassMedia     = SetupClass{uuid.MustParse("4d36e96c-e325-11ce-bfc1-08002be10318"), "MEDIA"}
	ClassPrinter   = SetupClass{uuid.MustParse("4d36e979-e325-11ce-bfc1-08002be10318"), "Printer"}
	ClassImage     = SetupClass{uuid.MustParse("6bdd1fc6-810f-11d0-bec7-08002be2092f"), "Image"}
	ClassCamera    = SetupClass{uuid.MustParse("ca3e7ab9-b4c3-4ae6-8251-579ef933890f"), "Camera"}
	ClassBluetooth = SetupClass{uuid.MustParse("e0cbf06c-cd8b-4647-bb8a-263b43f0f974"), "Bluetooth"}
)

var setupClasses = map[uint8]SetupClass{
	USBClassAudio:       ClassMedia,
	USBClassCDC:         ClassPorts,
	USBClassHID:         ClassHID,
	USBClassImage:       ClassImage,
	USBClassPrinter:     ClassPrinter,
	USBClassMassStorage: ClassDiskDrive,
	USBClassHub:         ClassUSB,
	USBClassVideo:       ClassCamera,
	USBClassWireless:    ClassBluetooth,
}

// LookupSetupClass returns the setup class for a USB class code.
func LookupSetupClass(code uint8) (SetupClass, bool) {
	c, ok := setupClasses[code]
	return c, ok
}

// =============================================================================
// Identifiers
// =============================================================================

// rootHubTag returns the ROOT_HUB tag for a root hub of the given USB
// version, e.g. "ROOT_HUB30" for "3.10".
func rootHubTag(version string) string {
	major, _, _ := strings.Cut(strings.TrimSpace(version), ".")
	switch major {
	case "1", "2":
		return "ROOT_HUB20"
	case "3":
		return "ROOT_HUB30"
	default:
		return "ROOT_HUB"
	}
}

// validSerial reports whether serial may appear in an instance id.
func validSerial(serial string) bool {
	return serial != "" && !strings.ContainsAny(serial, "\\ \t")
}

// deviceInstanceID builds the instance id of a device entry. The serial
// names the device only when no other device shares it.
func deviceInstanceID(e *entry) string {
	if e.rootHub {
		return fmt.Sprintf(`USB\%s\%s`, rootHubTag(e.version), e.name)
	}
	if e.vid < 0 || e.pid < 0 {
		return ""
	}
	suffix := e.name
	if validSerial(e.serial) && !e.sharedSerial {
		suffix = e.serial
	}
	return fmt.Sprintf(`USB\VID_%04X&PID_%04X\%s`, e.vid, e.pid, suffix)
}

// interfaceInstanceID builds the instance id of an interface entry.
func interfaceInstanceID(e *entry) string {
	if e.vid < 0 || e.pid < 0 || e.ifnum < 0 {
		return ""
	}
	return fmt.Sprintf(`USB\VID_%04X&PID_%04X&MI_%02X\%s`, e.vid, e.pid, e.ifnum, e.name)
}

// hardwareIDs returns the hardware id list, most specific first.
func hardwareIDs(e *entry) []string {
	if e.vid < 0 || e.pid < 0 {
		return nil
	}
	base := fmt.Sprintf(`USB\VID_%04X&PID_%04X`, e.vid, e.pid)
	if e.rootHub {
		base = fmt.Sprintf(`USB\%s&VID_%04X&PID_%04X`, rootHubTag(e.version), e.vid, e.pid)
	}

	var mi string
	if e.iface {
		mi = fmt.Sprintf("&MI_%02X", e.ifnum)
	}

	ids := make([]string, 0, 2)
	if e.rev >= 0 {
		ids = append(ids, fmt.Sprintf("%s&REV_%04X%s", base, e.rev, mi))
	}
	return append(ids, base+mi)
}
