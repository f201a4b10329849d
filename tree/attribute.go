package tree

// Attribute identifies a notifiable attribute of a Device.
type Attribute int

// Device attributes.
const (
	AttrInstanceID Attribute = iota
	AttrDescription
	AttrClassGUID
	AttrClassDescription
	AttrHardwareIDs
	AttrVendorID
	AttrProductID
	AttrRevision
	AttrInterfaceNumber
	AttrIsInterface
	AttrSerial
	AttrConnected
)

// String returns the attribute name.
func (a Attribute) String() string {
	switch a {
	case AttrInstanceID:
		return "instance-id"
	case AttrDescription:
		return "description"
	case AttrClassGUID:
		return "class-guid"
	case AttrClassDescription:
		return "class-description"
	case AttrHardwareIDs:
		return "hardware-ids"
	case AttrVendorID:
		return "vendor-id"
	case AttrProductID:
		return "product-id"
	case AttrRevision:
		return "revision"
	case AttrInterfaceNumber:
		return "interface-number"
	case AttrIsInterface:
		return "is-interface"
	case AttrSerial:
		return "serial"
	case AttrConnected:
		return "connected"
	default:
		return "unknown"
	}
}

// AttributeFunc observes attribute changes of a Device. The new value is
// read back through the Device getters.
type AttributeFunc func(d *Device, attr Attribute)
