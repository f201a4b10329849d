package snapshot

//go:generate mockgen -destination=mock_source.go -package=snapshot github.com/ardnew/usbtree/snapshot Source

import (
	"context"

	"github.com/google/uuid"
)

// PropertyKey names a property that can be queried for a node.
type PropertyKey int

// Queryable properties.
const (
	PropInstanceID PropertyKey = iota
	PropSerial
	PropDescription
	PropClassGUID
	PropClass
	PropHardwareIDs
)

// String returns the property name.
func (k PropertyKey) String() string {
	switch k {
	case PropInstanceID:
		return "instance-id"
	case PropSerial:
		return "serial"
	case PropDescription:
		return "description"
	case PropClassGUID:
		return "class-guid"
	case PropClass:
		return "class"
	case PropHardwareIDs:
		return "hardware-ids"
	default:
		return "unknown"
	}
}

// In-band values recorded instead of failing a query.
const (
	NoValue       = "ERR: No Value"
	NoInstanceID  = "ERR: No DeviceInstanceID"
	NoDescription = "ERR: No Description"
)

// Querier fetches a single property of a node. Implementations never fail
// loudly: a property that cannot be read is reported with ok == false.
type Querier interface {
	QueryString(node Handle, key PropertyKey) (string, bool)
	QueryStrings(node Handle, key PropertyKey) ([]string, bool)
	QueryGUID(node Handle, key PropertyKey) (uuid.UUID, bool)
}

// Enumerator produces the current raw device graph. Enumerate must be safe
// to call repeatedly and cheap enough to run on every poll.
type Enumerator interface {
	Enumerate(ctx context.Context) (*Tree, error)
}

// Source is the OS device-configuration collaborator consumed by the tree.
type Source interface {
	Enumerator
	Querier

	// ResolveDetails fills Details of every resolvable record in t. It is
	// only called for snapshots that differ from their predecessor.
	ResolveDetails(ctx context.Context, t *Tree) error
}
