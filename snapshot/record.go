package snapshot

import (
	"fmt"
	"slices"

	"github.com/google/uuid"
)

// Handle is an opaque node identifier issued by a Source. Handles are only
// meaningful to the Source that produced them.
type Handle int

// NoHandle marks a placeholder record that has no resolvable OS node.
const NoHandle Handle = -1

// Unset is the value of an integer property the OS did not report.
const Unset = -1

// Details holds the lazily resolved properties of a record. They are costly
// to read, so a Source only fills them after a snapshot was found to differ
// from its predecessor.
type Details struct {
	Description      string
	ClassGUID        uuid.UUID
	ClassDescription string
	HardwareIDs      []string
}

// Record is one raw device record of a snapshot.
type Record struct {
	Node            Handle
	InstanceID      string
	VendorID        int
	ProductID       int
	Revision        int
	InterfaceNumber int
	IsInterface     bool
	Serial          string
	Children        []*Record

	// Details is nil until the snapshot was resolved.
	Details *Details
}

// NewRecord returns a record for node with all integer properties unset.
func NewRecord(node Handle, instanceID string) *Record {
	return &Record{
		Node:            node,
		InstanceID:      instanceID,
		VendorID:        Unset,
		ProductID:       Unset,
		Revision:        Unset,
		InterfaceNumber: Unset,
	}
}

// Resolvable reports whether the record refers to a real OS node.
func (r *Record) Resolvable() bool {
	return r != nil && r.Node >= 0
}

// Resolved reports whether Details were filled in.
func (r *Record) Resolved() bool {
	return r != nil && r.Details != nil
}

// AddChild appends c to the record's children and returns r.
func (r *Record) AddChild(c ...*Record) *Record {
	r.Children = append(r.Children, c...)
	return r
}

// Equal reports whether r and o carry the same raw values and structurally
// equal children. Details are not compared.
func (r *Record) Equal(o *Record) bool {
	if r == nil || o == nil {
		return r == o
	}
	if r.Node != o.Node ||
		r.InstanceID != o.InstanceID ||
		r.VendorID != o.VendorID ||
		r.ProductID != o.ProductID ||
		r.Revision != o.Revision ||
		r.InterfaceNumber != o.InterfaceNumber ||
		r.IsInterface != o.IsInterface ||
		r.Serial != o.Serial ||
		len(r.Children) != len(o.Children) {
		return false
	}
	return slices.EqualFunc(r.Children, o.Children, (*Record).Equal)
}

func (r *Record) String() string {
	if r == nil {
		return "<nil>"
	}
	if !r.Resolvable() {
		return fmt.Sprintf("placeholder (%d children)", len(r.Children))
	}
	return fmt.Sprintf("%s [node %d]", r.InstanceID, r.Node)
}

// Tree is one poll's raw device graph.
type Tree struct {
	Root *Record
}

// NewTree wraps the top-level records in a placeholder root.
func NewTree(roots ...*Record) *Tree {
	root := NewRecord(NoHandle, "")
	root.Children = roots
	return &Tree{Root: root}
}

// Equal reports whether t and o are structurally identical. A nil tree is
// equal to nothing, so the first comparison against "no previous snapshot"
// always reports a change.
func (t *Tree) Equal(o *Tree) bool {
	if t == nil || o == nil {
		return false
	}
	return t.Root.Equal(o.Root)
}

// Walk calls fn for every resolvable record in pre-order. Walking stops
// early when fn returns false.
func (t *Tree) Walk(fn func(*Record) bool) {
	if t == nil {
		return
	}
	walk(t.Root, fn)
}

func walk(r *Record, fn func(*Record) bool) bool {
	if r == nil {
		return true
	}
	if r.Resolvable() && !fn(r) {
		return false
	}
	for _, c := range r.Children {
		if !walk(c, fn) {
			return false
		}
	}
	return true
}

// Len returns the number of resolvable records in the tree.
func (t *Tree) Len() int {
	n := 0
	t.Walk(func(*Record) bool {
		n++
		return true
	})
	return n
}
