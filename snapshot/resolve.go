package snapshot

import (
	"context"

	"github.com/google/uuid"
)

// Resolve fills Details of every resolvable record of t using q. Failed
// queries are recorded as NoValue, uuid.Nil or an empty list. Records that
// already carry Details are left alone.
func Resolve(ctx context.Context, t *Tree, q Querier) error {
	var err error
	t.Walk(func(r *Record) bool {
		if err = ctx.Err(); err != nil {
			return false
		}
		if !r.Resolved() {
			r.Details = ResolveRecord(r.Node, q)
		}
		return true
	})
	return err
}

// ResolveRecord queries the detail properties of a single node.
func ResolveRecord(node Handle, q Querier) *Details {
	d := &Details{
		Description:      NoValue,
		ClassDescription: NoValue,
		ClassGUID:        uuid.Nil,
		HardwareIDs:      []string{},
	}
	if s, ok := q.QueryString(node, PropDescription); ok {
		d.Description = s
	}
	if g, ok := q.QueryGUID(node, PropClassGUID); ok {
		d.ClassGUID = g
	}
	if s, ok := q.QueryString(node, PropClass); ok {
		d.ClassDescription = s
	}
	if ids, ok := q.QueryStrings(node, PropHardwareIDs); ok {
		d.HardwareIDs = ids
	}
	return d
}
