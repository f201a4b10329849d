// Package snapshot defines the raw device graph consumed by the live USB
// tree and the contract of the OS collaborator that produces it.
//
// A [Tree] is an immutable per-poll picture of the device topology: each
// [Record] carries an OS node [Handle], the device instance id used as the
// identity key, the raw USB ids and its children. Records whose Node is
// [NoHandle] are placeholders; the root of every tree is one.
//
// Snapshots are cheap to build and compare. The expensive properties
// (description, class, hardware ids) are only read by
// [Source.ResolveDetails] once [Tree.Equal] has reported a change. Property
// reads never fail loudly: [Resolve] records [NoValue] for anything a
// [Querier] could not read.
//
// # Example
//
//	prev, _ := src.Enumerate(ctx)
//	next, _ := src.Enumerate(ctx)
//	if !next.Equal(prev) {
//	    _ = src.ResolveDetails(ctx, next)
//	}
package snapshot
