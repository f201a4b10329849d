// Package tree maintains a live, observable USB device hierarchy.
//
// A Tree polls a snapshot.Source and reconciles each changed snapshot into
// a long-lived graph of Device values:
//
//	t, err := tree.New(ctx, src)
//	if err != nil {
//		return err
//	}
//	defer t.Close()
//
//	t.List().Subscribe(func(ev tree.ListEvent) {
//		fmt.Println(ev.Action, ev.Device)
//	})
//
// Devices keep their identity for as long as their instance id stays in
// the snapshot. A device that disappears is detached together with its
// subtree; if the same instance id shows up again later, a new Device is
// created for it.
//
// Within one cycle notifications are delivered in a fixed order: attribute
// changes while the tree is reconciled, then ListAdded events, then
// ListRemoved events. Cycles never overlap.
//
// Each Device has two child relations. Children holds sub-devices such as
// the devices behind a hub port; Interfaces holds the functions exposed by
// a composite device. Only Children contributes to the flat List.
package tree
