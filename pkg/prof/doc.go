// Package prof captures runtime profiles of a usbtree process.
//
// Profiling is compiled in only with the "profile" build tag:
//
//	go build -tags profile ./cmd/usbtree
//
// Without the tag, [Start] returns [pkg.ErrNotSupported] whenever a
// profile is requested, and an empty [Options] yields an inert [Session].
//
// A Session streams a CPU profile for its whole lifetime and writes the
// heap and goroutine snapshots when stopped:
//
//	s, err := prof.Start(prof.Options{CPU: "cpu.prof", Heap: "heap.prof"})
//	if err != nil {
//	    return err
//	}
//	defer s.Stop()
//
// Setting [Options.Addr] also serves the net/http/pprof handlers, e.g.
// localhost:6060/debug/pprof/, until the session stops.
package prof
