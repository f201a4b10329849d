package prof

// Options selects the profiles captured by a Session. Empty paths disable
// the corresponding profile.
type Options struct {
	CPU       string // CPU profile, streamed while the session runs
	Heap      string // heap snapshot written by Stop
	Goroutine string // goroutine dump written by Stop
	Addr      string // listen address for the pprof HTTP handlers
}

// Enabled reports whether any profile was requested.
func (o Options) Enabled() bool {
	return o.CPU != "" || o.Heap != "" || o.Goroutine != "" || o.Addr != ""
}
