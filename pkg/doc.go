// Package pkg provides shared utilities for the usbtree packages.
//
// This package contains common functionality used by the snapshot sources,
// the live device tree and the command front-end:
//
//   - Structured logging via Go's standard [log/slog] package
//   - Sentinel errors
//   - Component identifiers for log filtering
//
// # Logging
//
// The logging subsystem wraps [log/slog] with component context:
//
//	pkg.SetLogLevel(slog.LevelDebug)
//	pkg.LogInfo(pkg.ComponentPoller, "cycle complete", "devices", 12)
//
// # Errors
//
// Errors are defined as sentinel values:
//
//	if errors.Is(err, pkg.ErrInvalidParameter) {
//	    // caller passed a nil source
//	}
package pkg
