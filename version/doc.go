// Package version exposes build metadata stamped via -ldflags or read from
// the module build info.
package version
