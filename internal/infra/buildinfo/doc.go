// Package buildinfo exposes version information injected with ldflags.
package buildinfo
