//go:build !debug

// Package tag provides build tag dependent constants.
package tag

// Debug is true only in builds with the debug tag.
// Debug builds run expensive invariant checks after every mutation.
const Debug = false
