//go:build !debug

// Package debug reports broken invariants. Assertions are compiled in with
// the debug build tag and are no-ops otherwise.
//
// Firmware has nobody to return an error to from an interrupt handler, so
// broken invariants are reported by halting instead.
package debug

// Assert halts with message if b is false. Arguments are still evaluated in
// release builds, keep them cheap.
func Assert(b bool, message string) {}
