//go:build debug

package debug

// Assert halts with message if b is false.
func Assert(b bool, message string) {
	if !b {
		halt("assertion failed: " + message)
	}
}
