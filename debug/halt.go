package debug

import "fmt"

// Halt stops the program because of a fault that can't be recovered from,
// e.g. a peripheral that was programmed in a way its driver guarantees to
// never happen. Unlike Assert it's never compiled out.
func Halt(err error) {
	halt(fmt.Sprint(err))
}

func halt(msg string) {
	panic("halt: " + msg)
}
