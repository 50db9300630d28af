// Package debug holds invariant checks for conditions that can't happen if
// the rest of the module is correct — as opposed to caller-input validation,
// which returns an *sparsecoll.InvariantError instead of panicking.
package debug

import "fmt"

// Assert panics if cond is false. Reserved for internal invariants
// (request-pool bookkeeping, window sizing arithmetic) never for validating
// arguments a caller controls.
func Assert(cond bool, msg string) {
	if !cond {
		panic("assertion failed: " + msg)
	}
}

// Assertf is Assert with a formatted message.
func Assertf(cond bool, format string, args ...any) {
	if !cond {
		panic(fmt.Sprintf("assertion failed: "+format, args...))
	}
}

// AssertNoErr panics if err is non-nil. Used where an error return exists
// only for an API shape's sake and a non-nil value here would mean a bug in
// this package, not a caller mistake.
func AssertNoErr(err error) {
	if err != nil {
		panic("assertion failed: " + err.Error())
	}
}
