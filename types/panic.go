package types

import (
	"fmt"
	"runtime/debug"
)

// PanicError carries a recovered panic value that was not itself an error.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// CauseFromPanic converts a recovered value into the error to attribute a
// failure to. Error values are returned unchanged so callers see the
// innermost cause rather than a wrapper.
func CauseFromPanic(r any) error {
	if err, ok := r.(error); ok {
		return err
	}
	return &PanicError{Value: r, Stack: debug.Stack()}
}
