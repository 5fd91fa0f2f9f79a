package kernel

import (
	"github.com/david61song/new-pintos/kernel/kfmt"
)

var errRuntimePanic = &Error{Module: "rt", Message: "unknown cause"}

// Panic reports an unrecoverable error to the console and stops the kernel by
// raising a runtime panic that carries the original *Error value.
func Panic(e interface{}) {
	var err *Error

	switch t := e.(type) {
	case *Error:
		err = t
	case string:
		errRuntimePanic.Message = t
		err = errRuntimePanic
	case error:
		errRuntimePanic.Message = t.Error()
		err = errRuntimePanic
	}

	kfmt.Printf("\n-----------------------------------\n")
	if err != nil {
		kfmt.Printf("[%s] unrecoverable error: %s\n", err.Module, err.Message)
	}
	kfmt.Printf("*** kernel panic: system halted ***")
	kfmt.Printf("\n-----------------------------------\n")

	panic(err)
}
