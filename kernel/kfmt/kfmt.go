// Package kfmt provides formatted output support for kernel code. Output is
// buffered in a ring buffer until a console becomes available and a call to
// SetOutputSink redirects it to its final destination.
package kfmt

import (
	"fmt"
	"io"
)

var (
	// earlyPrintBuffer is a ring buffer that stores Printf output before
	// the console has been initialized.
	earlyPrintBuffer ringBuffer

	// outputSink is an io.Writer where Printf will send its output. If set
	// to nil, then the output will be redirected to the earlyPrintBuffer.
	outputSink io.Writer
)

// SetOutputSink sets the default target for calls to Printf to w and copies
// any data accumulated in the earlyPrintBuffer to it. Passing nil reverts
// output to the early print buffer.
func SetOutputSink(w io.Writer) {
	outputSink = w
	if w != nil {
		io.Copy(w, &earlyPrintBuffer)
	}
}

// Printf formats its arguments and writes the result to the registered output
// sink. Before a sink is registered, output accumulates in a fixed-size ring
// buffer which is drained into the sink by SetOutputSink.
func Printf(format string, args ...interface{}) {
	if outputSink == nil {
		fmt.Fprintf(&earlyPrintBuffer, format, args...)
		return
	}

	fmt.Fprintf(outputSink, format, args...)
}
